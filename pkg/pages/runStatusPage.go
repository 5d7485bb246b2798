package pages

import (
	"net/http"
	"time"

	"github.com/supporttools/GoStorageGuard/pkg/metadata"
	"github.com/supporttools/GoStorageGuard/pkg/metadata/types"
)

// RunStatusPageData holds data for the run history page
type RunStatusPageData struct {
	Runs        []types.RunMeta
	Component   string
	LastUpdated time.Time
}

// RunStatusPage renders the run history page. A component query parameter
// filters to mirror or retention runs.
func RunStatusPage(w http.ResponseWriter, r *http.Request) {
	tmpl := generateCommonTemplate()
	if tmpl == nil {
		http.Error(w, "Failed to generate template", http.StatusInternalServerError)
		return
	}

	contentTemplate := `
{{define "content"}}
<div class="mb-3">
    <div class="btn-group" role="group">
        <a href="/status/runs" class="btn btn-outline-secondary {{if eq .Content.Component ""}}active{{end}}">All</a>
        <a href="/status/runs?component=mirror" class="btn btn-outline-secondary {{if eq .Content.Component "mirror"}}active{{end}}">Mirror</a>
        <a href="/status/runs?component=retention" class="btn btn-outline-secondary {{if eq .Content.Component "retention"}}active{{end}}">Retention</a>
    </div>
</div>

<div class="table-responsive">
    <table class="table table-striped table-hover">
        <thead>
            <tr>
                <th>Component</th>
                <th>Started</th>
                <th>Completed</th>
                <th>Status</th>
                <th>Actions</th>
                <th>Errors</th>
                <th>Message</th>
            </tr>
        </thead>
        <tbody>
            {{range .Content.Runs}}
            <tr>
                <td>{{.Component}}{{if .DryRun}} <span class="badge bg-secondary">dry-run</span>{{end}}</td>
                <td>{{formatTime .StartedAt}}</td>
                <td>{{formatTime .CompletedAt}}</td>
                <td>
                    {{if eq .Status "success"}}
                    <span class="badge bg-success status-badge">success</span>
                    {{else if eq .Status "success_with_warnings"}}
                    <span class="badge bg-warning text-dark status-badge">warnings</span>
                    {{else if eq .Status "completed_with_errors"}}
                    <span class="badge bg-warning text-dark status-badge">errors</span>
                    {{else if eq .Status "failed"}}
                    <span class="badge bg-danger status-badge">failed</span>
                    {{else}}
                    <span class="badge bg-info status-badge">{{.Status}}</span>
                    {{end}}
                </td>
                <td>
                    {{if eq .Component "mirror"}}
                    {{.Counters.FilesTransferred}} files ({{formatBytes .Counters.BytesTransferred}}), {{.Counters.FilesDeleted}} deleted
                    {{else}}
                    {{.Counters.BucketsMoved}} moved ({{formatBytes .Counters.BytesMoved}}), {{.Counters.BucketsPurged}} purged ({{formatBytes .Counters.BytesPurged}})
                    {{end}}
                </td>
                <td>{{.Counters.ErrorCount}}</td>
                <td class="text-muted">{{.Message}}</td>
            </tr>
            {{else}}
            <tr><td colspan="7" class="text-muted">No runs recorded yet.</td></tr>
            {{end}}
        </tbody>
    </table>
</div>
{{end}}
`

	tmpl, err := tmpl.Parse(contentTemplate)
	if err != nil {
		http.Error(w, "Failed to parse content template", http.StatusInternalServerError)
		return
	}

	component := r.URL.Query().Get("component")

	data := RunStatusPageData{
		Component:   component,
		LastUpdated: time.Now(),
	}

	if metadata.DefaultStore != nil {
		data.Runs = metadata.DefaultStore.GetRunsFiltered(component, 200)
	}

	renderTemplate(w, tmpl, "/status/runs", PageData{
		Title:       "Run History",
		Description: "Recorded mirror and retention runs",
		Content:     data,
	})
}
