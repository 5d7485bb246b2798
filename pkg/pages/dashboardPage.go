package pages

import (
	"net/http"
	"time"

	"github.com/supporttools/GoStorageGuard/pkg/metadata"
	"github.com/supporttools/GoStorageGuard/pkg/metadata/types"
)

// DashboardData holds data for the dashboard page
type DashboardData struct {
	Stats       map[string]interface{}
	RecentRuns  []types.RunMeta
	NextRuns    map[string]time.Time
	LastUpdated time.Time
}

// NextRunProvider exposes the next scheduled run times, implemented by the
// scheduler. Nil when running without a scheduler.
type NextRunProvider interface {
	NextRunTimes() map[string]time.Time
}

// DashboardPage renders the main dashboard
func DashboardPage(schedule NextRunProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tmpl := generateCommonTemplate()
		if tmpl == nil {
			http.Error(w, "Failed to generate template", http.StatusInternalServerError)
			return
		}

		contentTemplate := `
{{define "content"}}
<div class="row">
    <div class="col-md-4">
        <div class="card bg-light">
            <div class="card-body">
                <h5 class="card-title">Runs</h5>
                <p class="display-4">{{.Content.Stats.totalRuns}}</p>
                <div class="text-muted">Recorded lifecycle runs</div>
            </div>
        </div>
    </div>
    <div class="col-md-4">
        <div class="card bg-light">
            <div class="card-body">
                <h5 class="card-title">Last Mirror</h5>
                {{with .Content.Stats.lastSuccessfulMirror}}
                {{if .IsZero}}
                <p class="card-text text-muted">No successful mirror yet</p>
                {{else}}
                <p class="card-text">{{timeAgo .}}</p>
                <div class="text-muted">{{formatTime .}}</div>
                {{end}}
                {{end}}
            </div>
        </div>
    </div>
    <div class="col-md-4">
        <div class="card bg-light">
            <div class="card-body">
                <h5 class="card-title">Last Retention</h5>
                {{with .Content.Stats.lastSuccessfulRetention}}
                {{if .IsZero}}
                <p class="card-text text-muted">No successful retention pass yet</p>
                {{else}}
                <p class="card-text">{{timeAgo .}}</p>
                <div class="text-muted">{{formatTime .}}</div>
                {{end}}
                {{end}}
            </div>
        </div>
    </div>
</div>

{{if .Content.NextRuns}}
<div class="row mt-2">
    {{range $job, $next := .Content.NextRuns}}
    <div class="col-md-6">
        <div class="card">
            <div class="card-body bg-info-light">
                <h5 class="card-title">Next {{$job}} run</h5>
                <p class="card-text">{{formatTime $next}}</p>
            </div>
        </div>
    </div>
    {{end}}
</div>
{{end}}

<h2 class="mt-4">Recent Runs</h2>
<div class="table-responsive">
    <table class="table table-striped table-hover">
        <thead>
            <tr>
                <th>Component</th>
                <th>Started</th>
                <th>Duration</th>
                <th>Status</th>
                <th>Actions</th>
                <th>Errors</th>
            </tr>
        </thead>
        <tbody>
            {{range .Content.RecentRuns}}
            <tr>
                <td>{{.Component}}{{if .DryRun}} <span class="badge bg-secondary">dry-run</span>{{end}}</td>
                <td>{{formatTime .StartedAt}}</td>
                <td>{{if .CompletedAt.IsZero}}-{{else}}{{formatDuration .Duration}}{{end}}</td>
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
            </tr>
            {{else}}
            <tr><td colspan="6" class="text-muted">No runs recorded yet.</td></tr>
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

		data := DashboardData{
			LastUpdated: time.Now(),
		}

		if metadata.DefaultStore != nil {
			data.Stats = metadata.DefaultStore.GetStats()
			data.RecentRuns = metadata.DefaultStore.GetRunsFiltered("", 20)
		} else {
			data.Stats = map[string]interface{}{"totalRuns": 0}
		}

		if schedule != nil {
			data.NextRuns = schedule.NextRunTimes()
		}

		renderTemplate(w, tmpl, "/", PageData{
			Title:       "Dashboard",
			Description: "Storage lifecycle status at a glance",
			Content:     data,
		})
	}
}
