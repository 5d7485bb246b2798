package pages

import (
	"net/http"
	"time"

	"github.com/supporttools/GoStorageGuard/pkg/config"
	"github.com/supporttools/GoStorageGuard/pkg/mounts"
)

// TierStatus describes one storage root for the status page
type TierStatus struct {
	Name       string
	Path       string
	Mounted    bool
	CheckError string
	Used       uint64
	Total      uint64
	Percent    float64
}

// UsageFunc reports disk utilization for a path; injected so the page does
// not depend on the retention package
type UsageFunc func(path string) (used, total uint64, err error)

// StorageStatusPageData holds data for the storage status page
type StorageStatusPageData struct {
	Tiers       []TierStatus
	LastUpdated time.Time
}

// StorageStatusPage renders the storage status page
func StorageStatusPage(checker mounts.Checker, usage UsageFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tmpl := generateCommonTemplate()
		if tmpl == nil {
			http.Error(w, "Failed to generate template", http.StatusInternalServerError)
			return
		}

		contentTemplate := `
{{define "content"}}
<div class="row">
    {{range .Content.Tiers}}
    <div class="col-md-6">
        <div class="card {{if .Mounted}}border-success{{else}}border-danger{{end}} mb-4">
            <div class="card-header">
                <h5 class="card-title mb-0">
                    <i data-feather="hard-drive"></i> {{.Name}}
                    {{if .Mounted}}
                    <span class="badge bg-success">Mounted</span>
                    {{else}}
                    <span class="badge bg-danger">Not Mounted</span>
                    {{end}}
                </h5>
            </div>
            <div class="card-body">
                <div class="mb-3">
                    <strong>Path:</strong> {{.Path}}
                </div>
                {{if .CheckError}}
                <div class="alert alert-danger">{{.CheckError}}</div>
                {{end}}
                {{if .Mounted}}
                <div class="mb-3">
                    <strong>Used:</strong> {{formatBytes .Used}} of {{formatBytes .Total}}
                </div>
                <div class="progress mb-3">
                    <div class="progress-bar {{if gt .Percent 90.0}}bg-danger{{else if gt .Percent 75.0}}bg-warning{{else}}bg-success{{end}}"
                         role="progressbar" style="width: {{printf "%.0f" .Percent}}%;"
                         aria-valuenow="{{printf "%.0f" .Percent}}" aria-valuemin="0" aria-valuemax="100">{{printf "%.1f" .Percent}}%</div>
                </div>
                {{else}}
                <p class="card-text text-muted">Lifecycle jobs will refuse to run until this path is mounted.</p>
                {{end}}
            </div>
        </div>
    </div>
    {{end}}
</div>
{{end}}
`

		tmpl, err := tmpl.Parse(contentTemplate)
		if err != nil {
			http.Error(w, "Failed to parse content template", http.StatusInternalServerError)
			return
		}

		data := StorageStatusPageData{LastUpdated: time.Now()}

		for _, tier := range []struct {
			name string
			path string
		}{
			{"Primary (mirror source)", config.CFG.Mirror.PrimaryRoot},
			{"Replica (mirror destination)", config.CFG.Mirror.ReplicaRoot},
			{"Hot tier (recent recordings)", config.CFG.Retention.HotRoot},
			{"Warm tier (aged recordings)", config.CFG.Retention.WarmRoot},
		} {
			if tier.path == "" {
				continue
			}

			status := TierStatus{Name: tier.name, Path: tier.path}

			mounted, err := checker.IsMounted(tier.path)
			if err != nil {
				status.CheckError = err.Error()
			}
			status.Mounted = mounted

			if mounted && usage != nil {
				if used, total, err := usage(tier.path); err == nil {
					status.Used = used
					status.Total = total
					if total > 0 {
						status.Percent = float64(used) / float64(total) * 100
					}
				}
			}

			data.Tiers = append(data.Tiers, status)
		}

		renderTemplate(w, tmpl, "/status/storage", PageData{
			Title:       "Storage",
			Description: "Mount state and utilization of the lifecycle storage roots",
			Content:     data,
		})
	}
}
