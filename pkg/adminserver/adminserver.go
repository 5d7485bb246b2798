// Package adminserver provides an HTTP server for administering GoStorageGuard.
package adminserver

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/supporttools/GoStorageGuard/pkg/api"
	"github.com/supporttools/GoStorageGuard/pkg/config"
	"github.com/supporttools/GoStorageGuard/pkg/metadata"
	"github.com/supporttools/GoStorageGuard/pkg/mounts"
	"github.com/supporttools/GoStorageGuard/pkg/pages"
	"github.com/supporttools/GoStorageGuard/pkg/retention"
	"github.com/supporttools/GoStorageGuard/pkg/scheduler"
	"github.com/supporttools/GoStorageGuard/pkg/version"
)

// Server represents the admin HTTP server
type Server struct {
	httpServer *http.Server
	scheduler  *scheduler.Scheduler
	checker    mounts.Checker
}

// NewServer creates a new admin server instance
func NewServer(sched *scheduler.Scheduler, checker mounts.Checker) *Server {
	return &Server{
		scheduler: sched,
		checker:   checker,
	}
}

// Start starts the admin HTTP server
func (s *Server) Start() *http.Server {
	mux := http.NewServeMux()

	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", config.CFG.Admin.Port),
		Handler:      logRequestMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		log.Printf("Admin server running on port %s", config.CFG.Admin.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	return s.httpServer
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Static pages
	mux.HandleFunc("/", pages.DashboardPage(s.scheduler))
	mux.HandleFunc("/status/runs", pages.RunStatusPage)
	mux.HandleFunc("/status/storage", pages.StorageStatusPage(s.checker, retention.DiskUsage))

	// Standard endpoints
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.healthCheckHandler)
	mux.HandleFunc("/version", s.versionHandler)

	// Run history and trigger API
	runsHandler := api.NewRunsHandler(s.scheduler)
	runsHandler.RegisterRoutes(mux)

	// Storage state API
	mux.HandleFunc("/api/storage", s.storageInfoHandler)
}

// healthCheckHandler returns a simple health status
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("Error encoding health check response: %v", err)
	}
}

// versionHandler returns build information
func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(version.GetVersionInfo()); err != nil {
		log.Printf("Error encoding version response: %v", err)
	}
}

// tierInfo describes one storage root for the storage API
type tierInfo struct {
	Name       string  `json:"name"`
	Path       string  `json:"path"`
	Mounted    bool    `json:"mounted"`
	MountError string  `json:"mountError,omitempty"`
	UsedBytes  uint64  `json:"usedBytes"`
	TotalBytes uint64  `json:"totalBytes"`
	Percent    float64 `json:"percent"`
}

// storageInfoHandler reports mount and usage state for each configured root
func (s *Server) storageInfoHandler(w http.ResponseWriter, r *http.Request) {
	roots := []struct {
		name string
		path string
	}{
		{"primary", config.CFG.Mirror.PrimaryRoot},
		{"replica", config.CFG.Mirror.ReplicaRoot},
		{"hot", config.CFG.Retention.HotRoot},
		{"warm", config.CFG.Retention.WarmRoot},
	}

	var tiers []tierInfo
	for _, root := range roots {
		if root.path == "" {
			continue
		}

		info := tierInfo{Name: root.name, Path: root.path}

		mounted, err := s.checker.IsMounted(root.path)
		if err != nil {
			info.MountError = err.Error()
		}
		info.Mounted = mounted

		if used, total, err := retention.DiskUsage(root.path); err == nil {
			info.UsedBytes = used
			info.TotalBytes = total
			if total > 0 {
				info.Percent = float64(used) / float64(total) * 100
			}
		}

		tiers = append(tiers, info)
	}

	response := map[string]interface{}{
		"tiers": tiers,
	}
	if metadata.DefaultStore != nil {
		response["stats"] = metadata.DefaultStore.GetStats()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding storage response: %v", err)
		http.Error(w, "Error generating storage info", http.StatusInternalServerError)
	}
}

// logRequestMiddleware logs HTTP requests
func logRequestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("HTTP %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}
