// Package api provides the JSON API for run history and manual triggers.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/supporttools/GoStorageGuard/pkg/metadata"
	"github.com/supporttools/GoStorageGuard/pkg/metadata/types"
	"github.com/supporttools/GoStorageGuard/pkg/scheduler"
)

var (
	taskLock      sync.Mutex
	isTaskRunning bool
)

// RunsHandler handles run-related API endpoints
type RunsHandler struct {
	scheduler *scheduler.Scheduler
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(sched *scheduler.Scheduler) *RunsHandler {
	return &RunsHandler{scheduler: sched}
}

// RegisterRoutes registers the run API routes on the provided mux
func (h *RunsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/runs", h.handleRuns)
	mux.HandleFunc("/api/runs/stats", h.handleRunStats)
	mux.HandleFunc("/api/runs/trigger", h.handleTrigger)
}

// handleRuns returns recorded runs with optional filtering
func (h *RunsHandler) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if metadata.DefaultStore == nil {
		http.Error(w, "Run store not available", http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query()
	component := query.Get("component")
	if component != "" && component != types.ComponentMirror && component != types.ComponentRetention {
		http.Error(w, fmt.Sprintf("Invalid component: %s", component), http.StatusBadRequest)
		return
	}

	limit := parseInt(query.Get("limit"), 50)
	runs := metadata.DefaultStore.GetRunsFiltered(component, limit)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	}); err != nil {
		log.Printf("Error encoding runs response: %v", err)
		http.Error(w, "Error listing runs", http.StatusInternalServerError)
		return
	}
}

// handleRunStats returns aggregate statistics about recorded runs
func (h *RunsHandler) handleRunStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if metadata.DefaultStore == nil {
		http.Error(w, "Run store not available", http.StatusServiceUnavailable)
		return
	}

	stats := metadata.DefaultStore.GetStats()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Printf("Error encoding stats response: %v", err)
		http.Error(w, "Error generating stats", http.StatusInternalServerError)
	}
}

// handleTrigger starts a mirror or retention pass out of schedule
func (h *RunsHandler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.scheduler == nil {
		http.Error(w, "Scheduler not configured", http.StatusInternalServerError)
		return
	}

	component := r.URL.Query().Get("component")
	dryRun := r.URL.Query().Get("dryRun") == "true"

	if component != types.ComponentMirror && component != types.ComponentRetention {
		http.Error(w, fmt.Sprintf("Invalid component: %s (expected %s or %s)",
			component, types.ComponentMirror, types.ComponentRetention), http.StatusBadRequest)
		return
	}

	if !h.trigger(component, dryRun) {
		http.Error(w, "A task is already running", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)

	message := fmt.Sprintf("%s pass initiated", component)
	if dryRun {
		message = fmt.Sprintf("%s dry-run pass initiated", component)
	}

	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":  "accepted",
		"message": message,
	}); err != nil {
		log.Printf("Error encoding trigger response: %v", err)
	}
}

// trigger ensures only one manual task runs at a time
func (h *RunsHandler) trigger(component string, dryRun bool) bool {
	taskLock.Lock()
	defer taskLock.Unlock()

	if isTaskRunning {
		return false
	}

	isTaskRunning = true

	go func() {
		defer func() {
			taskLock.Lock()
			isTaskRunning = false
			taskLock.Unlock()
		}()

		log.Printf("Manual %s pass triggered via API (dryRun=%v)", component, dryRun)

		var err error
		switch component {
		case types.ComponentMirror:
			_, err = h.scheduler.RunMirrorOnce(dryRun)
		case types.ComponentRetention:
			_, err = h.scheduler.RunRetentionOnce(dryRun)
		}

		if err != nil {
			log.Printf("Manual %s pass failed: %v", component, err)
		}
	}()

	return true
}

// parseInt parses s as an int, returning def when s is empty or invalid
func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
