package handlers

import (
	"net/http"
	"runtime"
	"time"

	"smartlists/internal/refresh"
	"smartlists/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Refresh pipeline
	Lists         int    `json:"lists"`
	EnabledLists  int    `json:"enabledLists"`
	Refreshing    int    `json:"refreshing"`
	BatchState    string `json:"batchState"`
	PendingEvents int    `json:"pendingEvents"`
	Problems      int    `json:"definitionProblems"`

	// Change watcher
	WatcherCursor    int64  `json:"watcherCursor,omitempty"`
	WatcherLastPoll  string `json:"watcherLastPoll,omitempty"`
	WatcherLastError string `json:"watcherLastError,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	ready := h.ready.Load()
	batch, pending := h.refresher.BatchState()

	response := HealthResponse{
		Ready:         ready,
		Version:       startup.Version,
		Uptime:        time.Since(h.started).Round(time.Second).String(),
		BatchState:    batch,
		PendingEvents: pending,
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
	}

	for _, l := range h.refresher.Lists() {
		response.Lists++
		if l.Enabled {
			response.EnabledLists++
		}
		if h.refresher.Status(l.ID).State == refresh.StateRefreshing {
			response.Refreshing++
		}
	}
	if h.problems != nil {
		response.Problems = len(h.problems.Problems())
	}

	response.Status = statusHealthy
	if !ready {
		response.Status = statusStarting
	}

	if h.watcher != nil {
		ws := h.watcher.Status()
		response.WatcherCursor = ws.Cursor
		if !ws.LastPoll.IsZero() {
			response.WatcherLastPoll = ws.LastPoll.Format(time.RFC3339)
		}
		if ws.LastError != "" {
			response.WatcherLastError = ws.LastError
			if ready {
				response.Status = statusDegraded
			}
		}
	}

	// Return 503 only if not ready at all
	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, statusCode, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 only once the list definitions have been loaded
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ready.Load() {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatus(w, http.StatusOK, startup.GetBuildInfo())
}
