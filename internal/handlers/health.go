package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"media-curator/internal/indexer"
	"media-curator/internal/logging"
	"media-curator/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

const pingTimeout = 2 * time.Second

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database"`

	// Indexing session summary
	Indexing  bool          `json:"indexing"`
	Phase     indexer.Phase `json:"phase"`
	RunID     string        `json:"runId,omitempty"`
	Indexed   int           `json:"indexed"`
	Total     int           `json:"total"`
	LastError string        `json:"lastError,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service. The service is ready
// when the catalog database answers a ping.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	session := h.controller.Status()

	response := HealthResponse{
		Status:       statusHealthy,
		Ready:        true,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Database:     "ok",
		Indexing:     session.Phase.Active(),
		Phase:        session.Phase,
		RunID:        session.RunID,
		Indexed:      session.Indexed,
		Total:        session.Total,
		LastError:    session.LastError,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if err := h.ping(r.Context()); err != nil {
		logging.Warn("health check: database ping failed: %v", err)
		response.Status = statusDegraded
		response.Ready = false
		response.Database = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if !response.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the catalog database is reachable
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.ping(r.Context()); err != nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, "not_ready")
		return
	}
	writeJSONStatus(w, http.StatusOK, "ready")
}

func (h *Handlers) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return h.catalog.Ping(ctx)
}
