package handlers

import "net/http"

// HealthResponse is the /health body.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	ActiveJobs int    `json:"active_jobs"`
}

// Health reports liveness and the current active job count.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:     "healthy",
		Version:    h.opts.Version,
		ActiveJobs: h.launcher.Registry().Len(),
	})
}

// Version reports build identification.
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"version":    h.opts.Version,
		"commit":     h.opts.Commit,
		"build_date": h.opts.BuildDate,
	})
}
