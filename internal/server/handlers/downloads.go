package handlers

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/pakmirror/pakmirror/internal/errors"
	"github.com/pakmirror/pakmirror/pkg/history"
	"github.com/pakmirror/pakmirror/pkg/jobregistry"
)

// launchRequest is the POST /api/downloads body. The configuration fields
// are flattened alongside the identity fields.
type launchRequest struct {
	Component string `json:"component"`
	Version   string `json:"version"`
	Name      string `json:"name"`

	jobregistry.ConfigSnapshot
}

type launchResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
	PID     int    `json:"pid"`
}

// CreateDownload launches a case-package download job.
func (h *Handlers) CreateDownload(w http.ResponseWriter, r *http.Request) {
	var req launchRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.HomeDir == "" {
		req.HomeDir = h.opts.HomeDir
	}

	snap, err := h.launcher.Launch(req.Component, req.Version, req.Name, req.ConfigSnapshot)
	if err != nil {
		apperrors.RespondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, launchResponse{Success: true, JobID: snap.ID, PID: snap.PID})
}

// ListDownloads returns the active jobs and the terminal history.
func (h *Handlers) ListDownloads(w http.ResponseWriter, r *http.Request) {
	active := h.launcher.Registry().ListActive()
	if active == nil {
		active = []jobregistry.Snapshot{}
	}
	hist := h.launcher.History().List()
	if hist == nil {
		hist = []history.Entry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"active":  active,
		"history": hist,
	})
}

// GetDownload returns one job by id, active or historical, with a log tail.
func (h *Handlers) GetDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var job any
	var logPath string
	if snap, ok := h.launcher.Registry().Get(id); ok {
		job = snap
		logPath = snap.LogPath
	} else if entry, ok := h.launcher.History().FindByID(id); ok {
		job = entry
		logPath = entry.LogPath
	} else {
		apperrors.RespondWithError(w, &jobregistry.NotFoundError{ID: id})
		return
	}

	logTail := []string{}
	if logPath != "" {
		if data, err := os.ReadFile(logPath); err == nil {
			logTail = tailSlice(string(data), h.opts.TailLines)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"job":      job,
		"log_tail": logTail,
	})
}

// StopDownload requests graceful termination of a running job.
func (h *Handlers) StopDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.launcher.Stop(id); err != nil {
		apperrors.RespondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"job_id":  id,
		"status":  string(jobregistry.StatusStopped),
	})
}

// DismissDownload force-terminates a job and removes it immediately.
func (h *Handlers) DismissDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := h.launcher.Dismiss(id)
	if err != nil {
		apperrors.RespondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"job":     snap,
	})
}

// RetryDownload relaunches a terminal or stuck job, with optional field
// overrides in the request body.
func (h *Handlers) RetryDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	overrides := map[string]any{}
	if err := decodeJSON(r, &overrides); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	snap, err := h.retries.Retry(id, overrides)
	if err != nil {
		apperrors.RespondWithError(w, err)
		return
	}
	h.logger.Info("job retried",
		zap.String("previous_id", id),
		zap.String("job_id", snap.ID),
	)
	respondJSON(w, http.StatusAccepted, launchResponse{Success: true, JobID: snap.ID, PID: snap.PID})
}
