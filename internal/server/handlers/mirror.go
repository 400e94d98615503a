package handlers

import (
	"fmt"
	"net/http"

	apperrors "github.com/pakmirror/pakmirror/internal/errors"
	"github.com/pakmirror/pakmirror/pkg/jobregistry"
)

type platformMirrorRequest struct {
	Version string `json:"version"`
	Name    string `json:"name"`

	jobregistry.ConfigSnapshot
}

// PlatformMirror launches a platform-release mirror job.
func (h *Handlers) PlatformMirror(w http.ResponseWriter, r *http.Request) {
	var req platformMirrorRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.HomeDir == "" {
		req.HomeDir = h.opts.HomeDir
	}
	if req.Name == "" {
		arch := req.Architecture
		if arch == "" {
			arch = "x86_64"
		}
		req.Name = fmt.Sprintf("ocp-%s-%s", req.Version, arch)
	}

	snap, err := h.launcher.Launch("openshift", req.Version, req.Name, req.ConfigSnapshot)
	if err != nil {
		apperrors.RespondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, launchResponse{Success: true, JobID: snap.ID, PID: snap.PID})
}

type catalogMirrorRequest struct {
	Name string `json:"name"`

	jobregistry.ConfigSnapshot
}

// CatalogMirror launches an operator catalog mirror job. The job version is
// derived from the catalog version.
func (h *Handlers) CatalogMirror(w http.ResponseWriter, r *http.Request) {
	var req catalogMirrorRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.HomeDir == "" {
		req.HomeDir = h.opts.HomeDir
	}
	version := "v" + req.CatalogVersion
	if req.Name == "" {
		req.Name = "operators-" + version
	}

	snap, err := h.launcher.Launch("redhat-operators", version, req.Name, req.ConfigSnapshot)
	if err != nil {
		apperrors.RespondWithError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, launchResponse{Success: true, JobID: snap.ID, PID: snap.PID})
}
