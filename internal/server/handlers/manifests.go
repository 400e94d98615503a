package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/pakmirror/pakmirror/internal/errors"
	"github.com/pakmirror/pakmirror/pkg/report"
)

type imageMapping struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// GetManifest parses the images-mapping file of a download. With component
// and version query parameters the downloader's own mapping location is
// used; otherwise the job working directory's mapping.txt.
func (h *Handlers) GetManifest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	homeDir := r.URL.Query().Get("home_dir")
	if homeDir == "" {
		homeDir = h.opts.HomeDir
	}

	var path string
	component := r.URL.Query().Get("component")
	version := r.URL.Query().Get("version")
	if component != "" && version != "" {
		path = filepath.Join(homeDir, ".ibm-pak", "data", "mirror", component, version,
			"images-mapping-to-filesystem.txt")
	} else {
		path = filepath.Join(homeDir, name, "mapping.txt")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		apperrors.Respond(w, http.StatusNotFound, apperrors.CodeNotFound,
			fmt.Sprintf("mapping file not found: %s", path))
		return
	}

	mappings := parseMappings(string(data))
	respondJSON(w, http.StatusOK, map[string]any{
		"mapping_file": path,
		"total_images": len(mappings),
		"mappings":     mappings,
	})
}

// parseMappings reads source=destination pairs, skipping blanks and
// comments.
func parseMappings(content string) []imageMapping {
	mappings := []imageMapping{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		mappings = append(mappings, imageMapping{
			Source:      strings.TrimSpace(parts[0]),
			Destination: strings.TrimSpace(parts[1]),
		})
	}
	return mappings
}

// GetReport returns the terminal summary report text for a job name.
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	homeDir := r.URL.Query().Get("home_dir")
	if homeDir == "" {
		homeDir = h.opts.HomeDir
	}

	path := report.Path(homeDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		apperrors.Respond(w, http.StatusNotFound, apperrors.CodeNotFound,
			fmt.Sprintf("report not found: %s", path))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"report": string(data)})
}
