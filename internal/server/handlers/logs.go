package handlers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	apperrors "github.com/pakmirror/pakmirror/internal/errors"
)

// streamRate caps SSE output so a huge log burst cannot saturate the
// connection.
const streamRate = 200 // lines per second

// GetLogs returns the log files for a job by logical name. Case jobs write
// a download log and a mirror log under their working directory; script
// jobs write a single log directly under the home dir.
func (h *Handlers) GetLogs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	homeDir := r.URL.Query().Get("home_dir")
	if homeDir == "" {
		homeDir = h.opts.HomeDir
	}
	lines := h.opts.TailLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(w, "lines must be an integer")
			return
		}
		lines = n
	}

	singleLog := filepath.Join(homeDir, name+".log")
	downloadLog := filepath.Join(homeDir, name, name+"-download.log")
	mirrorLog := filepath.Join(homeDir, name, name+"-mirror.log")

	var downloadContent, mirrorContent string
	downloadPath := downloadLog
	if data, err := os.ReadFile(singleLog); err == nil {
		downloadContent = tail(string(data), lines)
		downloadPath = singleLog
	} else {
		if data, err := os.ReadFile(downloadLog); err == nil {
			downloadContent = tail(string(data), lines)
		}
		if data, err := os.ReadFile(mirrorLog); err == nil {
			mirrorContent = tail(string(data), lines)
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"download_log":        downloadContent,
		"mirror_log":          mirrorContent,
		"download_log_path":   downloadPath,
		"mirror_log_path":     mirrorLog,
		"download_log_exists": fileExists(singleLog) || fileExists(downloadLog),
		"mirror_log_exists":   fileExists(mirrorLog),
	})
}

// StreamLogs streams appended log lines as server-sent events until the
// client disconnects.
func (h *Handlers) StreamLogs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	homeDir := r.URL.Query().Get("home_dir")
	if homeDir == "" {
		homeDir = h.opts.HomeDir
	}

	var path string
	switch r.URL.Query().Get("type") {
	case "mirror":
		path = filepath.Join(homeDir, name, name+"-mirror.log")
	default:
		path = filepath.Join(homeDir, name, name+"-download.log")
		if !fileExists(path) && fileExists(filepath.Join(homeDir, name+".log")) {
			path = filepath.Join(homeDir, name+".log")
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		apperrors.Respond(w, http.StatusInternalServerError, apperrors.CodeInternal, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	// Wait for the log file to appear; the job may still be starting up.
	for waited := 0; !fileExists(path); waited++ {
		if waited >= 60 {
			fmt.Fprintf(w, "data: log file not found: %s\n\n", path)
			flusher.Flush()
			return
		}
		fmt.Fprint(w, "data: waiting for log file...\n\n")
		flusher.Flush()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	var offset int64
	for {
		offset = h.streamNewLines(ctx, w, flusher, path, offset)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// streamNewLines emits log content appended since offset and returns the
// new offset.
func (h *Handlers) streamNewLines(ctx context.Context, w io.Writer, flusher http.Flusher, path string, offset int64) int64 {
	info, err := os.Stat(path)
	if err != nil || info.Size() <= offset {
		return offset
	}

	f, err := os.Open(path)
	if err != nil {
		return offset
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset
	}

	limiter := rate.NewLimiter(rate.Limit(streamRate), streamRate)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return info.Size()
		}
		fmt.Fprintf(w, "data: %s\n\n", line)
	}
	flusher.Flush()
	return info.Size()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
