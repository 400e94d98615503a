// Package handlers implements the HTTP API surface over the job
// orchestration core: launch, inspect, stop, dismiss, and retry mirror
// jobs, plus log, manifest, report, and component lookups.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/pakmirror/pakmirror/internal/errors"
	"github.com/pakmirror/pakmirror/pkg/launcher"
	"github.com/pakmirror/pakmirror/pkg/retry"
)

// Options carries the request-independent handler configuration.
type Options struct {
	// HomeDir is the default working root when a request does not name one.
	HomeDir string
	// TailLines is the default log tail length for status responses.
	TailLines int
	// Version/Commit/BuildDate feed /health and /version.
	Version   string
	Commit    string
	BuildDate string
}

// Handlers binds the API endpoints to the orchestration core.
type Handlers struct {
	launcher *launcher.Launcher
	retries  *retry.Engine
	logger   *zap.Logger
	opts     Options

	// streamInterval is the log poll cadence of the SSE endpoint. Tests
	// shorten it.
	streamInterval time.Duration
}

func New(l *launcher.Launcher, eng *retry.Engine, logger *zap.Logger, opts Options) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TailLines <= 0 {
		opts.TailLines = 50
	}
	return &Handlers{
		launcher:       l,
		retries:        eng,
		logger:         logger,
		opts:           opts,
		streamInterval: time.Second,
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads the request body into dst. An empty body is not an
// error; dst keeps its zero values.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func badRequest(w http.ResponseWriter, message string) {
	apperrors.Respond(w, http.StatusBadRequest, apperrors.CodeInvalidConfig, message)
}

// tail returns the last n lines of s, or all of s when n <= 0.
func tail(s string, n int) string {
	if n <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

func tailSlice(s string, n int) []string {
	t := strings.TrimRight(tail(s, n), "\n")
	if t == "" {
		return []string{}
	}
	return strings.Split(t, "\n")
}
