// Package errors maps the orchestrator's error taxonomy onto the HTTP error
// envelope used by every API response.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pakmirror/pakmirror/pkg/jobregistry"
	"github.com/pakmirror/pakmirror/pkg/launcher"
	"github.com/pakmirror/pakmirror/pkg/retry"
)

// Error codes carried in the envelope. Stable contract for API consumers.
const (
	CodeInvalidConfig    = "INVALID_CONFIG"
	CodeDuplicateJob     = "DUPLICATE_JOB"
	CodeLaunchFailed     = "LAUNCH_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeNotRunning       = "NOT_RUNNING"
	CodeMissingRetryData = "MISSING_RETRY_DATA"
	CodeNotResumable     = "NOT_RESUMABLE"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternal         = "INTERNAL"
)

// HTTPErrorResponse is the JSON envelope for every error reply.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Classify maps a domain error to its HTTP status and envelope code.
func Classify(err error) (status int, code string) {
	var (
		configErr    *launcher.ConfigError
		dupErr       *jobregistry.DuplicateJobError
		launchErr    *launcher.LaunchError
		notFoundErr  *jobregistry.NotFoundError
		notRunning   *launcher.NotRunningError
		missingRetry *retry.MissingRetryDataError
		notResumable *retry.NotResumableError
	)
	switch {
	case errors.As(err, &configErr):
		return http.StatusBadRequest, CodeInvalidConfig
	case errors.As(err, &dupErr):
		return http.StatusConflict, CodeDuplicateJob
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, CodeNotFound
	case errors.As(err, &notRunning):
		return http.StatusConflict, CodeNotRunning
	case errors.As(err, &missingRetry):
		return http.StatusBadRequest, CodeMissingRetryData
	case errors.As(err, &notResumable):
		return http.StatusConflict, CodeNotResumable
	case errors.As(err, &launchErr):
		return http.StatusInternalServerError, CodeLaunchFailed
	}
	return http.StatusInternalServerError, CodeInternal
}

// RespondWithError writes err as the standard envelope.
func RespondWithError(w http.ResponseWriter, err error) {
	status, code := Classify(err)
	Respond(w, status, code, err.Error())
}

// Respond writes an explicit status/code/message envelope.
func Respond(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPError{Code: code, Message: message},
	})
}
