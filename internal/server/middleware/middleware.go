// Package middleware carries the HTTP middleware shared by every route:
// structured request logging, panic recovery, and the standard error
// responses for unmatched routes.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/pakmirror/pakmirror/internal/errors"
)

// RequestLogger logs one line per request with method, path, status, and
// duration.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// Recovery converts handler panics into the standard INTERNAL envelope so a
// single bad request never takes the server down.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("handler panicked",
						zap.String("path", r.URL.Path),
						zap.Any("panic", rec),
					)
					apperrors.Respond(w, http.StatusInternalServerError,
						apperrors.CodeInternal, fmt.Sprintf("panic: %v", rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// NotFound is the router-level handler for unmatched paths.
func NotFound(w http.ResponseWriter, r *http.Request) {
	apperrors.Respond(w, http.StatusNotFound, apperrors.CodeNotFound,
		fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}

// MethodNotAllowed is the router-level handler for known paths with the
// wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apperrors.Respond(w, http.StatusMethodNotAllowed, apperrors.CodeMethodNotAllowed,
		fmt.Sprintf("method %s not allowed for %s", r.Method, r.URL.Path))
}
