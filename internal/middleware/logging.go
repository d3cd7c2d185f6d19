package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// accessFields collects values handlers learn while serving a request
type accessFields struct {
	runID string
}

type accessFieldsKey struct{}

// SetRunID records the pipeline run id on the access log line of the request
// carried by ctx. It is a no-op outside Logging.
func SetRunID(ctx context.Context, runID string) {
	if f, ok := ctx.Value(accessFieldsKey{}).(*accessFields); ok {
		f.runID = runID
	}
}

// routePattern is the matched chi route, or the raw path outside a chi router
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		fields := &accessFields{}

		next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), accessFieldsKey{}, fields)))

		ev := log.Info()
		switch {
		case rw.status >= http.StatusInternalServerError:
			ev = log.Warn()
		case r.URL.Path == "/health" || r.URL.Path == "/metrics":
			ev = log.Debug()
		}
		ev = ev.Str("request_id", GetRequestID(r.Context())).
			Str("method", r.Method).
			Str("route", routePattern(r)).
			Str("path", r.URL.Path).
			Int("status", rw.status).
			Int("size", rw.size).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent())
		if fields.runID != "" {
			ev = ev.Str("run_id", fields.runID)
		}
		ev.Msg("request")
	})
}
