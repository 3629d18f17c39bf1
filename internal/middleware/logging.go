package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type stateKey struct{}

// unmatchedRoute labels requests that no route accepted.
const unmatchedRoute = "unmatched"

// requestState is shared between the middleware wrapped around the router
// and the handlers inside it, so log lines and metrics can include the
// matched route and the authenticated user.
type requestState struct {
	route  string
	userID string
}

func stateFrom(ctx context.Context) *requestState {
	st, _ := ctx.Value(stateKey{}).(*requestState)
	return st
}

// withState returns r carrying a requestState, reusing one an outer
// middleware already attached.
func withState(r *http.Request) (*http.Request, *requestState) {
	if st := stateFrom(r.Context()); st != nil {
		return r, st
	}
	st := &requestState{}
	return r.WithContext(context.WithValue(r.Context(), stateKey{}, st)), st
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func recordStatus(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

// RecordRoute stores the matched route's path template for Logging and
// Metrics. Install it with Router.Use; it only runs for matched routes.
func RecordRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if st := stateFrom(r.Context()); st != nil {
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					st.route = tpl
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Logging logs every request with its route, status, duration and user.
// Server errors are logged at error level, client errors at warn. Wrap the
// whole router so unmatched requests are logged too.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r, st := withState(r)
			rec := recordStatus(w)

			next.ServeHTTP(rec, r)

			route := st.route
			if route == "" {
				route = r.URL.Path
			}
			attrs := []any{
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"user_id", st.userID,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			switch {
			case rec.status >= 500:
				logger.Error("Request failed", attrs...)
			case rec.status >= 400:
				logger.Warn("Request rejected", attrs...)
			default:
				logger.Info("Request ok", attrs...)
			}
		})
	}
}
