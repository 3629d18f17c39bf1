package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mmynk/dailyexpenses/internal/metrics"
)

// Metrics records request counts and latencies by route template. Requests
// that match no route share one label so stray paths cannot grow the series.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r, st := withState(r)
			rec := recordStatus(w)

			next.ServeHTTP(rec, r)

			route := st.route
			if route == "" {
				route = unmatchedRoute
			}
			m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
