package http

import (
	"context"
	stdhttp "net/http"
	"time"
)

// HealthCheck checks one dependency. Name appears in the failure body.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HandleHealth reports liveness plus the state of the configured dependencies.
// Any failing check turns the response into a 503.
func HandleHealth(checks ...HealthCheck) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				w.WriteHeader(stdhttp.StatusServiceUnavailable)
				_, _ = w.Write([]byte(c.Name + " unavailable"))
				return
			}
		}
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
