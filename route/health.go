package route

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// HealthPath is where the health endpoint is usually mounted.
const HealthPath = "/-/health"

const healthTimeout = 5 * time.Second

// Checker reports whether a dependency is usable.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthStatus is the body of a health response.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health returns a handler that pings every checker. It responds 200 when
// all succeed and 503 otherwise.
func Health(checks map[string]Checker) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := HealthStatus{Status: "ok"}
		code := http.StatusOK

		if len(names) > 0 {
			status.Checks = make(map[string]string, len(names))
		}

		for _, name := range names {
			if err := checks[name].Ping(ctx); err != nil {
				slog.WarnContext(ctx, "health check failed", "check", name, "err", err)
				status.Checks[name] = "error"
				status.Status = "unavailable"
				code = http.StatusServiceUnavailable
				continue
			}
			status.Checks[name] = "ok"
		}

		_ = WriteJSON(w, code, status)
	}
}
