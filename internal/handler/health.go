package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is a liveness probe for load balancers.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Pinger is a dependency whose reachability is reported by Check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// HealthHandler reports the state of backing services. Only the
// dependencies named in Required turn the response into a 503.
type HealthHandler struct {
	Deps     map[string]Pinger
	Required map[string]bool
}

// Check pings every dependency and reports "up", "down" or the error.
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.Deps))
	for name, p := range h.Deps {
		if p == nil {
			deps[name] = "disabled"
			continue
		}
		if err := p.PingContext(ctx); err != nil {
			deps[name] = "down: " + err.Error()
			if h.Required[name] {
				status = http.StatusServiceUnavailable
			}
			continue
		}
		deps[name] = "up"
	}
	msg := "Server is healthy"
	if status != http.StatusOK {
		msg = "Server is degraded"
	}
	return respond(c, status, deps, msg)
}
