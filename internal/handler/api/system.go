package api

import (
	"context"
	"time"

	"MarketMonitor/internal/service/latency"
	xhttp "MarketMonitor/pkg/http"

	"github.com/labstack/echo/v4"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	MCPAPIBase string            `json:"mcpApiBase"`
	Checks     map[string]string `json:"checks,omitempty"`
}

type SystemHandler struct {
	upstream string
	checks   []HealthCheck
	tracker  *latency.Tracker
	now      func() time.Time
}

func NewSystemHandler(upstream string, tracker *latency.Tracker, checks ...HealthCheck) *SystemHandler {
	return &SystemHandler{upstream: upstream, checks: checks, tracker: tracker, now: time.Now}
}

func (h *SystemHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/api/latency", h.Latency)
}

// Health reports "degraded" when a dependency check fails; the service
// itself still answers 200.
func (h *SystemHandler) Health(c echo.Context) error {
	res := HealthResponse{
		Status:     "ok",
		Timestamp:  h.now().UTC().Format(time.RFC3339Nano),
		MCPAPIBase: h.upstream,
	}
	if len(h.checks) > 0 {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		res.Checks = make(map[string]string, len(h.checks))
		for _, chk := range h.checks {
			if err := chk.Check(ctx); err != nil {
				res.Checks[chk.Name] = err.Error()
				res.Status = "degraded"
				continue
			}
			res.Checks[chk.Name] = "ok"
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SystemHandler) Latency(c echo.Context) error {
	if route := c.QueryParam("route"); route != "" {
		stats, ok := h.tracker.Route(route)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no samples for route "+route))
		}
		return xhttp.SuccessResponse(c, stats)
	}
	return xhttp.SuccessResponse(c, h.tracker.Stats())
}
