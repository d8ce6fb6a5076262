package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	drepo "StockSim/internal/domain/repository"
	xhttp "StockSim/pkg/http"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports liveness plus the state of each backing service.
type HealthHandler struct {
	checks  map[string]drepo.HealthChecker
	timeout time.Duration
}

func NewHealthHandler(checks map[string]drepo.HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for _, name := range names {
		chk := h.checks[name]
		if chk == nil {
			continue
		}
		if err := chk.Health(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	return xhttp.DataResponse(c, status, map[string]interface{}{"dependencies": deps})
}
