package api

import (
	"StockSim/internal/domain/models"
	"StockSim/internal/usecase"
	xhttp "StockSim/pkg/http"
	"StockSim/pkg/http/middleware"
	xlogger "StockSim/pkg/logger"
	"StockSim/pkg/queue"

	"github.com/labstack/echo/v4"
)

// SimulationHandler serves series previews, simulations and their history.
type SimulationHandler struct {
	logger  *xlogger.Logger
	uc      *usecase.SimulationUsecase
	limiter middleware.Allower
	jobs    queue.Publisher
}

func NewSimulationHandler(logger *xlogger.Logger, uc *usecase.SimulationUsecase, limiter middleware.Allower) *SimulationHandler {
	return &SimulationHandler{logger: logger, uc: uc, limiter: limiter}
}

// SetJobQueue enables POST /api/simulations/jobs. Call before RegisterRoutes.
func (h *SimulationHandler) SetJobQueue(jobs queue.Publisher) {
	h.jobs = jobs
}

func (h *SimulationHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/series", h.Series)
	g.POST("/simulations", h.Simulate, middleware.RateLimit(h.limiter))
	if h.jobs != nil {
		g.POST("/simulations/jobs", h.Enqueue, middleware.RateLimit(h.limiter))
	}
	g.GET("/simulations", h.List)
	g.GET("/simulations/:id", h.Get)
	g.GET("/simulations/stream", h.Stream, middleware.RateLimit(h.limiter))
}

func (h *SimulationHandler) Series(c echo.Context) error {
	req := &models.SeriesQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.Series(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "series", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SimulationHandler) Simulate(c echo.Context) error {
	req := &models.SimulationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	out, err := h.uc.Simulate(c.Request().Context(), *req, models.TriggerHTTP)
	if err != nil {
		return h.fail(c, "simulate", err)
	}
	return xhttp.CreatedResponse(c, out.Response(req.IncludePaths))
}

// Enqueue validates the request and hands it to the job queue.
func (h *SimulationHandler) Enqueue(c echo.Context) error {
	req := &models.SimulationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.uc.Check(*req); err != nil {
		return h.fail(c, "enqueue simulation", err)
	}
	id, err := h.jobs.Enqueue(c.Request().Context(), usecase.QueueJobType, req)
	if err != nil {
		return h.fail(c, "enqueue simulation", err)
	}
	return xhttp.AcceptedResponse(c, models.JobAccepted{JobID: id, Type: usecase.QueueJobType})
}

func (h *SimulationHandler) List(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.uc.ListSimulations(c.Request().Context(), req.Limit)
	if err != nil {
		return h.fail(c, "list simulations", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *SimulationHandler) Get(c echo.Context) error {
	req := &models.SimulationIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, err := h.uc.GetSimulation(c.Request().Context(), req.ID)
	if err != nil {
		return h.fail(c, "get simulation", err)
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *SimulationHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.logger.Error(op+" usecase error", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
