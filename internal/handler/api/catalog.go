package api

import (
	"net/http"

	"StockSim/internal/domain/models"
	"StockSim/internal/usecase"
	xhttp "StockSim/pkg/http"
	xlogger "StockSim/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CatalogHandler browses the ClickHouse warehouse.
type CatalogHandler struct {
	logger *xlogger.Logger
	uc     *usecase.CatalogUsecase
}

func NewCatalogHandler(logger *xlogger.Logger, uc *usecase.CatalogUsecase) *CatalogHandler {
	return &CatalogHandler{logger: logger, uc: uc}
}

func (h *CatalogHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/catalog")
	g.GET("/databases", h.Databases)
	g.GET("/tables", h.Tables)
	g.GET("/columns", h.Columns)
}

func (h *CatalogHandler) Databases(c echo.Context) error {
	return h.list(c, models.CatalogRequest{})
}

func (h *CatalogHandler) Tables(c echo.Context) error {
	req := &models.CatalogRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Database == "" {
		return xhttp.AppErrorResponse(c, required("database"))
	}
	return h.list(c, models.CatalogRequest{Database: req.Database})
}

func (h *CatalogHandler) Columns(c echo.Context) error {
	req := &models.CatalogRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Database == "" {
		return xhttp.AppErrorResponse(c, required("database"))
	}
	if req.Table == "" {
		return xhttp.AppErrorResponse(c, required("table"))
	}
	return h.list(c, *req)
}

func (h *CatalogHandler) list(c echo.Context, req models.CatalogRequest) error {
	res, err := h.uc.List(c.Request().Context(), req)
	if err != nil {
		appErr := toAppError(err)
		if appErr.Status >= 500 {
			h.logger.Error("catalog usecase error", xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	return xhttp.SuccessResponse(c, res)
}

func required(field string) *xhttp.AppError {
	return xhttp.NewAppError("ERR_REQUIRED", field, field+" is required", http.StatusBadRequest)
}
