package api

import (
	"MarketMonitor/internal/domain/models"
	"MarketMonitor/internal/usecase"
	xhttp "MarketMonitor/pkg/http"
	"MarketMonitor/pkg/logger"

	"github.com/labstack/echo/v4"
)

type PnlHandler struct {
	pnl *usecase.PnlUseCase
	log *logger.Logger
}

func NewPnlHandler(pnl *usecase.PnlUseCase, log *logger.Logger) *PnlHandler {
	return &PnlHandler{pnl: pnl, log: log.With("pnl_handler")}
}

func (h *PnlHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/pnl/recent", h.RecentPnl)
	g.GET("/pnl/inventory", h.InventoryPnl)
	g.GET("/pnl/multi-pair", h.MultiPair)
	g.GET("/markout", h.Markout)
	g.GET("/agents", h.Agents)
	g.GET("/mcp-tools", h.Tools)
}

func (h *PnlHandler) fail(c echo.Context, err error, what string) error {
	h.log.Error(what+" usecase error", logger.Error(err))
	return xhttp.AppErrorResponse(c, toAppError(err, what))
}

func (h *PnlHandler) RecentPnl(c echo.Context) error {
	req := &models.RecentPnlQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.pnl.RecentPnl(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, err, "recent pnl")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PnlHandler) InventoryPnl(c echo.Context) error {
	req := &models.InventoryPnlQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.pnl.InventoryPnl(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, err, "inventory pnl")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PnlHandler) Markout(c echo.Context) error {
	req := &models.MarkoutQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.pnl.Markout(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, err, "markout")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PnlHandler) Agents(c echo.Context) error {
	req := &models.AgentsQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.pnl.Agents(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, err, "agents")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PnlHandler) MultiPair(c echo.Context) error {
	req := &models.MultiPairQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.pnl.MultiPair(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, err, "multi-pair pnl")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PnlHandler) Tools(c echo.Context) error {
	res, err := h.pnl.Tools(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "tool list")
	}
	return xhttp.SuccessResponse(c, res)
}
