package api

import (
	"MarketMonitor/internal/domain/models"
	"MarketMonitor/internal/service/stream"
	"MarketMonitor/internal/usecase"
	xhttp "MarketMonitor/pkg/http"
	"MarketMonitor/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AnalyticsHandler exposes the engines, snapshot history and the live stream.
type AnalyticsHandler struct {
	analytics *usecase.AnalyticsUseCase
	history   *usecase.HistoryUseCase
	hub       *stream.Hub
	log       *logger.Logger
}

func NewAnalyticsHandler(
	analytics *usecase.AnalyticsUseCase,
	history *usecase.HistoryUseCase,
	hub *stream.Hub,
	log *logger.Logger,
) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, history: history, hub: hub, log: log.With("analytics_handler")}
}

func (h *AnalyticsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/analytics")
	g.GET("/metrics", h.Metrics)
	g.GET("/regime", h.Regime)
	g.GET("/regime/timeline", h.RegimeTimeline)
	g.GET("/risk", h.Risk)
	g.GET("/risk/drawdown", h.Drawdown)
	g.GET("/report", h.Report)
	g.POST("/analyze", h.Analyze)
	g.GET("/history", h.History)

	if h.hub != nil {
		e.GET("/ws/analytics", h.Stream)
	}
}

func (h *AnalyticsHandler) Metrics(c echo.Context) error {
	req := &models.MarketQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.analytics.Metrics(c.Request().Context(), *req))
}

func (h *AnalyticsHandler) Regime(c echo.Context) error {
	req := &models.MarketQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.analytics.Regime(c.Request().Context(), *req))
}

func (h *AnalyticsHandler) RegimeTimeline(c echo.Context) error {
	req := &models.TimelineQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.analytics.RegimeTimeline(c.Request().Context(), *req))
}

func (h *AnalyticsHandler) Risk(c echo.Context) error {
	req := &models.MarketQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.analytics.Risk(c.Request().Context(), *req))
}

func (h *AnalyticsHandler) Drawdown(c echo.Context) error {
	req := &models.MarketQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.analytics.Drawdown(c.Request().Context(), *req))
}

func (h *AnalyticsHandler) Report(c echo.Context) error {
	req := &models.MarketQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	report := h.analytics.Report(c.Request().Context(), *req)
	if h.hub != nil {
		h.hub.Broadcast(req.Key(), report)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *AnalyticsHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.analytics.Analyze(*req))
}

func (h *AnalyticsHandler) History(c echo.Context) error {
	req := &models.HistoryQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.history.History(c.Request().Context(), *req)
	if err != nil {
		h.log.Error("history usecase error", logger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err, "snapshot history"))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Stream upgrades to a websocket subscribed to one market. A fresh report is
// computed on connect so the first frame does not wait for the poller.
func (h *AnalyticsHandler) Stream(c echo.Context) error {
	req := &models.MarketQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := req.Key()
	ctx := c.Request().Context()
	go func() {
		h.hub.Broadcast(key, h.analytics.Report(ctx, *req))
	}()

	if err := h.hub.Serve(c.Response(), c.Request(), key); err != nil {
		// the upgrader has already answered
		h.log.Warn("websocket upgrade failed", logger.String("market", key), logger.Error(err))
	}
	return nil
}
