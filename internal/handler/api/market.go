package api

import (
	"bytes"
	"time"

	"MarketMonitor/internal/domain/models"
	"MarketMonitor/internal/services/export"
	"MarketMonitor/internal/usecase"
	xhttp "MarketMonitor/pkg/http"
	"MarketMonitor/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MarketHandler serves the merged market view and its CSV downloads.
type MarketHandler struct {
	market *usecase.MarketDataUseCase
	log    *logger.Logger
	now    func() time.Time
}

func NewMarketHandler(market *usecase.MarketDataUseCase, log *logger.Logger) *MarketHandler {
	return &MarketHandler{market: market, log: log.With("market_handler"), now: time.Now}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/market-data", h.MarketData)
	g.GET("/available", h.Available)
	g.GET("/export/trades.csv", h.Export(export.KindTrades))
	g.GET("/export/orderbook.csv", h.Export(export.KindOrderbook))
	g.GET("/export/anomalies.csv", h.Export(export.KindAnomalies))
}

func (h *MarketHandler) MarketData(c echo.Context) error {
	req := &models.MarketQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.market.Get(c.Request().Context(), *req))
}

func (h *MarketHandler) Available(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.market.Available())
}

func (h *MarketHandler) Export(kind export.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := &models.MarketQuery{}
		if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
			return xhttp.BadRequestResponse(c, verr)
		}
		data := h.market.Get(c.Request().Context(), *req)

		var buf bytes.Buffer
		if err := export.Write(&buf, kind, data); err != nil {
			h.log.Error("csv export failed", logger.String("kind", string(kind)), logger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("export failed").WithError(err))
		}
		name := export.FileName(req.Exchange, req.Symbol, kind, h.now())
		return xhttp.AttachmentResponse(c, "text/csv; charset=utf-8", name, buf.Bytes())
	}
}
