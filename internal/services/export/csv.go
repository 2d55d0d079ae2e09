package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"MarketMonitor/internal/domain/models"
	"MarketMonitor/pkg/util"
)

// Kind selects which part of the market view is exported.
type Kind string

const (
	KindTrades    Kind = "trades"
	KindOrderbook Kind = "orderbook"
	KindAnomalies Kind = "anomalies"
)

var (
	TradeHeaders = []string{
		"Timestamp", "Open", "High", "Low", "Close", "Volume", "Notional", "VWAP",
		"Trade Count", "Buy Volume", "Sell Volume", "Buy Ratio", "Net Volume",
	}
	OrderbookHeaders = []string{
		"Timestamp", "Mid Price Open", "Mid Price Close", "Mid Price High", "Mid Price Low",
		"Spread Mean (bps)", "Spread Min (bps)", "Spread Max (bps)",
		"Avg Bid Depth", "Avg Ask Depth", "Avg Imbalance",
	}
	AnomalyHeaders = []string{"Timestamp", "Type", "Value", "Z-Score"}
)

// ParseKind accepts trades, orderbook or anomalies.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindTrades, KindOrderbook, KindAnomalies:
		return k, nil
	default:
		return "", fmt.Errorf("unknown export kind %q", s)
	}
}

// FileName renders {exchange}_{symbol}_{YYYY-MM-DDTHH-MM-SS}_{kind}.csv in UTC.
func FileName(exchange, symbol string, kind Kind, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s.csv", exchange, symbol, util.FileStamp(at), kind)
}

// Write renders the requested kind of data as CSV.
func Write(w io.Writer, kind Kind, data *models.MarketData) error {
	switch kind {
	case KindTrades:
		return WriteTrades(w, data.TradesSummary)
	case KindOrderbook:
		return WriteOrderbook(w, data.OrderbookSummary)
	case KindAnomalies:
		return WriteAnomalies(w, data.Anomalies)
	default:
		return fmt.Errorf("unknown export kind %q", kind)
	}
}

func WriteTrades(w io.Writer, rows []models.TradeInterval) error {
	records := make([][]string, 0, len(rows))
	for _, t := range rows {
		records = append(records, []string{
			t.Timestamp,
			num(t.OHLC.Open), num(t.OHLC.High), num(t.OHLC.Low), num(t.OHLC.Close),
			num(t.Volume), num(t.Notional), num(t.VWAP),
			strconv.Itoa(t.TradeCount),
			num(t.BuyVolume()), num(t.SellVolume()), num(buyRatio(t)), num(t.NetVolume()),
		})
	}
	return writeAll(w, TradeHeaders, records)
}

func WriteOrderbook(w io.Writer, rows []models.OrderbookInterval) error {
	records := make([][]string, 0, len(rows))
	for _, o := range rows {
		records = append(records, []string{
			o.Timestamp,
			num(o.MidPrice.Open), num(o.MidPrice.Close), num(o.MidPrice.High), num(o.MidPrice.Low),
			num(o.SpreadBps.Mean), num(o.SpreadBps.Min), num(o.SpreadBps.Max),
			num(o.AvgBidDepth), num(o.AvgAskDepth), num(o.AvgImbalance),
		})
	}
	return writeAll(w, OrderbookHeaders, records)
}

func WriteAnomalies(w io.Writer, rows []models.Anomaly) error {
	records := make([][]string, 0, len(rows))
	for _, a := range rows {
		records = append(records, []string{a.Timestamp, a.Type, num(a.Value), num(a.ZScore)})
	}
	return writeAll(w, AnomalyHeaders, records)
}

// The download reports a missing split as 0 rather than the 0.5 used by the engines.
func buyRatio(t models.TradeInterval) float64 {
	if t.BuySell == nil {
		return 0
	}
	return t.BuySell.BuyRatio
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeAll(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}
