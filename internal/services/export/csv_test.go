package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"MarketMonitor/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTrades(t *testing.T) {
	rows := []models.TradeInterval{
		{
			Timestamp:  "2025-01-01 09:00",
			OHLC:       models.OHLC{Open: 100, High: 101.5, Low: 99, Close: 100.25},
			Volume:     12,
			Notional:   1203,
			VWAP:       100.25,
			TradeCount: 40,
			BuySell:    &models.BuySell{BuyVolume: 7, SellVolume: 5, BuyRatio: 0.5833, NetVolume: 2},
		},
		{Timestamp: "2025-01-01 09:01", OHLC: models.OHLC{Open: 1, High: 1, Low: 1, Close: 1}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTrades(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(TradeHeaders, ","), lines[0])
	assert.Equal(t, "2025-01-01 09:00,100,101.5,99,100.25,12,1203,100.25,40,7,5,0.5833,2", lines[1])
	assert.Equal(t, "2025-01-01 09:01,1,1,1,1,0,0,0,0,0,0,0,0", lines[2])
}

func TestWriteOrderbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOrderbook(&buf, []models.OrderbookInterval{{
		Timestamp:    "t0",
		MidPrice:     models.OHLC{Open: 10, High: 12, Low: 9, Close: 11},
		SpreadBps:    models.SpreadBps{Mean: 1.5, Min: 1, Max: 2},
		AvgBidDepth:  300,
		AvgAskDepth:  250,
		AvgImbalance: 0.1,
	}}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Timestamp,Mid Price Open,Mid Price Close,Mid Price High,Mid Price Low,Spread Mean (bps),Spread Min (bps),Spread Max (bps),Avg Bid Depth,Avg Ask Depth,Avg Imbalance", lines[0])
	assert.Equal(t, "t0,10,11,12,9,1.5,1,2,300,250,0.1", lines[1])
}

func TestWriteAnomaliesQuotes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAnomalies(&buf, []models.Anomaly{
		{Timestamp: "t0", Type: `spread, "wide"`, Value: 42, ZScore: -3.2},
	}))

	assert.Equal(t, "Timestamp,Type,Value,Z-Score\nt0,\"spread, \"\"wide\"\"\",42,-3.2\n", buf.String())
}

func TestWriteEmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, KindAnomalies, &models.MarketData{}))
	assert.Equal(t, "Timestamp,Type,Value,Z-Score\n", buf.String())
}

func TestFileName(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 890, time.FixedZone("KST", 9*3600))
	assert.Equal(t, "binance_BTCUSDT_2025-03-03T20-06-07_trades.csv", FileName("binance", "BTCUSDT", KindTrades, at))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Orderbook")
	require.NoError(t, err)
	assert.Equal(t, KindOrderbook, k)

	_, err = ParseKind("candles")
	assert.Error(t, err)
}
