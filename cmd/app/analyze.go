package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"MarketMonitor/internal/domain/models"
	"MarketMonitor/internal/services/microstructure"
	"MarketMonitor/internal/services/regime"
	"MarketMonitor/internal/services/risk"
	"MarketMonitor/internal/usecase"
	"MarketMonitor/pkg/logger"
	"MarketMonitor/pkg/metrics"

	"github.com/spf13/cobra"
)

var (
	tradesFile    string
	orderbookFile string
	compact       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the analytics engines over local JSON files",
	Long: `Reads trade bars (and optionally order-book bars) from JSON files and prints
the combined report. Files hold either an array of bars or an upstream
summary object with a "data" array.

Example:
  marketmonitor analyze --trades trades.json --orderbook orderbook.json`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&tradesFile, "trades", "", "trade bars JSON file (required)")
	analyzeCmd.Flags().StringVar(&orderbookFile, "orderbook", "", "order-book bars JSON file")
	analyzeCmd.Flags().BoolVar(&compact, "compact", false, "print single-line JSON")
	_ = analyzeCmd.MarkFlagRequired("trades")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	req := models.AnalyzeRequest{}
	if err := readBars(tradesFile, &req.Trades); err != nil {
		return fmt.Errorf("trades: %w", err)
	}
	if orderbookFile != "" {
		if err := readBars(orderbookFile, &req.Orderbook); err != nil {
			return fmt.Errorf("orderbook: %w", err)
		}
	}

	uc := usecase.NewAnalyticsUseCase(nil, microstructure.NewEngine(), regime.NewClassifier(), risk.NewEngine(), nil, metrics.Nop{}, logger.Nop())
	return writeReport(cmd.OutOrStdout(), uc.Analyze(req), !compact)
}

// readBars accepts a bare array or an object with a "data" array.
func readBars[T any](path string, dest *[]T) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return errors.New("empty file")
	}
	if b[0] == '[' {
		return json.Unmarshal(b, dest)
	}
	var wrapped struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	*dest = wrapped.Data
	return nil
}

func writeReport(w io.Writer, report *models.AnalyticsReport, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(report)
}
