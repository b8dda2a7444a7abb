package main

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ExportPayload is the debug dump of everything the aggregator fetched,
// flattened and sorted so diffs between exports stay readable. Companies
// carries per-company fetch counts; NetDeltas is the summed movement per
// item over the fetch window.
type ExportPayload struct {
	ExportTimestamp time.Time                  `json:"export_timestamp"`
	WindowStart     time.Time                  `json:"window_start"`
	WindowEnd       time.Time                  `json:"window_end"`
	Companies       []CompanySummary           `json:"companies"`
	FailedCompanies []string                   `json:"failed_companies,omitempty"`
	StockItems      []StockItem                `json:"stock_items"`
	Movements       []Movement                 `json:"stock_movements"`
	NetDeltas       map[string]decimal.Decimal `json:"net_deltas"`
}

// ExportSourceData runs the fetch and aggregation stages only and writes the
// merged result to a JSON file. It never touches the durable store, so it is
// safe against production while debugging source discrepancies.
func ExportSourceData(ctx context.Context, connectors []SourceConnector, since, until time.Time, path string, logger *logrus.Logger) error {
	agg, err := Aggregate(ctx, connectors, since, until, logger)
	if err != nil {
		return err
	}

	payload := ExportPayload{
		ExportTimestamp: time.Now(),
		WindowStart:     since,
		WindowEnd:       until,
		Companies:       agg.Sources,
		NetDeltas:       agg.Deltas(since, until),
	}
	for _, failure := range agg.Failures {
		payload.FailedCompanies = append(payload.FailedCompanies, failure.Company)
	}

	codes := make([]string, 0, len(agg.Items))
	for code := range agg.Items {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		payload.StockItems = append(payload.StockItems, agg.Items[code])
	}

	moveCodes := make([]string, 0, len(agg.Movements))
	for code := range agg.Movements {
		moveCodes = append(moveCodes, code)
	}
	sort.Strings(moveCodes)
	for _, code := range moveCodes {
		payload.Movements = append(payload.Movements, agg.Movements[code]...)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"file":      path,
		"items":     len(payload.StockItems),
		"movements": len(payload.Movements),
	}).Info("Source data exported")

	return nil
}
