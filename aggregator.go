package main

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AggregateResult is the merged view across every reachable company.
// Items is keyed by item code with last writer in configured company order
// winning on attribute conflicts. Movements keeps every dated row so deltas
// can be re-anchored per item later. Sources counts what each reachable
// company contributed.
type AggregateResult struct {
	Items     map[string]StockItem
	Movements map[string][]Movement
	Sources   []CompanySummary
	Failures  []CompanyFailure
}

// CompanySummary counts one company's contribution to the merge.
type CompanySummary struct {
	Company   string `json:"company"`
	Items     int    `json:"items"`
	Movements int    `json:"movements"`
}

// DeltaBetween folds one item's movements dated on or after since and
// strictly before until into a net quantity change. Items with no movements
// in the window contribute zero.
func (r *AggregateResult) DeltaBetween(code string, since, until time.Time) decimal.Decimal {
	delta := decimal.Zero
	for _, movement := range r.Movements[code] {
		if movement.Date.Before(since) || !movement.Date.Before(until) {
			continue
		}
		delta = delta.Add(movement.Quantity)
	}
	return delta
}

// Deltas folds every item's movements for a single shared window.
func (r *AggregateResult) Deltas(since, until time.Time) map[string]decimal.Decimal {
	deltas := make(map[string]decimal.Decimal, len(r.Movements))
	for code := range r.Movements {
		deltas[code] = r.DeltaBetween(code, since, until)
	}
	return deltas
}

// companyResult carries one worker's fetch outcome into the merge loop.
type companyResult struct {
	index     int
	company   string
	items     []StockItem
	movements []Movement
	err       error
}

// Aggregate fans the same fetch out across all connectors, one goroutine per
// company, then merges whatever arrived. Movements are fetched for the
// half-open window since..until. A failed company is recorded and tolerated;
// only when every company fails does the run abort with AggregationError.
func Aggregate(ctx context.Context, connectors []SourceConnector, since, until time.Time, logger *logrus.Logger) (*AggregateResult, error) {
	results := make(chan companyResult, len(connectors))

	var wg sync.WaitGroup
	for i, connector := range connectors {
		wg.Add(1)
		go func(index int, connector SourceConnector) {
			defer wg.Done()
			results <- fetchCompany(ctx, index, connector, since, until)
		}(i, connector)
	}
	wg.Wait()
	close(results)

	// Replay results in configured company order so the merge is
	// deterministic regardless of which goroutine finished first.
	ordered := make([]companyResult, len(connectors))
	for result := range results {
		ordered[result.index] = result
	}

	agg := &AggregateResult{
		Items:     make(map[string]StockItem),
		Movements: make(map[string][]Movement),
	}
	for _, result := range ordered {
		if result.err != nil {
			logger.WithField("company", result.company).Warnf("Source fetch failed: %v", result.err)
			agg.Failures = append(agg.Failures, CompanyFailure{Company: result.company, Err: result.err})
			continue
		}

		for _, item := range result.items {
			agg.Items[item.ItemCode] = item
		}
		for _, movement := range result.movements {
			agg.Movements[movement.ItemCode] = append(agg.Movements[movement.ItemCode], movement)
		}
		agg.Sources = append(agg.Sources, CompanySummary{
			Company:   result.company,
			Items:     len(result.items),
			Movements: len(result.movements),
		})

		logger.WithFields(logrus.Fields{
			"company":   result.company,
			"items":     len(result.items),
			"movements": len(result.movements),
		}).Info("Fetched company data")
	}

	if len(connectors) > 0 && len(agg.Failures) == len(connectors) {
		return nil, &AggregationError{Failures: agg.Failures}
	}

	return agg, nil
}

func fetchCompany(ctx context.Context, index int, connector SourceConnector, since, until time.Time) companyResult {
	result := companyResult{index: index, company: connector.CompanyName()}

	if err := connector.Connect(ctx); err != nil {
		result.err = err
		return result
	}
	defer connector.Close()

	items, err := connector.FetchStockItems(ctx)
	if err != nil {
		result.err = err
		return result
	}

	movements, err := connector.FetchMovements(ctx, since, until)
	if err != nil {
		result.err = err
		return result
	}

	result.items = items
	result.movements = movements
	return result
}
