package main

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ComputeCleanSlate derives the authoritative stock level for every item:
// physical baseline plus the net movement between that item's baseline date
// and until, the run timestamp. Movements dated at or after until are
// post-dated vouchers and do not count yet. Items with no baseline entry
// start from zero, anchored at defaultAnchor.
//
// The item universe is the union of aggregated source items and baseline
// entries, so a counted item missing from every company still publishes and a
// source item nobody counted yet still gets a zero-baseline level. Output is
// sorted by item code.
func ComputeCleanSlate(baseline map[string]BaselineEntry, agg *AggregateResult, defaultAnchor, until time.Time) []CleanSlateItem {
	codes := make(map[string]struct{}, len(agg.Items)+len(baseline))
	for code := range agg.Items {
		codes[code] = struct{}{}
	}
	for code := range baseline {
		codes[code] = struct{}{}
	}

	items := make([]CleanSlateItem, 0, len(codes))
	for code := range codes {
		physical := decimal.Zero
		anchor := defaultAnchor

		entry, counted := baseline[code]
		if counted {
			physical = entry.PhysicalCount
			anchor = entry.BaselineDate
		}

		delta := agg.DeltaBetween(code, anchor, until)

		item := CleanSlateItem{
			ItemCode:         code,
			ItemName:         code,
			Category:         DefaultCategory,
			Unit:             DefaultUnit,
			CurrentStock:     physical.Add(delta),
			PhysicalBaseline: physical,
			TallyDelta:       delta,
		}

		if source, ok := agg.Items[code]; ok {
			item.ItemName = source.ItemName
			item.Category = source.Category
			item.Unit = source.Unit
			item.TallyBalance = source.ClosingBalance
		} else if counted && entry.ItemName != "" {
			item.ItemName = entry.ItemName
		}

		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ItemCode < items[j].ItemCode })
	return items
}
