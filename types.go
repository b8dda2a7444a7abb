package main

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultCategory and DefaultUnit fill attribute gaps the way Tally
	// reports them for ungrouped items.
	DefaultCategory = "General"
	DefaultUnit     = "Nos"
)

// StockItem is one stock master row fetched from a company database.
// ItemCode doubles as the unified identifier across companies.
type StockItem struct {
	ItemCode       string          `json:"item_code"`
	ItemName       string          `json:"item_name"`
	Category       string          `json:"category"`
	Unit           string          `json:"unit"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

// Movement is one dated stock movement row from a company database.
// Quantity is signed, closing minus opening: receipts are positive,
// consumption is negative.
type Movement struct {
	ItemCode string          `json:"item_code"`
	Date     time.Time       `json:"date"`
	Quantity decimal.Decimal `json:"quantity_change"`
	Company  string          `json:"company,omitempty"`
}

// BaselineEntry is one physically counted item from the operator's CSV.
// BaselineDate anchors the movement window for that item.
type BaselineEntry struct {
	ItemCode      string
	ItemName      string
	PhysicalCount decimal.Decimal
	BaselineDate  time.Time
	Notes         string
}

// CleanSlateItem is the computed truth for one item, ready to publish.
// TallyBalance is the raw source closing balance, kept for comparison in
// dry-run output and exports; it is never published.
type CleanSlateItem struct {
	ItemCode         string          `json:"item_code"`
	ItemName         string          `json:"item_name"`
	Category         string          `json:"category"`
	Unit             string          `json:"unit"`
	CurrentStock     decimal.Decimal `json:"current_stock"`
	PhysicalBaseline decimal.Decimal `json:"physical_baseline"`
	TallyDelta       decimal.Decimal `json:"tally_delta"`
	TallyBalance     decimal.Decimal `json:"tally_balance"`
}

// CompanyFailure records one source company the aggregator could not read.
type CompanyFailure struct {
	Company string
	Err     error
}

// RunMeta carries the publishing metadata stamped onto every stock level row.
type RunMeta struct {
	SyncTime   time.Time
	SyncSource string
}

// SyncStatus is the terminal state of one sync run.
type SyncStatus string

const (
	StatusSuccess SyncStatus = "SUCCESS"
	StatusFailed  SyncStatus = "FAILED"
	StatusError   SyncStatus = "ERROR"
)

// RunStage names the phases a run walks through, in order. Stages are logged
// once each; no stage repeats within a run.
type RunStage string

const (
	StageInit        RunStage = "INIT"
	StageFetching    RunStage = "FETCHING"
	StageAggregating RunStage = "AGGREGATING"
	StageCalculating RunStage = "CALCULATING"
	StagePublishing  RunStage = "PUBLISHING"
)

// RunResult summarizes one orchestrator invocation.
type RunResult struct {
	Status         SyncStatus
	ItemsProcessed int
	Failures       []CompanyFailure
	Err            error
	Duration       time.Duration
}
