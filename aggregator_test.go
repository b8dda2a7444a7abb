package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeConnector stands in for a company database. Each instance is touched
// by exactly one aggregator goroutine, mirroring the real contract. A delay
// makes the fetch finish late so completion order can be forced in tests.
type fakeConnector struct {
	name       string
	items      []StockItem
	movements  []Movement
	delay      time.Duration
	connectErr error
	fetchErr   error
	closed     bool
}

func (f *fakeConnector) CompanyName() string { return f.name }

func (f *fakeConnector) Connect(ctx context.Context) error { return f.connectErr }

func (f *fakeConnector) FetchStockItems(ctx context.Context) ([]StockItem, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.items, nil
}

func (f *fakeConnector) FetchMovements(ctx context.Context, since, until time.Time) ([]Movement, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []Movement
	for _, movement := range f.movements {
		if movement.Date.Before(since) || !movement.Date.Before(until) {
			continue
		}
		out = append(out, movement)
	}
	return out, nil
}

func (f *fakeConnector) Close() error {
	f.closed = true
	return nil
}

func TestAggregateMergesMovementsAcrossCompanies(t *testing.T) {
	companyA := &fakeConnector{
		name:  "Company A",
		items: []StockItem{{ItemCode: "BRAKE001", ItemName: "BRAKE001", Category: "Spares", Unit: "Nos"}},
		movements: []Movement{
			{ItemCode: "BRAKE001", Date: date("2024-01-10"), Quantity: dec("25"), Company: "Company A"},
		},
	}
	companyB := &fakeConnector{
		name:  "Company B",
		items: []StockItem{{ItemCode: "BRAKE001", ItemName: "BRAKE001", Category: "Brakes", Unit: "Box"}},
		movements: []Movement{
			{ItemCode: "BRAKE001", Date: date("2024-01-12"), Quantity: dec("20"), Company: "Company B"},
		},
	}

	agg, err := Aggregate(context.Background(), []SourceConnector{companyA, companyB}, date("2024-01-01"), date("2025-01-01"), newTestLogger())
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if got := agg.DeltaBetween("BRAKE001", date("2024-01-01"), date("2025-01-01")); !got.Equal(dec("45")) {
		t.Errorf("merged delta = %s, want 45", got)
	}
	if len(agg.Movements["BRAKE001"]) != 2 {
		t.Errorf("kept %d movement rows, want 2", len(agg.Movements["BRAKE001"]))
	}
	if len(agg.Failures) != 0 {
		t.Errorf("failures = %d, want 0", len(agg.Failures))
	}
	if len(agg.Sources) != 2 || agg.Sources[0].Items != 1 || agg.Sources[1].Movements != 1 {
		t.Errorf("sources = %+v, want per-company counts for both", agg.Sources)
	}

	// Attribute conflicts resolve to the last company in configured order.
	item := agg.Items["BRAKE001"]
	if item.Category != "Brakes" || item.Unit != "Box" {
		t.Errorf("merged attributes = %s/%s, want Brakes/Box", item.Category, item.Unit)
	}
}

func TestAggregateMergeOrderIgnoresCompletionOrder(t *testing.T) {
	// Company A finishes last; the merge must still treat Company B as the
	// last writer because B comes later in configured order.
	slow := &fakeConnector{
		name:  "Company A",
		delay: 30 * time.Millisecond,
		items: []StockItem{{ItemCode: "BRAKE001", ItemName: "BRAKE001", Category: "Spares", Unit: "Nos"}},
	}
	fast := &fakeConnector{
		name:  "Company B",
		items: []StockItem{{ItemCode: "BRAKE001", ItemName: "BRAKE001", Category: "Brakes", Unit: "Box"}},
	}

	agg, err := Aggregate(context.Background(), []SourceConnector{slow, fast}, date("2024-01-01"), date("2025-01-01"), newTestLogger())
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	item := agg.Items["BRAKE001"]
	if item.Category != "Brakes" || item.Unit != "Box" {
		t.Errorf("merged attributes = %s/%s, want Brakes/Box from the configured-last company", item.Category, item.Unit)
	}
	if len(agg.Sources) != 2 || agg.Sources[0].Company != "Company A" {
		t.Errorf("sources = %+v, want configured order regardless of completion", agg.Sources)
	}
}

func TestAggregateToleratesPartialFailure(t *testing.T) {
	healthy := &fakeConnector{
		name:  "Company A",
		items: []StockItem{{ItemCode: "OIL005", ItemName: "OIL005"}},
	}
	down := &fakeConnector{
		name:       "Company B",
		connectErr: &ConnectionError{Company: "Company B", Timeout: true, Err: errors.New("dial timeout")},
	}

	agg, err := Aggregate(context.Background(), []SourceConnector{healthy, down}, date("2024-01-01"), date("2025-01-01"), newTestLogger())
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if len(agg.Failures) != 1 || agg.Failures[0].Company != "Company B" {
		t.Fatalf("failures = %+v, want one for Company B", agg.Failures)
	}
	if _, ok := agg.Items["OIL005"]; !ok {
		t.Error("healthy company's items missing from the merge")
	}
	if len(agg.Sources) != 1 || agg.Sources[0].Company != "Company A" {
		t.Errorf("sources = %+v, want only the reachable company counted", agg.Sources)
	}
}

func TestAggregateAllCompaniesFailed(t *testing.T) {
	down := func(name string) *fakeConnector {
		return &fakeConnector{name: name, connectErr: errors.New("connection refused")}
	}

	_, err := Aggregate(context.Background(), []SourceConnector{down("A"), down("B"), down("C")}, date("2024-01-01"), date("2025-01-01"), newTestLogger())

	var aggErr *AggregationError
	if !errors.As(err, &aggErr) {
		t.Fatalf("expected AggregationError, got %v", err)
	}
	if len(aggErr.Failures) != 3 {
		t.Errorf("recorded %d failures, want 3", len(aggErr.Failures))
	}
}

func TestAggregateClosesConnectors(t *testing.T) {
	healthy := &fakeConnector{name: "A"}
	fetchFails := &fakeConnector{name: "B", fetchErr: errors.New("query killed")}
	connectFails := &fakeConnector{name: "C", connectErr: errors.New("refused")}

	_, err := Aggregate(context.Background(), []SourceConnector{healthy, fetchFails, connectFails}, date("2024-01-01"), date("2025-01-01"), newTestLogger())
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if !healthy.closed {
		t.Error("healthy connector left open")
	}
	if !fetchFails.closed {
		t.Error("connector whose fetch failed left open")
	}
	if connectFails.closed {
		t.Error("never-connected connector should not be closed")
	}
}

func TestAggregateAppliesWindow(t *testing.T) {
	connector := &fakeConnector{
		name: "A",
		movements: []Movement{
			{ItemCode: "X", Date: date("2023-06-01"), Quantity: dec("100")},
			{ItemCode: "X", Date: date("2024-02-01"), Quantity: dec("5")},
			{ItemCode: "X", Date: date("2024-09-01"), Quantity: dec("42")},
		},
	}

	agg, err := Aggregate(context.Background(), []SourceConnector{connector}, date("2024-01-01"), date("2024-06-01"), newTestLogger())
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if got := len(agg.Movements["X"]); got != 1 {
		t.Fatalf("kept %d movements, want only the one inside the window", got)
	}
	if !agg.Movements["X"][0].Date.Equal(date("2024-02-01")) {
		t.Errorf("kept movement dated %s, want the February row", agg.Movements["X"][0].Date.Format("2006-01-02"))
	}
}
