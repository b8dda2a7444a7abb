package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// storePublisher is the part of Publisher the orchestrator depends on.
type storePublisher interface {
	Ping(ctx context.Context) error
	Publish(ctx context.Context, items []CleanSlateItem, meta RunMeta) (int, error)
	WriteSyncLog(record SyncLog) error
}

// SyncService sequences one end-to-end reconciliation run:
// fetch, aggregate, calculate, publish, log. The physical baseline is loaded
// by the caller before any connection is attempted; Run never touches the
// filesystem.
type SyncService struct {
	cfg        *Config
	logger     *logrus.Logger
	connectors []SourceConnector
	baseline   map[string]BaselineEntry
	store      storePublisher
}

func NewSyncService(cfg *Config, logger *logrus.Logger, connectors []SourceConnector, baseline map[string]BaselineEntry, store storePublisher) *SyncService {
	return &SyncService{
		cfg:        cfg,
		logger:     logger,
		connectors: connectors,
		baseline:   baseline,
		store:      store,
	}
}

// Run executes the full pipeline under the run deadline and always leaves a
// sync log row behind, whatever the outcome. Dry runs publish nothing and
// log nothing durable.
func (s *SyncService) Run(ctx context.Context) *RunResult {
	started := time.Now()
	result := &RunResult{Status: StatusError}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Sync.RunTimeout())
	defer cancel()

	s.stage(StageInit, "Starting clean slate sync", logrus.Fields{
		"companies": len(s.connectors),
		"dry_run":   s.cfg.Sync.DryRun,
	})

	err := s.pipeline(runCtx, started, result)
	result.Err = err
	result.Duration = time.Since(started)

	switch {
	case err != nil:
		result.Status = StatusError
	case len(result.Failures) > 0:
		result.Status = StatusFailed
	default:
		result.Status = StatusSuccess
	}

	if !s.cfg.Sync.DryRun {
		s.writeSyncLog(started, result)
	}

	ShowRunSummary(result)
	return result
}

func (s *SyncService) pipeline(ctx context.Context, started time.Time, result *RunResult) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("durable store unreachable: %w", err)
	}

	// Items never counted fall back to a wide window; the fetch has to
	// cover the earliest anchor any item will use. The run start caps the
	// window so post-dated vouchers wait for the next run.
	defaultAnchor := started.AddDate(0, 0, -s.cfg.Sync.MovementDaysBack)
	since := earliestAnchor(s.baseline, defaultAnchor)

	s.stage(StageFetching, "Fetching stock data from source companies", logrus.Fields{
		"since":     since.Format(baselineDateLayout),
		"until":     started.Format(baselineDateLayout),
		"companies": len(s.connectors),
	})
	agg, err := Aggregate(ctx, s.connectors, since, started, s.logger)
	if err != nil {
		var aggErr *AggregationError
		if errors.As(err, &aggErr) {
			result.Failures = aggErr.Failures
		}
		return err
	}
	result.Failures = agg.Failures

	s.stage(StageAggregating, "Merged source data", logrus.Fields{
		"items":            len(agg.Items),
		"failed_companies": len(agg.Failures),
	})

	s.stage(StageCalculating, "Calculating clean slate stock levels", nil)
	items := ComputeCleanSlate(s.baseline, agg, defaultAnchor, started)
	s.logger.WithField("items", len(items)).Info("Clean slate calculated")

	if s.cfg.Sync.DryRun {
		ShowDryRunItems(items)
		s.logger.Info("Dry run complete, nothing published")
		result.ItemsProcessed = len(items)
		return nil
	}

	s.stage(StagePublishing, "Publishing to durable store", logrus.Fields{"items": len(items)})
	processed, err := s.store.Publish(ctx, items, RunMeta{
		SyncTime:   started,
		SyncSource: s.cfg.Sync.SyncSource,
	})
	result.ItemsProcessed = processed
	return err
}

func (s *SyncService) stage(stage RunStage, message string, fields logrus.Fields) {
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["stage"] = stage
	s.logger.WithFields(fields).Info(message)
}

func (s *SyncService) writeSyncLog(started time.Time, result *RunResult) {
	record := SyncLog{
		SyncTimestamp:   started,
		ItemsProcessed:  result.ItemsProcessed,
		Status:          result.Status,
		DurationSeconds: result.Duration.Seconds(),
	}
	if message := runErrorMessage(result); message != "" {
		record.ErrorMessage = &message
	}

	if err := s.store.WriteSyncLog(record); err != nil {
		s.logger.Errorf("Failed to write sync log row: %v", err)
	}
}

// runErrorMessage builds the audit error detail: the fatal error if there is
// one, plus per-company failures unless they are already part of it.
func runErrorMessage(result *RunResult) string {
	var aggErr *AggregationError
	switch {
	case result.Err != nil && len(result.Failures) > 0 && !errors.As(result.Err, &aggErr):
		return result.Err.Error() + "; " + failureSummary(result.Failures)
	case result.Err != nil:
		return result.Err.Error()
	case len(result.Failures) > 0:
		return failureSummary(result.Failures)
	default:
		return ""
	}
}

// earliestAnchor picks the oldest window start any item will need.
func earliestAnchor(baseline map[string]BaselineEntry, fallback time.Time) time.Time {
	earliest := fallback
	for _, entry := range baseline {
		if entry.BaselineDate.Before(earliest) {
			earliest = entry.BaselineDate
		}
	}
	return earliest
}
