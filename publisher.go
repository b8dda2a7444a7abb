package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const syncLogTimeout = 15 * time.Second

// Publisher owns every write to the durable store: item and stock level
// upserts plus the per-run sync log row.
type Publisher struct {
	db        *gorm.DB
	logger    *logrus.Logger
	batchSize int
}

// NewPublisher wraps an open store connection.
func NewPublisher(db *gorm.DB, logger *logrus.Logger, cfg SyncConfig) *Publisher {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Publisher{db: db, logger: logger, batchSize: batchSize}
}

// Ping verifies the store connection is alive.
func (p *Publisher) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Publish upserts every computed item and its stock level in item code
// order, one transaction per item so a mid-run failure loses at most the
// current item. On failure it returns a PublishError carrying the count
// already committed; those items stay published.
func (p *Publisher) Publish(ctx context.Context, items []CleanSlateItem, meta RunMeta) (int, error) {
	processed := 0

	for start := 0; start < len(items); start += p.batchSize {
		end := start + p.batchSize
		if end > len(items) {
			end = len(items)
		}

		for _, item := range items[start:end] {
			if err := p.publishOne(ctx, item, meta); err != nil {
				p.logger.WithField("item_code", item.ItemCode).Errorf("Publish failed: %v", err)
				return processed, &PublishError{ItemsProcessed: processed, Err: err}
			}
			processed++
		}

		p.logger.WithFields(logrus.Fields{
			"batch": start/p.batchSize + 1,
			"items": end - start,
		}).Info("Published batch")
	}

	return processed, nil
}

func (p *Publisher) publishOne(ctx context.Context, cs CleanSlateItem, meta RunMeta) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item := Item{
			ItemCode: cs.ItemCode,
			ItemName: cs.ItemName,
			Category: cs.Category,
			Unit:     cs.Unit,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"item_name", "category", "unit", "updated_at"}),
		}).Create(&item).Error; err != nil {
			return err
		}
		if item.ID == 0 {
			// The conflict path does not always report the id back.
			if err := tx.Select("id").Where("item_code = ?", cs.ItemCode).Take(&item).Error; err != nil {
				return err
			}
		}

		level := StockLevel{
			ItemID:           item.ID,
			CurrentStock:     cs.CurrentStock,
			PhysicalBaseline: cs.PhysicalBaseline,
			TallyDelta:       cs.TallyDelta,
			LastSync:         meta.SyncTime,
			SyncSource:       meta.SyncSource,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"current_stock", "physical_baseline", "tally_delta", "last_sync", "sync_source",
			}),
		}).Create(&level).Error
	})
}

// WriteSyncLog appends the run's audit row. It runs on its own short
// deadline so an already expired run context cannot block the audit trail.
func (p *Publisher) WriteSyncLog(record SyncLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), syncLogTimeout)
	defer cancel()
	return p.db.WithContext(ctx).Create(&record).Error
}
