package main

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Item is the durable master record for one stock item. item_code is the
// natural key used for upserts; id exists for referential integrity.
type Item struct {
	ID        uint      `gorm:"primaryKey"`
	ItemCode  string    `gorm:"size:255;uniqueIndex;not null"`
	ItemName  string    `gorm:"size:255;not null"`
	Category  string    `gorm:"size:100;not null;default:General"`
	Unit      string    `gorm:"size:50;not null;default:Nos"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockLevel is the published truth for one item. The unique index on
// item_id guarantees exactly one row per item however many times the sync
// runs.
type StockLevel struct {
	ID               uint            `gorm:"primaryKey"`
	ItemID           uint            `gorm:"uniqueIndex;not null"`
	Item             Item            `gorm:"constraint:OnDelete:CASCADE"`
	CurrentStock     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"`
	PhysicalBaseline decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"`
	TallyDelta       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"`
	LastSync         time.Time
	SyncSource       string `gorm:"size:50"`
}

// SyncLog is the append-only audit record, one row per run whatever the
// outcome.
type SyncLog struct {
	ID              uint       `gorm:"primaryKey"`
	SyncTimestamp   time.Time  `gorm:"index;not null"`
	ItemsProcessed  int        `gorm:"not null;default:0"`
	Status          SyncStatus `gorm:"size:20;not null"`
	ErrorMessage    *string    `gorm:"type:text"`
	DurationSeconds float64    `gorm:"not null;default:0"`
}

const stockOverviewDDL = `
CREATE OR REPLACE VIEW stock_overview AS
SELECT
	i.item_code,
	i.item_name,
	i.category,
	i.unit,
	s.current_stock,
	s.physical_baseline,
	s.tally_delta,
	s.last_sync,
	s.sync_source,
	i.updated_at
FROM items i
JOIN stock_levels s ON s.item_id = i.id
ORDER BY i.item_name`

// OpenStore connects to the durable Postgres store.
func OpenStore(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// MigrateStore creates or updates the engine-owned tables plus the
// stock_overview read view dashboards query. Safe to run on every start.
func MigrateStore(db *gorm.DB) error {
	if err := db.AutoMigrate(&Item{}, &StockLevel{}, &SyncLog{}); err != nil {
		return err
	}
	return db.Exec(stockOverviewDDL).Error
}
