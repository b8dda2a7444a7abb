package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the sync configuration file")
	checkMode := flag.Bool("check", false, "test source and store connections, then exit")
	exportPath := flag.String("export", "", "export fetched source data to the given JSON file, then exit")
	dryRun := flag.Bool("dry-run", false, "run the pipeline without writing to the durable store")
	flag.Parse()

	// Load configuration
	config, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Error loading configuration: ", err)
	}
	if *dryRun {
		config.Sync.DryRun = true
	}

	// Setup logging
	logger, logFile, err := SetupLogger(config.Logging)
	if err != nil {
		log.Fatal("Failed to setup logger: ", err)
	}
	defer logFile.Close()

	connectors := BuildConnectors(config.Tally)
	ctx := context.Background()

	if *checkMode {
		os.Exit(runCheck(ctx, config, logger, connectors))
	}
	if *exportPath != "" {
		os.Exit(runExport(ctx, config, logger, connectors, *exportPath))
	}

	// The baseline is config-stage input; a malformed file fails the run
	// before any connection is attempted.
	baseline, err := LoadBaseline(config.Sync.PhysicalBaselineFile, logger)
	if err != nil {
		logger.Errorf("Failed to load physical baseline: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Source companies: %d\n", len(connectors))
	fmt.Printf("Dry run mode: %v\n", config.Sync.DryRun)
	fmt.Printf("Log file: %s\n", config.Logging.File)

	// Connect to the durable store
	db, err := OpenStore(config.Store.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to durable store: %v", err)
		os.Exit(1)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := MigrateStore(db); err != nil {
		logger.Errorf("Failed to migrate durable store: %v", err)
		os.Exit(1)
	}

	publisher := NewPublisher(db, logger, config.Sync)
	service := NewSyncService(config, logger, connectors, baseline, publisher)

	result := service.Run(ctx)
	if result.Status != StatusSuccess {
		logger.Errorf("Sync finished with status %s", result.Status)
		os.Exit(1)
	}

	logger.Info("Sync completed successfully")
}

// runCheck verifies every configured connection and prints a status table.
// Exit code 0 only when every target is reachable.
func runCheck(ctx context.Context, config *Config, logger *logrus.Logger, connectors []SourceConnector) int {
	fmt.Println("\n=== Connection Check ===")
	fmt.Printf("%-25s %-8s %s\n", "Target", "Status", "Detail")
	fmt.Println(strings.Repeat("-", 70))

	failed := 0
	for _, connector := range connectors {
		status, detail := "OK", "connected"
		if err := connector.Connect(ctx); err != nil {
			status, detail = "FAIL", err.Error()
			failed++
		} else {
			connector.Close()
		}
		fmt.Printf("%-25s %-8s %s\n", truncate(connector.CompanyName(), 25), status, detail)
	}

	storeStatus, storeDetail := "OK", "connected"
	db, err := OpenStore(config.Store.DSN)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err = NewPublisher(db, logger, config.Sync).Ping(pingCtx)
		cancel()
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
	}
	if err != nil {
		storeStatus, storeDetail = "FAIL", err.Error()
		failed++
	}
	fmt.Printf("%-25s %-8s %s\n", "durable store", storeStatus, storeDetail)

	if failed > 0 {
		logger.Errorf("Connection check failed for %d target(s)", failed)
		return 1
	}
	logger.Info("All connections OK")
	return 0
}

// runExport dumps fetched source data to a JSON file for inspection. The
// durable store is never touched.
func runExport(ctx context.Context, config *Config, logger *logrus.Logger, connectors []SourceConnector, path string) int {
	ctx, cancel := context.WithTimeout(ctx, config.Sync.RunTimeout())
	defer cancel()

	now := time.Now()
	since := now.AddDate(0, 0, -config.Sync.MovementDaysBack)
	if err := ExportSourceData(ctx, connectors, since, now, path, logger); err != nil {
		logger.Errorf("Export failed: %v", err)
		return 1
	}
	return 0
}
