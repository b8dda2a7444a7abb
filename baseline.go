package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const baselineDateLayout = "2006-01-02"

// LoadBaseline reads the operator-maintained physical count CSV into a map
// keyed by item code. Expected columns: item_code, physical_count,
// baseline_date, plus optional item_name and notes.
//
// A missing file yields an empty baseline so items sync from source data
// alone. Malformed rows are logged and skipped; a header missing a required
// column is a ConfigError because every row would be unusable.
func LoadBaseline(path string, logger *logrus.Logger) (map[string]BaselineEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("Baseline file %s not found, continuing without physical baseline", path)
			return map[string]BaselineEntry{}, nil
		}
		return nil, &ConfigError{Reason: fmt.Sprintf("cannot open baseline file %s: %v", path, err)}
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			logger.Warnf("Baseline file %s is empty", path)
			return map[string]BaselineEntry{}, nil
		}
		return nil, &ConfigError{Reason: fmt.Sprintf("cannot read baseline header: %v", err)}
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"item_code", "physical_count", "baseline_date"} {
		if _, ok := columns[required]; !ok {
			return nil, &ConfigError{Reason: fmt.Sprintf("baseline file %s is missing column %q", path, required)}
		}
	}

	baseline := make(map[string]BaselineEntry)
	now := time.Now()
	line := 1
	skipped := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			logger.Warnf("Skipping baseline line %d: %v", line, err)
			skipped++
			continue
		}

		entry, err := parseBaselineRecord(record, columns, now)
		if err != nil {
			logger.Warnf("Skipping baseline line %d: %v", line, err)
			skipped++
			continue
		}

		if _, dup := baseline[entry.ItemCode]; dup {
			logger.Warnf("Duplicate baseline entry for %s on line %d, keeping the later one", entry.ItemCode, line)
		}
		baseline[entry.ItemCode] = entry
	}

	logger.WithFields(logrus.Fields{
		"file":    path,
		"items":   len(baseline),
		"skipped": skipped,
	}).Info("Loaded physical baseline")

	return baseline, nil
}

func parseBaselineRecord(record []string, columns map[string]int, now time.Time) (BaselineEntry, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	code := field("item_code")
	if code == "" {
		return BaselineEntry{}, fmt.Errorf("empty item_code")
	}

	count, err := decimal.NewFromString(field("physical_count"))
	if err != nil {
		return BaselineEntry{}, fmt.Errorf("bad physical_count for %s: %v", code, err)
	}

	date, err := time.Parse(baselineDateLayout, field("baseline_date"))
	if err != nil {
		return BaselineEntry{}, fmt.Errorf("bad baseline_date for %s: %v", code, err)
	}
	if date.After(now) {
		return BaselineEntry{}, fmt.Errorf("baseline_date for %s is in the future", code)
	}

	return BaselineEntry{
		ItemCode:      code,
		ItemName:      field("item_name"),
		PhysicalCount: count,
		BaselineDate:  date,
		Notes:         field("notes"),
	}, nil
}
