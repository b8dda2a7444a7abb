package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

// SourceConnector is the capability one source company database must provide.
// Implementations must tolerate concurrent use by the aggregator only to the
// extent of one goroutine per connector; a connector itself is not shared.
type SourceConnector interface {
	CompanyName() string
	Connect(ctx context.Context) error
	FetchStockItems(ctx context.Context) ([]StockItem, error)
	FetchMovements(ctx context.Context, since, until time.Time) ([]Movement, error)
	Close() error
}

const stockItemsQuery = `
	SELECT
		item_name,
		parent,
		base_units,
		closing_balance
	FROM stock_items
	WHERE item_name IS NOT NULL AND item_name != ''
	ORDER BY item_name`

const stockMovementsQuery = `
	SELECT
		item_name,
		voucher_date,
		quantity_change
	FROM stock_movements
	WHERE item_name IS NOT NULL AND item_name != ''
	  AND voucher_date >= ?
	  AND voucher_date < ?
	ORDER BY item_name, voucher_date`

// TallyConnector reads one company's Tally mirror database over MySQL.
type TallyConnector struct {
	company string
	dsn     string
	timeout time.Duration
	db      *sql.DB
}

// NewTallyConnector builds a connector for one configured company. No
// connection is attempted until Connect.
func NewTallyConnector(cfg CompanyConfig) *TallyConnector {
	return &TallyConnector{
		company: cfg.CompanyName,
		dsn:     withParseTime(cfg.DSN),
		timeout: cfg.ConnectTimeout(),
	}
}

// BuildConnectors turns the configured company list into live connector
// values, one per company, in configured order.
func BuildConnectors(cfg TallyConfig) []SourceConnector {
	companies := cfg.EffectiveCompanies()
	connectors := make([]SourceConnector, 0, len(companies))
	for _, company := range companies {
		connectors = append(connectors, NewTallyConnector(company))
	}
	return connectors
}

func (c *TallyConnector) CompanyName() string { return c.company }

// Connect opens the database handle and verifies it with a ping inside the
// company's timeout.
func (c *TallyConnector) Connect(ctx context.Context) error {
	db, err := sql.Open("mysql", c.dsn)
	if err != nil {
		return c.wrapErr(err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return c.wrapErr(err)
	}

	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	c.db = db
	return nil
}

// FetchStockItems returns every stock item the company knows about. The item
// name is the cross-company identifier, so it fills both code and name.
func (c *TallyConnector) FetchStockItems(ctx context.Context) ([]StockItem, error) {
	if c.db == nil {
		return nil, c.wrapErr(errors.New("not connected"))
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(queryCtx, stockItemsQuery)
	if err != nil {
		return nil, c.wrapErr(err)
	}
	defer rows.Close()

	var items []StockItem
	for rows.Next() {
		var (
			name    string
			parent  sql.NullString
			unit    sql.NullString
			closing decimal.NullDecimal
		)
		if err := rows.Scan(&name, &parent, &unit, &closing); err != nil {
			return nil, c.wrapErr(err)
		}

		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		item := StockItem{
			ItemCode: name,
			ItemName: name,
			Category: DefaultCategory,
			Unit:     DefaultUnit,
		}
		if parent.Valid && strings.TrimSpace(parent.String) != "" {
			item.Category = strings.TrimSpace(parent.String)
		}
		if unit.Valid && strings.TrimSpace(unit.String) != "" {
			item.Unit = strings.TrimSpace(unit.String)
		}
		if closing.Valid {
			item.ClosingBalance = closing.Decimal
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, c.wrapErr(err)
	}

	return items, nil
}

// FetchMovements returns signed quantity changes dated in the half-open
// window: on or after since, strictly before until. Callers pass the run
// start as until so post-dated voucher rows wait for a later run. An empty
// window means the caller computed its anchor wrong.
func (c *TallyConnector) FetchMovements(ctx context.Context, since, until time.Time) ([]Movement, error) {
	if !since.Before(until) {
		return nil, fmt.Errorf("company %s: movement window %s..%s is empty", c.company, since.Format(baselineDateLayout), until.Format(baselineDateLayout))
	}
	if c.db == nil {
		return nil, c.wrapErr(errors.New("not connected"))
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(queryCtx, stockMovementsQuery, since, until)
	if err != nil {
		return nil, c.wrapErr(err)
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var (
			name     string
			date     time.Time
			quantity decimal.NullDecimal
		)
		if err := rows.Scan(&name, &date, &quantity); err != nil {
			return nil, c.wrapErr(err)
		}

		name = strings.TrimSpace(name)
		if name == "" || !quantity.Valid {
			continue
		}

		movements = append(movements, Movement{
			ItemCode: name,
			Date:     date,
			Quantity: quantity.Decimal,
			Company:  c.company,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, c.wrapErr(err)
	}

	return movements, nil
}

// Close releases the database handle. Safe to call before Connect or twice.
func (c *TallyConnector) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func (c *TallyConnector) wrapErr(err error) error {
	return &ConnectionError{Company: c.company, Timeout: isTimeout(err), Err: err}
}

// withParseTime makes sure the DSN asks the driver to decode DATE columns
// into time.Time; voucher_date scanning depends on it.
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}
