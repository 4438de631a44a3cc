package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"time"

	"PanelPull/internal/domain/models"
	domrepo "PanelPull/internal/domain/repository"
	pkgch "PanelPull/pkg/clickhouse"
	applogger "PanelPull/pkg/logger"
)

// ClickHouseBarSource implements BarSource backed by a ClickHouse bars table.
type ClickHouseBarSource struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewClickHouseBarSource creates a bar source over the given table
// (fully qualified, e.g. "panelpull.bars").
func NewClickHouseBarSource(ch *pkgch.Client, table string) *ClickHouseBarSource {
	return &ClickHouseBarSource{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *ClickHouseBarSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseBarSource) Bars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	start := time.Now()
	const qtpl = `
        SELECT ts, open, high, low, close, volume
        FROM %s
        WHERE symbol = ? AND ts >= ? AND ts < ?
        ORDER BY ts ASC
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse bars query error",
				applogger.String("table", s.table),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		var b models.Bar
		var ts time.Time
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse bars scan error",
					applogger.String("table", s.table),
					applogger.String("symbol", symbol),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Time = ts.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse bars rows error",
				applogger.String("table", s.table),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}

	if len(out) == 0 {
		known, err := s.symbolKnown(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, fmt.Errorf("clickhouse bars %s: %w", symbol, domrepo.ErrSymbolNotFound)
		}
	}

	if s.l != nil {
		s.l.Info("clickhouse bars ok",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *ClickHouseBarSource) symbolKnown(ctx context.Context, symbol string) (bool, error) {
	q := fmt.Sprintf("SELECT 1 FROM %s WHERE symbol = ? LIMIT 1", s.table)
	var one uint8
	err := s.db.QueryRowContext(ctx, q, symbol).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("symbol lookup: %w", err)
	}
	return true, nil
}

func (s *ClickHouseBarSource) Symbols(ctx context.Context, pattern string) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT symbol FROM %s ORDER BY symbol ASC", s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		if pattern != "" {
			ok, err := path.Match(pattern, sym)
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
			}
			if !ok {
				continue
			}
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func (s *ClickHouseBarSource) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseBarSource) Close() error {
	return nil // Managed by pkg
}

// SchemaStatements returns idempotent DDL for the bars database and table.
func SchemaStatements(database, table string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            symbol LowCardinality(String),
            ts     DateTime('UTC'),
            open   Float64,
            high   Float64,
            low    Float64,
            close  Float64,
            volume Float64
        ) ENGINE = MergeTree()
        ORDER BY (symbol, ts)`, database, table),
	}
}
