package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"KlineScope/internal/domain/models"
	"KlineScope/internal/domain/repository"
	pkgch "KlineScope/pkg/clickhouse"
	applogger "KlineScope/pkg/logger"
)

const candleSchema = `
CREATE TABLE IF NOT EXISTS %s (
    symbol      LowCardinality(String),
    interval    LowCardinality(String),
    open_time   DateTime64(3),
    open        Float64,
    high        Float64,
    low         Float64,
    close       Float64,
    volume      Float64,
    event_time  DateTime64(3),
    inserted_at DateTime64(3) DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(event_time)
ORDER BY (symbol, interval, open_time)`

const candleColumns = "symbol, interval, open_time, open, high, low, close, volume, event_time"

// ClickHouseCandleStorage archives closed candles. Re-delivered candles
// collapse on (symbol, interval, open_time) keeping the latest event.
type ClickHouseCandleStorage struct {
	client *pkgch.Client
	table  string
	logger *applogger.Logger
}

var _ repository.CandleStorage = (*ClickHouseCandleStorage)(nil)

func NewClickHouseCandleStorage(client *pkgch.Client, table string, logger *applogger.Logger) *ClickHouseCandleStorage {
	return &ClickHouseCandleStorage{client: client, table: table, logger: logger}
}

func (s *ClickHouseCandleStorage) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, []string{fmt.Sprintf(candleSchema, s.table)})
}

func (s *ClickHouseCandleStorage) Store(ctx context.Context, c *models.StreamCandle) error {
	return s.StoreBatch(ctx, []*models.StreamCandle{c})
}

func (s *ClickHouseCandleStorage) StoreBatch(ctx context.Context, candles []*models.StreamCandle) error {
	rows := candleRows(candles)
	if len(rows) == 0 {
		return nil
	}
	if err := s.client.InsertBatch(ctx, insertQuery(s.table), rows); err != nil {
		s.logger.Error("clickhouse insert failed",
			applogger.String("table", s.table),
			applogger.Int("rows", len(rows)),
			applogger.Error(err),
		)
		return fmt.Errorf("store candles: %w", err)
	}
	return nil
}

// Query returns up to limit candles in [from, to] in ascending open time.
func (s *ClickHouseCandleStorage) Query(ctx context.Context, symbol, interval string, from, to time.Time, limit int) ([]models.Candle, error) {
	q := fmt.Sprintf(`SELECT open_time, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND interval = ? AND open_time >= ? AND open_time <= ?
        ORDER BY open_time ASC
        LIMIT ?`, s.table)
	rows, err := s.client.DB().QueryContext(ctx, q, strings.ToUpper(symbol), interval, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var out []models.Candle
	for rows.Next() {
		var c models.Candle
		var ts time.Time
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Time = ts.UnixMilli()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *ClickHouseCandleStorage) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseCandleStorage) Close() error {
	return nil
}

func insertQuery(table string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", table, candleColumns)
}

// candleRows drops nil and incomplete candles.
func candleRows(candles []*models.StreamCandle) [][]interface{} {
	rows := make([][]interface{}, 0, len(candles))
	for _, c := range candles {
		if c == nil || c.Symbol == "" || c.Time == 0 {
			continue
		}
		rows = append(rows, []interface{}{
			c.Symbol,
			c.Interval,
			time.UnixMilli(c.Time).UTC(),
			c.Open,
			c.High,
			c.Low,
			c.Close,
			c.Volume,
			time.UnixMilli(c.EventTime).UTC(),
		})
	}
	return rows
}
