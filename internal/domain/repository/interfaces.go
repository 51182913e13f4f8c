package repository

import (
	"context"
	"time"

	"KlineScope/internal/domain/models"
)

// MarketData fetches historical candles and ticker snapshots.
type MarketData interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	FetchTicker(ctx context.Context, symbol string) (*models.Ticker, error)
	FetchCurrentPrice(ctx context.Context, symbol string) (*models.TickerPrice, error)
	NormalizeInterval(interval string) (Timeframe, error)
	SupportedIntervals() []Timeframe
}

// Unsubscriber tears down a live subscription. Safe to call more than once.
type Unsubscriber interface {
	Unsubscribe()
	Done() <-chan struct{}
}

// KlineStream opens live candle subscriptions. onCandle is invoked synchronously
// in arrival order; onFatal fires once if the reconnect budget runs out.
type KlineStream interface {
	Subscribe(ctx context.Context, symbol string, onCandle func(models.StreamCandle), onFatal func(error)) (Unsubscriber, error)
}

// CandlePublisher fans closed candles out to a message broker.
type CandlePublisher interface {
	Publish(ctx context.Context, c *models.StreamCandle) error
	PublishBatch(ctx context.Context, candles []*models.StreamCandle) error
	Close() error
}

// CandleStorage archives closed candles.
type CandleStorage interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, c *models.StreamCandle) error
	StoreBatch(ctx context.Context, candles []*models.StreamCandle) error
	Query(ctx context.Context, symbol, interval string, from, to time.Time, limit int) ([]models.Candle, error)
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordRequest(endpoint, result string)
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordReconnect(symbol string)
	RecordStreamState(symbol string, state int)
	RecordRecommendation(symbol string, score float64)
}
