package usecase

import (
	"context"
	"fmt"
	"time"

	"KlineScope/internal/domain/models"
	drepo "KlineScope/internal/domain/repository"
	applogger "KlineScope/pkg/logger"
)

const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// CandleProcessor routes closed candles to the configured backend.
type CandleProcessor struct {
	pub     drepo.CandlePublisher
	store   drepo.CandleStorage
	metrics drepo.Metrics
	logger  *applogger.Logger
	backend string
}

// NewCandleProcessor creates a new CandleProcessor. pub and store may be nil
// when their backend is not selected.
func NewCandleProcessor(
	pub drepo.CandlePublisher,
	store drepo.CandleStorage,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	backend string,
) (*CandleProcessor, error) {
	switch backend {
	case BackendNone:
	case BackendKafka:
		if pub == nil {
			return nil, fmt.Errorf("backend %q needs a publisher", backend)
		}
	case BackendClickHouse:
		if store == nil {
			return nil, fmt.Errorf("backend %q needs a storage", backend)
		}
	default:
		return nil, fmt.Errorf("unknown backend: %s", backend)
	}
	return &CandleProcessor{pub: pub, store: store, metrics: metrics, logger: logger, backend: backend}, nil
}

// Backend returns the configured backend name.
func (p *CandleProcessor) Backend() string { return p.backend }

// Process routes a single candle.
func (p *CandleProcessor) Process(ctx context.Context, c *models.StreamCandle) error {
	if c == nil {
		return fmt.Errorf("candle is nil")
	}
	return p.ProcessBatch(ctx, []*models.StreamCandle{c})
}

// ProcessBatch routes candles in one write.
func (p *CandleProcessor) ProcessBatch(ctx context.Context, candles []*models.StreamCandle) error {
	if len(candles) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case BackendKafka:
		err = p.pub.PublishBatch(ctx, candles)
	case BackendClickHouse:
		err = p.store.StoreBatch(ctx, candles)
	default:
		for _, c := range candles {
			p.logger.Debug("closed candle",
				applogger.String("symbol", c.Symbol),
				applogger.String("interval", c.Interval),
				applogger.Int64("time", c.Time),
				applogger.Float64("close", c.Close),
			)
		}
	}

	if err != nil {
		p.metrics.RecordError("process_" + p.backend)
		return fmt.Errorf("process candles: %w", err)
	}

	for _, c := range candles {
		p.metrics.RecordMessageSent(p.backend, c.Symbol)
	}
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *CandleProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
