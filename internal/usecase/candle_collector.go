package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"KlineScope/internal/domain/models"
	drepo "KlineScope/internal/domain/repository"
	mid "KlineScope/internal/middleware"
	applogger "KlineScope/pkg/logger"
)

// CandleCollector subscribes to live klines for a fixed symbol list and
// forwards closed candles through the pipeline.
type CandleCollector struct {
	stream  drepo.KlineStream
	pipe    *mid.CandlePipeline
	proc    *CandleProcessor
	metrics drepo.Metrics
	logger  *applogger.Logger
	symbols []string

	startMu sync.Mutex
	mu      sync.Mutex
	subs    map[string]*collectorSub
}

// collectorSub is one symbol's subscription. dead is set by onFatal, which may
// run before Subscribe has returned the handle.
type collectorSub struct {
	sub  drepo.Unsubscriber
	dead bool
}

// NewCandleCollector creates a new CandleCollector instance.
func NewCandleCollector(stream drepo.KlineStream, pipe *mid.CandlePipeline, proc *CandleProcessor, metrics drepo.Metrics, logger *applogger.Logger, symbols []string) *CandleCollector {
	return &CandleCollector{
		stream:  stream,
		pipe:    pipe,
		proc:    proc,
		metrics: metrics,
		logger:  logger.With(applogger.String("component", "candle_collector")),
		symbols: symbols,
		subs:    make(map[string]*collectorSub),
	}
}

// Start opens one subscription per symbol. Subscriptions already running are
// left alone.
func (c *CandleCollector) Start(ctx context.Context) error {
	c.pipe.Start(ctx)

	c.startMu.Lock()
	defer c.startMu.Unlock()
	for _, raw := range c.symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" {
			continue
		}
		c.mu.Lock()
		_, running := c.subs[symbol]
		c.mu.Unlock()
		if running {
			continue
		}

		entry := &collectorSub{}
		sub, err := c.stream.Subscribe(ctx, symbol, c.onCandle(ctx), c.onFatal(symbol, entry))
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", symbol, err)
		}
		c.mu.Lock()
		entry.sub = sub
		if !entry.dead {
			c.subs[symbol] = entry
		}
		c.mu.Unlock()
		if entry.dead {
			c.logger.Warn("subscription failed before start returned", applogger.String("symbol", symbol))
			continue
		}
		c.logger.Info("subscribed", applogger.String("symbol", symbol))
	}
	return nil
}

func (c *CandleCollector) onCandle(ctx context.Context) func(models.StreamCandle) {
	return func(k models.StreamCandle) {
		c.metrics.RecordLastPrice(k.Symbol, k.Close)
		if !k.IsClosed {
			return
		}
		if err := c.pipe.Process(ctx, &k); err != nil {
			c.logger.Warn("closed candle not delivered",
				applogger.String("symbol", k.Symbol),
				applogger.Int64("time", k.Time),
				applogger.Error(err),
			)
		}
	}
}

// onFatal drops entry only if it is still the registered subscription for
// symbol, so a late failure never evicts a newer one.
func (c *CandleCollector) onFatal(symbol string, entry *collectorSub) func(error) {
	return func(err error) {
		c.metrics.RecordError("stream_fatal")
		c.logger.Error("stream gave up", applogger.String("symbol", symbol), applogger.Error(err))
		c.mu.Lock()
		entry.dead = true
		if c.subs[symbol] == entry {
			delete(c.subs, symbol)
		}
		c.mu.Unlock()
	}
}

// Active returns the symbols with a live subscription.
func (c *CandleCollector) Active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for s := range c.subs {
		out = append(out, s)
	}
	return out
}

// Shutdown unsubscribes everything, waits for the subscriptions to finish,
// then stops the pipeline and closes the sink.
func (c *CandleCollector) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	subs := make([]drepo.Unsubscriber, 0, len(c.subs))
	for symbol, s := range c.subs {
		subs = append(subs, s.sub)
		delete(c.subs, symbol)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	var err error
	for _, s := range subs {
		select {
		case <-s.Done():
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	c.pipe.Stop()
	if c.proc != nil {
		c.proc.Close()
	}
	return err
}
