package binance

import (
	"context"
	"errors"
	"strings"
	"time"

	"KlineScope/internal/domain/models"
	drepo "KlineScope/internal/domain/repository"
	"KlineScope/pkg/cache"
	applogger "KlineScope/pkg/logger"
)

// CachedClient serves 24h tickers and candle batches from a short-lived
// cache. Current prices always go to the exchange. Cache errors fall back to
// a direct fetch.
type CachedClient struct {
	drepo.MarketData
	cache  cache.Service
	ttl    time.Duration
	logger *applogger.Logger
}

var _ drepo.MarketData = (*CachedClient)(nil)

func NewCachedClient(next drepo.MarketData, c cache.Service, ttl time.Duration, logger *applogger.Logger) *CachedClient {
	return &CachedClient{MarketData: next, cache: c, ttl: ttl, logger: logger}
}

func (c *CachedClient) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	tf, err := c.NormalizeInterval(interval)
	if err != nil {
		return nil, err
	}
	key := cache.Key("klines", strings.ToUpper(symbol), string(tf), ClampLimit(limit))

	var candles []models.Candle
	if c.lookup(ctx, key, &candles) {
		return candles, nil
	}
	candles, err = c.MarketData.FetchCandles(ctx, symbol, string(tf), limit)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, candles)
	return candles, nil
}

func (c *CachedClient) FetchTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	key := cache.Key("ticker24h", strings.ToUpper(symbol))

	var t models.Ticker
	if c.lookup(ctx, key, &t) {
		return &t, nil
	}
	fresh, err := c.MarketData.FetchTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, fresh)
	return fresh, nil
}

func (c *CachedClient) lookup(ctx context.Context, key string, dest interface{}) bool {
	err := c.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("cache read failed", applogger.String("key", key), applogger.Error(err))
	}
	return false
}

func (c *CachedClient) store(ctx context.Context, key string, value interface{}) {
	if err := c.cache.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("cache write failed", applogger.String("key", key), applogger.Error(err))
	}
}
