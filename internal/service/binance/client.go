package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"KlineScope/internal/domain/models"
	drepo "KlineScope/internal/domain/repository"
	xhttp "KlineScope/pkg/http"
	applogger "KlineScope/pkg/logger"
	"KlineScope/pkg/util"
)

const (
	// MaxLimit is the largest batch the klines endpoint serves. Larger requests are clamped.
	MaxLimit = 1000
	// DefaultLimit applies when the caller passes a non-positive limit.
	DefaultLimit = 100

	DefaultSymbol   = "BTCUSDT"
	DefaultInterval = "1h"

	klinesPath      = "/api/v3/klines"
	ticker24hPath   = "/api/v3/ticker/24hr"
	tickerPricePath = "/api/v3/ticker/price"
)

// Client implements MarketData against the Binance spot REST API.
type Client struct {
	http    *xhttp.Client
	baseURL string
	table   drepo.TimeframeTable
	logger  *applogger.Logger
	metrics drepo.Metrics
}

// New creates a REST client. httpClient carries timeout and rate limit settings.
func New(baseURL string, httpClient *xhttp.Client, logger *applogger.Logger, metrics drepo.Metrics) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		table:   drepo.DefaultTimeframes,
		logger:  logger.With(applogger.String("component", "binance_rest")),
		metrics: metrics,
	}
}

var _ drepo.MarketData = (*Client)(nil)

// NormalizeInterval maps interval onto the nearest supported one, logging
// a warning when a substitution happens.
func (c *Client) NormalizeInterval(interval string) (drepo.Timeframe, error) {
	tf, err := c.table.Normalize(interval)
	if err != nil {
		return "", err
	}
	if string(tf) != interval {
		c.logger.Warn("unsupported interval, using nearest supported",
			applogger.String("from", interval),
			applogger.String("to", string(tf)),
		)
	}
	return tf, nil
}

// SupportedIntervals lists the intervals the exchange serves.
func (c *Client) SupportedIntervals() []drepo.Timeframe {
	return c.table.Supported()
}

// ClampLimit applies the batch size policy: non-positive means DefaultLimit,
// anything above MaxLimit is clamped to MaxLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// FetchCandles returns up to limit candles, oldest first, exactly as ordered upstream.
// limit is clamped to [1, MaxLimit].
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	tf, err := c.NormalizeInterval(interval)
	if err != nil {
		return nil, err
	}
	if limit > MaxLimit {
		c.logger.Debug("limit clamped", applogger.Int("requested", limit), applogger.Int("max", MaxLimit))
	}
	limit = ClampLimit(limit)

	start := time.Now()
	var raw []byte
	err = c.get(ctx, klinesPath, map[string][]string{
		"symbol":   {symbol},
		"interval": {string(tf)},
		"limit":    {strconv.Itoa(limit)},
	}, &raw)
	c.metrics.RecordLatency("fetch_candles", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("fetch candles %s %s: %w", symbol, tf, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rows [][]interface{}
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("fetch candles %s %s: decode: %w", symbol, tf, err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		candle, err := ParseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("fetch candles %s %s: row %d: %w", symbol, tf, i, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// ParseKlineRow maps the 11 positional kline fields onto a Candle.
func ParseKlineRow(row []interface{}) (models.Candle, error) {
	var c models.Candle
	if len(row) < 11 {
		return c, fmt.Errorf("kline row has %d fields, want 11", len(row))
	}

	ints := []struct {
		idx int
		dst *int64
	}{{0, &c.Time}, {6, &c.CloseTime}, {8, &c.Trades}}
	for _, f := range ints {
		v, err := util.AsInt(row[f.idx])
		if err != nil {
			return c, fmt.Errorf("field %d: %w", f.idx, err)
		}
		*f.dst = v
	}

	floats := []struct {
		idx int
		dst *float64
	}{
		{1, &c.Open}, {2, &c.High}, {3, &c.Low}, {4, &c.Close}, {5, &c.Volume},
		{7, &c.QuoteVolume}, {9, &c.TakerBuyVolume}, {10, &c.TakerBuyQuoteVolume},
	}
	for _, f := range floats {
		v, err := util.AsFloat(row[f.idx])
		if err != nil {
			return c, fmt.Errorf("field %d: %w", f.idx, err)
		}
		*f.dst = v
	}
	return c, nil
}

type wireTicker struct {
	Symbol             string `json:"symbol"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	WeightedAvgPrice   string `json:"weightedAvgPrice"`
	PrevClosePrice     string `json:"prevClosePrice"`
	LastPrice          string `json:"lastPrice"`
	LastQty            string `json:"lastQty"`
	BidPrice           string `json:"bidPrice"`
	AskPrice           string `json:"askPrice"`
	OpenPrice          string `json:"openPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
	OpenTime           int64  `json:"openTime"`
	CloseTime          int64  `json:"closeTime"`
	FirstID            int64  `json:"firstId"`
	LastID             int64  `json:"lastId"`
	Count              int64  `json:"count"`
}

// FetchTicker returns the 24h rolling statistics for symbol.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	start := time.Now()
	var w wireTicker
	err := c.get(ctx, ticker24hPath, map[string][]string{"symbol": {symbol}}, &w)
	c.metrics.RecordLatency("fetch_ticker", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("fetch ticker %s: %w", symbol, err)
	}

	t := &models.Ticker{
		Symbol:    w.Symbol,
		OpenTime:  w.OpenTime,
		CloseTime: w.CloseTime,
		FirstID:   w.FirstID,
		LastID:    w.LastID,
		Count:     w.Count,
	}
	fields := []struct {
		src string
		dst *float64
	}{
		{w.PriceChange, &t.PriceChange},
		{w.PriceChangePercent, &t.PriceChangePercent},
		{w.WeightedAvgPrice, &t.WeightedAvgPrice},
		{w.PrevClosePrice, &t.PrevClosePrice},
		{w.LastPrice, &t.LastPrice},
		{w.LastQty, &t.LastQty},
		{w.BidPrice, &t.BidPrice},
		{w.AskPrice, &t.AskPrice},
		{w.OpenPrice, &t.OpenPrice},
		{w.HighPrice, &t.HighPrice},
		{w.LowPrice, &t.LowPrice},
		{w.Volume, &t.Volume},
		{w.QuoteVolume, &t.QuoteVolume},
	}
	for _, f := range fields {
		v, err := util.ParseFloat(f.src)
		if err != nil {
			return nil, fmt.Errorf("fetch ticker %s: %w", symbol, err)
		}
		*f.dst = v
	}
	return t, nil
}

// GetTicker is an alias of FetchTicker.
func (c *Client) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	return c.FetchTicker(ctx, symbol)
}

// FetchCurrentPrice returns the latest traded price for symbol.
func (c *Client) FetchCurrentPrice(ctx context.Context, symbol string) (*models.TickerPrice, error) {
	var w struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := c.get(ctx, tickerPricePath, map[string][]string{"symbol": {symbol}}, &w); err != nil {
		return nil, fmt.Errorf("fetch price %s: %w", symbol, err)
	}
	price, err := util.ParseFloat(w.Price)
	if err != nil {
		return nil, fmt.Errorf("fetch price %s: %w", symbol, err)
	}
	return &models.TickerPrice{Symbol: w.Symbol, Price: price}, nil
}

// get issues one request and maps failures onto UpstreamError / NetworkError.
func (c *Client) get(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: query,
	}, dest)
	if err == nil {
		return nil
	}

	var se *xhttp.StatusError
	if errors.As(err, &se) {
		c.metrics.RecordError("upstream")
		return upstreamError(se)
	}
	var te *xhttp.TransportError
	if errors.As(err, &te) {
		c.metrics.RecordError("network")
		return &models.NetworkError{Op: path, Err: te.Err}
	}
	c.metrics.RecordError("decode")
	return err
}

func upstreamError(se *xhttp.StatusError) *models.UpstreamError {
	var body struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	msg := http.StatusText(se.StatusCode)
	if err := json.Unmarshal(se.Body, &body); err == nil && body.Msg != "" {
		msg = body.Msg
	}
	return &models.UpstreamError{Status: se.StatusCode, Message: msg}
}
