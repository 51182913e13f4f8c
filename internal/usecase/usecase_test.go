package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"KlineScope/internal/domain/models"
	drepo "KlineScope/internal/domain/repository"
	mid "KlineScope/internal/middleware"
	"KlineScope/internal/services/indicators"
	"KlineScope/internal/services/signals"
	applogger "KlineScope/pkg/logger"
	"KlineScope/pkg/metrics"
)

type fakeMarket struct {
	candles  []models.Candle
	price    float64
	priceErr error
	fetchErr error
	lastReq  struct {
		symbol, interval string
		limit            int
	}
}

func (f *fakeMarket) FetchCandles(_ context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	f.lastReq.symbol, f.lastReq.interval, f.lastReq.limit = symbol, interval, limit
	return f.candles, f.fetchErr
}

func (f *fakeMarket) FetchTicker(context.Context, string) (*models.Ticker, error) {
	return &models.Ticker{}, nil
}

func (f *fakeMarket) FetchCurrentPrice(_ context.Context, symbol string) (*models.TickerPrice, error) {
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	return &models.TickerPrice{Symbol: symbol, Price: f.price}, nil
}

func (f *fakeMarket) NormalizeInterval(s string) (drepo.Timeframe, error) {
	return drepo.NormalizeTimeframe(s)
}

func (f *fakeMarket) SupportedIntervals() []drepo.Timeframe { return drepo.SupportedTimeframes() }

func falling(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		c := 200 - 1.5*float64(i) + math.Sin(float64(i))
		out[i] = models.Candle{Time: int64(i) * 3_600_000, CloseTime: int64(i)*3_600_000 + 3_599_999,
			Open: c + 0.5, Close: c, High: c + 1.2, Low: c - 1.1, Volume: 100 + float64(i%7)}
	}
	return out
}

func newAnalysis(m drepo.MarketData) *AnalysisUseCase {
	return NewAnalysisUseCase(m, indicators.NewCalculator(indicators.DefaultParams()), signals.NewAggregator(), metrics.Nop{}, applogger.Nop())
}

func TestAnalyze(t *testing.T) {
	m := &fakeMarket{candles: falling(100), price: 42}
	res, err := newAnalysis(m).Analyze(context.Background(), AnalyzeParams{Symbol: "btcusdt", Interval: "50m", Limit: 100})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Symbol != "BTCUSDT" || res.Interval != "1h" || res.Price != 42 || res.Candles != 100 {
		t.Fatalf("unexpected result header %+v", res)
	}
	if m.lastReq.interval != "1h" {
		t.Fatalf("interval not normalized before fetch: %q", m.lastReq.interval)
	}
	if _, ok := res.Indicators[models.IndicatorRSI]; !ok {
		t.Fatalf("missing rsi reading: %v", res.Indicators)
	}
	if res.Verdict.Signals[models.IndicatorRSI] != models.VerdictBuy {
		t.Fatalf("steady decline should read oversold, got %v", res.Verdict.Signals)
	}
	total := res.Verdict.Summary.Buy + res.Verdict.Summary.Sell + res.Verdict.Summary.Neutral
	if total != len(res.Verdict.Signals) {
		t.Fatalf("summary %+v does not match signals %v", res.Verdict.Summary, res.Verdict.Signals)
	}
}

func TestAnalyzePriceFallback(t *testing.T) {
	candles := falling(60)
	m := &fakeMarket{candles: candles, priceErr: errors.New("timeout")}
	res, err := newAnalysis(m).Analyze(context.Background(), AnalyzeParams{Symbol: "ETHUSDT", Interval: "1h"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Price != candles[len(candles)-1].Close {
		t.Fatalf("expected last close, got %v", res.Price)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := newAnalysis(&fakeMarket{}).Analyze(ctx, AnalyzeParams{}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty symbol, got %v", err)
	}
	if _, err := newAnalysis(&fakeMarket{}).Analyze(ctx, AnalyzeParams{Symbol: "X", Interval: "5q"}); !errors.Is(err, models.ErrInvalidFormat) {
		t.Fatalf("expected invalid format, got %v", err)
	}
	up := &models.UpstreamError{Status: 400, Message: "Invalid symbol."}
	_, err := newAnalysis(&fakeMarket{fetchErr: up}).Analyze(ctx, AnalyzeParams{Symbol: "X", Interval: "1h"})
	var ue *models.UpstreamError
	if !errors.As(err, &ue) || ue.Status != 400 {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if _, err := newAnalysis(&fakeMarket{}).Analyze(ctx, AnalyzeParams{Symbol: "X", Interval: "1h"}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected invalid input for no candles, got %v", err)
	}
}

type fakeArchive struct {
	drepo.CandleStorage
	from, to time.Time
	limit    int
}

func (f *fakeArchive) Query(_ context.Context, symbol, interval string, from, to time.Time, limit int) ([]models.Candle, error) {
	f.from, f.to, f.limit = from, to, limit
	return []models.Candle{{Time: from.UnixMilli()}}, nil
}

func TestGetCandles(t *testing.T) {
	ctx := context.Background()
	m := &fakeMarket{candles: falling(3)}

	res, err := NewCandlesUseCase(m, nil).GetCandles(ctx, GetCandlesParams{Symbol: "btcusdt", Interval: "2s", Limit: 3})
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	if res.Source != "exchange" || res.Interval != "1s" || res.Count != 3 {
		t.Fatalf("unexpected result %+v", res)
	}

	from := time.Unix(1_700_000_000, 0)
	if _, err := NewCandlesUseCase(m, nil).GetCandles(ctx, GetCandlesParams{Symbol: "X", Interval: "1h", From: from}); !errors.Is(err, ErrArchiveDisabled) {
		t.Fatalf("expected archive disabled, got %v", err)
	}

	arch := &fakeArchive{}
	res, err = NewCandlesUseCase(m, arch).GetCandles(ctx, GetCandlesParams{Symbol: "X", Interval: "1h", From: from, Limit: 1_000_000})
	if err != nil {
		t.Fatalf("archive query: %v", err)
	}
	if res.Source != "archive" || arch.limit != 50000 || arch.to.IsZero() {
		t.Fatalf("unexpected archive call %+v limit=%d", res, arch.limit)
	}

	_, err = NewCandlesUseCase(m, arch).GetCandles(ctx, GetCandlesParams{Symbol: "X", Interval: "1h", From: from, To: from.Add(-time.Hour)})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected invalid range error, got %v", err)
	}
}

type recordingSink struct {
	mu     sync.Mutex
	got    []*models.StreamCandle
	err    error
	closed bool
}

func (r *recordingSink) Publish(ctx context.Context, c *models.StreamCandle) error {
	return r.PublishBatch(ctx, []*models.StreamCandle{c})
}

func (r *recordingSink) PublishBatch(_ context.Context, cs []*models.StreamCandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, cs...)
	return nil
}

func (r *recordingSink) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestNewCandleProcessorValidation(t *testing.T) {
	if _, err := NewCandleProcessor(nil, nil, metrics.Nop{}, applogger.Nop(), "kafka"); err == nil {
		t.Fatalf("kafka without publisher must fail")
	}
	if _, err := NewCandleProcessor(nil, nil, metrics.Nop{}, applogger.Nop(), "clickhouse"); err == nil {
		t.Fatalf("clickhouse without storage must fail")
	}
	if _, err := NewCandleProcessor(nil, nil, metrics.Nop{}, applogger.Nop(), "s3"); err == nil {
		t.Fatalf("unknown backend must fail")
	}
	p, err := NewCandleProcessor(nil, nil, metrics.Nop{}, applogger.Nop(), "none")
	if err != nil {
		t.Fatalf("none backend: %v", err)
	}
	if err := p.Process(context.Background(), &models.StreamCandle{Symbol: "BTCUSDT"}); err != nil {
		t.Fatalf("none backend must accept candles: %v", err)
	}
	if err := p.Process(context.Background(), nil); err == nil {
		t.Fatalf("nil candle must fail")
	}
}

func TestCandleProcessorKafka(t *testing.T) {
	sink := &recordingSink{}
	p, err := NewCandleProcessor(sink, nil, metrics.Nop{}, applogger.Nop(), "kafka")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ProcessBatch(context.Background(), []*models.StreamCandle{{Symbol: "A"}, {Symbol: "B"}}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if sink.count() != 2 {
		t.Fatalf("expected 2 published, got %d", sink.count())
	}

	sink.err = errors.New("down")
	if err := p.Process(context.Background(), &models.StreamCandle{Symbol: "A"}); err == nil {
		t.Fatalf("expected sink error")
	}
	p.Close()
	if !sink.closed {
		t.Fatalf("expected publisher closed")
	}
}

type fakeSub struct {
	once sync.Once
	done chan struct{}
}

func (s *fakeSub) Unsubscribe() { s.once.Do(func() { close(s.done) }) }

func (s *fakeSub) Done() <-chan struct{} { return s.done }

type fakeStream struct {
	mu       sync.Mutex
	onCandle map[string]func(models.StreamCandle)
	onFatal  map[string]func(error)
	subs     map[string]*fakeSub
	// failFast makes Subscribe report a fatal error before it returns.
	failFast map[string]error
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		onCandle: map[string]func(models.StreamCandle){},
		onFatal:  map[string]func(error){},
		subs:     map[string]*fakeSub{},
	}
}

func (f *fakeStream) Subscribe(_ context.Context, symbol string, onCandle func(models.StreamCandle), onFatal func(error)) (drepo.Unsubscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSub{done: make(chan struct{})}
	f.onCandle[symbol] = onCandle
	f.onFatal[symbol] = onFatal
	f.subs[symbol] = sub
	if err := f.failFast[symbol]; err != nil {
		onFatal(err)
		sub.Unsubscribe()
	}
	return sub, nil
}

func TestCandleCollector(t *testing.T) {
	sink := &recordingSink{}
	proc, err := NewCandleProcessor(sink, nil, metrics.Nop{}, applogger.Nop(), "kafka")
	if err != nil {
		t.Fatal(err)
	}
	pipe := mid.NewCandlePipeline(proc, metrics.Nop{})
	stream := newFakeStream()
	c := NewCandleCollector(stream, pipe, proc, metrics.Nop{}, applogger.Nop(), []string{"btcusdt", " ethusdt ", ""})

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(c.Active()) != 2 {
		t.Fatalf("expected 2 subscriptions, got %v", c.Active())
	}

	deliver := stream.onCandle["BTCUSDT"]
	deliver(models.StreamCandle{Symbol: "BTCUSDT", Interval: "1m", Time: 60_000, Close: 1, High: 1, Low: 1})
	deliver(models.StreamCandle{Symbol: "BTCUSDT", Interval: "1m", Time: 60_000, Close: 2, High: 2, Low: 1, IsClosed: true})
	if sink.count() != 1 {
		t.Fatalf("only closed candles are forwarded, got %d", sink.count())
	}

	stream.onFatal["ETHUSDT"](errors.New("gave up"))
	if len(c.Active()) != 1 {
		t.Fatalf("fatal subscription must be dropped, got %v", c.Active())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := c.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case <-stream.subs["BTCUSDT"].Done():
	default:
		t.Fatalf("expected subscription to be unsubscribed")
	}
	if !sink.closed {
		t.Fatalf("expected sink closed on shutdown")
	}
}

func TestCandleCollectorFatalDuringSubscribe(t *testing.T) {
	proc, err := NewCandleProcessor(&recordingSink{}, nil, metrics.Nop{}, applogger.Nop(), "kafka")
	if err != nil {
		t.Fatal(err)
	}
	stream := newFakeStream()
	stream.failFast = map[string]error{"ETHUSDT": errors.New("gave up")}
	c := NewCandleCollector(stream, mid.NewCandlePipeline(proc, metrics.Nop{}), proc, metrics.Nop{}, applogger.Nop(), []string{"BTCUSDT", "ETHUSDT"})

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	active := c.Active()
	if len(active) != 1 || active[0] != "BTCUSDT" {
		t.Fatalf("failed subscription must not stay active, got %v", active)
	}

	// a retry registers a fresh subscription; the old failure callback must not evict it
	staleFatal := stream.onFatal["ETHUSDT"]
	stream.failFast = nil
	if err := c.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if len(c.Active()) != 2 {
		t.Fatalf("expected 2 subscriptions after restart, got %v", c.Active())
	}
	staleFatal(errors.New("late"))
	if len(c.Active()) != 2 {
		t.Fatalf("stale failure evicted a live subscription: %v", c.Active())
	}

	stream.onFatal["ETHUSDT"](errors.New("gave up again"))
	if len(c.Active()) != 1 {
		t.Fatalf("expected the current subscription to be dropped, got %v", c.Active())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := c.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
