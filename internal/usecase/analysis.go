package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"KlineScope/internal/domain/models"
	domrepo "KlineScope/internal/domain/repository"
	domsvc "KlineScope/internal/domain/service"
	applogger "KlineScope/pkg/logger"
)

// AnalysisUseCase fetches candles, computes indicators and aggregates them
// into a recommendation.
type AnalysisUseCase struct {
	market  domrepo.MarketData
	calc    domsvc.IndicatorCalculator
	agg     domsvc.SignalAggregator
	metrics domrepo.Metrics
	logger  *applogger.Logger
	timeout time.Duration
}

func NewAnalysisUseCase(market domrepo.MarketData, calc domsvc.IndicatorCalculator, agg domsvc.SignalAggregator, metrics domrepo.Metrics, logger *applogger.Logger) *AnalysisUseCase {
	return &AnalysisUseCase{market: market, calc: calc, agg: agg, metrics: metrics, logger: logger, timeout: 15 * time.Second}
}

type AnalyzeParams struct {
	Symbol   string
	Interval string
	Limit    int
	Active   models.ActiveSet
}

// Analyze runs one analysis. The candle fetch and the current price lookup
// run concurrently; when the price lookup fails the last close is reported.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, p AnalyzeParams) (*models.AnalysisResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required: %w", models.ErrInvalidInput)
	}
	p.Symbol = strings.ToUpper(p.Symbol)
	tf, err := uc.market.NormalizeInterval(p.Interval)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	var (
		wg       sync.WaitGroup
		candles  []models.Candle
		price    *models.TickerPrice
		candErr  error
		priceErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		candles, candErr = uc.market.FetchCandles(ctx, p.Symbol, string(tf), p.Limit)
	}()
	go func() {
		defer wg.Done()
		price, priceErr = uc.market.FetchCurrentPrice(ctx, p.Symbol)
	}()
	wg.Wait()

	if candErr != nil {
		return nil, fmt.Errorf("analyze %s: %w", p.Symbol, candErr)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("analyze %s: no candles: %w", p.Symbol, models.ErrInvalidInput)
	}

	series := uc.calc.Compute(candles, p.Active)
	verdict, err := uc.agg.Aggregate(series, models.Closes(candles), models.Volumes(candles), p.Active)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", p.Symbol, err)
	}

	res := &models.AnalysisResult{
		Symbol:     p.Symbol,
		Interval:   string(tf),
		Price:      candles[len(candles)-1].Close,
		Candles:    len(candles),
		Indicators: series.Latest(),
		Verdict:    verdict,
	}
	if priceErr == nil && price != nil {
		res.Price = price.Price
	} else {
		uc.logger.Warn("current price unavailable, using last close",
			applogger.String("symbol", p.Symbol), applogger.Error(priceErr))
	}

	uc.metrics.RecordRecommendation(p.Symbol, verdict.Recommendation.Score())
	return res, nil
}
