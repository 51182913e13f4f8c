package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"KlineScope/internal/domain/models"
	domrepo "KlineScope/internal/domain/repository"
)

// ErrArchiveDisabled is returned for range queries when no storage is configured.
var ErrArchiveDisabled = errors.New("candle archive not configured")

// CandlesUseCase serves candles from the exchange, or from the archive when
// a time range is requested.
type CandlesUseCase struct {
	market  domrepo.MarketData
	archive domrepo.CandleStorage
}

// NewCandlesUseCase creates the use case. archive may be nil.
func NewCandlesUseCase(market domrepo.MarketData, archive domrepo.CandleStorage) *CandlesUseCase {
	return &CandlesUseCase{market: market, archive: archive}
}

type GetCandlesParams struct {
	Symbol   string
	Interval string
	Limit    int
	From     time.Time
	To       time.Time
}

type GetCandlesResult struct {
	Symbol   string          `json:"symbol"`
	Interval string          `json:"interval"`
	Source   string          `json:"source"`
	Count    int             `json:"count"`
	Candles  []models.Candle `json:"candles"`
}

func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	p.Symbol = strings.ToUpper(p.Symbol)
	tf, err := uc.market.NormalizeInterval(p.Interval)
	if err != nil {
		return nil, err
	}

	if p.From.IsZero() && p.To.IsZero() {
		candles, err := uc.market.FetchCandles(ctx, p.Symbol, string(tf), p.Limit)
		if err != nil {
			return nil, err
		}
		return &GetCandlesResult{Symbol: p.Symbol, Interval: string(tf), Source: "exchange", Count: len(candles), Candles: candles}, nil
	}

	if uc.archive == nil {
		return nil, ErrArchiveDisabled
	}
	if p.To.IsZero() {
		p.To = time.Now()
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to: %w", models.ErrInvalidInput)
	}
	candles, err := uc.archive.Query(ctx, p.Symbol, string(tf), p.From, p.To, clampArchiveLimit(p.Limit))
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	return &GetCandlesResult{Symbol: p.Symbol, Interval: string(tf), Source: "archive", Count: len(candles), Candles: candles}, nil
}

func clampArchiveLimit(n int) int {
	switch {
	case n <= 0:
		return 10000
	case n > 50000:
		return 50000
	default:
		return n
	}
}
