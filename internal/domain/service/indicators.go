package service

import (
	"KlineScope/internal/domain/models"
)

// IndicatorCalculator turns a candle series into indicator series.
type IndicatorCalculator interface {
	Compute(candles []models.Candle, active models.ActiveSet) models.IndicatorSeries
}

// SignalAggregator reduces indicator series to a verdict.
type SignalAggregator interface {
	Aggregate(series models.IndicatorSeries, prices, volumes []float64, active models.ActiveSet) (models.SignalVerdict, error)
}
