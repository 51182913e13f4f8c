package signals

import (
	"fmt"
	"math"

	"KlineScope/internal/domain/models"
	domsvc "KlineScope/internal/domain/service"
)

const (
	rsiOversold    = 30
	rsiOverbought  = 70
	kdjLow         = 20
	kdjHigh        = 80
	adxTrend       = 25
	cciBand        = 100
	volumeSurge    = 1.5
	volumeLookback = 20
	atrMove        = 1.5
)

// Aggregator applies one fixed rule per indicator and tallies the votes.
// It holds no state.
type Aggregator struct{}

var _ domsvc.SignalAggregator = Aggregator{}

func NewAggregator() Aggregator { return Aggregator{} }

// Aggregate evaluates RSI, MACD and Bollinger Bands whenever their series are
// non-empty, and the optional kinds only when enabled in active and long
// enough for their rule. The recommendation is a simple majority of buy over
// sell votes; a tie is neutral.
//
// prices and volumes are the raw close and volume series, aligned so their
// last element matches the last element of every indicator series. The call
// fails with ErrInvalidInput only when a rule that is evaluated needs one of
// them and it is empty.
func (Aggregator) Aggregate(series models.IndicatorSeries, prices, volumes []float64, active models.ActiveSet) (models.SignalVerdict, error) {
	out := models.SignalVerdict{Signals: map[models.IndicatorKind]models.Verdict{}}

	for _, kind := range models.AllIndicators {
		if !active.Enabled(kind) || series.Len(kind) < minLength(kind) {
			continue
		}
		if needsPrices(kind) && len(prices) == 0 {
			return models.SignalVerdict{}, fmt.Errorf("%s needs prices: %w", kind, models.ErrInvalidInput)
		}
		if kind == models.IndicatorOBV && len(volumes) == 0 {
			return models.SignalVerdict{}, fmt.Errorf("%s needs volumes: %w", kind, models.ErrInvalidInput)
		}
		v := evaluate(kind, &series, prices, volumes)
		out.Signals[kind] = v
		out.Summary.Add(v)
	}

	switch {
	case out.Summary.Buy > out.Summary.Sell:
		out.Recommendation = models.VerdictBuy
	case out.Summary.Sell > out.Summary.Buy:
		out.Recommendation = models.VerdictSell
	default:
		out.Recommendation = models.VerdictNeutral
	}
	return out, nil
}

// minLength is the shortest series a rule can read. Trend rules compare the
// last two values.
func minLength(kind models.IndicatorKind) int {
	switch kind {
	case models.IndicatorSMA, models.IndicatorEMA, models.IndicatorROC, models.IndicatorOBV:
		return 2
	default:
		return 1
	}
}

func needsPrices(kind models.IndicatorKind) bool {
	switch kind {
	case models.IndicatorBollinger, models.IndicatorSMA, models.IndicatorEMA, models.IndicatorATR:
		return true
	default:
		return false
	}
}

func evaluate(kind models.IndicatorKind, s *models.IndicatorSeries, prices, volumes []float64) models.Verdict {
	switch kind {
	case models.IndicatorRSI:
		return level(last(s.RSI), rsiOversold, rsiOverbought)
	case models.IndicatorMACD:
		m := s.MACD[len(s.MACD)-1]
		return compare(m.MACD, m.Signal)
	case models.IndicatorBollinger:
		b := s.Bollinger[len(s.Bollinger)-1]
		p := last(prices)
		switch {
		case p < b.Lower:
			return models.VerdictBuy
		case p > b.Upper:
			return models.VerdictSell
		}
	case models.IndicatorSMA:
		return priceCross(prices, s.SMA)
	case models.IndicatorEMA:
		return priceCross(prices, s.EMA)
	case models.IndicatorKDJ:
		return kdj(s.KDJ)
	case models.IndicatorROC:
		return roc(s.ROC)
	case models.IndicatorOBV:
		return obv(s.OBV, volumes)
	case models.IndicatorATR:
		return atr(last(s.ATR), prices)
	case models.IndicatorADX:
		a := s.ADX[len(s.ADX)-1]
		if a.ADX > adxTrend {
			return compare(a.PlusDI, a.MinusDI)
		}
	case models.IndicatorCCI:
		c := last(s.CCI)
		switch {
		case c > cciBand:
			return models.VerdictBuy
		case c < -cciBand:
			return models.VerdictSell
		}
	}
	return models.VerdictNeutral
}

func last(xs []float64) float64 { return xs[len(xs)-1] }

// level is buy below low and sell above high.
func level(v, low, high float64) models.Verdict {
	switch {
	case v < low:
		return models.VerdictBuy
	case v > high:
		return models.VerdictSell
	default:
		return models.VerdictNeutral
	}
}

// compare treats values within a relative 1e-9 of each other as equal.
func compare(a, b float64) models.Verdict {
	tol := 1e-9 * math.Max(math.Abs(a), math.Abs(b))
	switch {
	case a-b > tol:
		return models.VerdictBuy
	case b-a > tol:
		return models.VerdictSell
	default:
		return models.VerdictNeutral
	}
}

// priceCross detects the price crossing its moving average between the last two bars.
func priceCross(prices, avg []float64) models.Verdict {
	if len(prices) < 2 {
		return models.VerdictNeutral
	}
	pp, lp := prices[len(prices)-2], prices[len(prices)-1]
	pa, la := avg[len(avg)-2], avg[len(avg)-1]
	switch {
	case pp < pa && lp > la:
		return models.VerdictBuy
	case pp > pa && lp < la:
		return models.VerdictSell
	default:
		return models.VerdictNeutral
	}
}

func kdj(xs []models.KDJValue) models.Verdict {
	cur := xs[len(xs)-1]
	var crossUp, crossDown bool
	if len(xs) >= 2 {
		prev := xs[len(xs)-2]
		crossUp = prev.K <= prev.D && cur.K > cur.D
		crossDown = prev.K >= prev.D && cur.K < cur.D
	}
	switch {
	case crossUp || (cur.K < kdjLow && cur.D < kdjLow):
		return models.VerdictBuy
	case crossDown || (cur.K > kdjHigh && cur.D > kdjHigh):
		return models.VerdictSell
	default:
		return models.VerdictNeutral
	}
}

func roc(xs []float64) models.Verdict {
	prev, cur := xs[len(xs)-2], xs[len(xs)-1]
	switch {
	case (prev < 0 && cur > 0) || (cur > 0 && cur > prev):
		return models.VerdictBuy
	case (prev > 0 && cur < 0) || (cur < 0 && cur < prev):
		return models.VerdictSell
	default:
		return models.VerdictNeutral
	}
}

// obv votes in the OBV direction when the last volume is a surge against the
// trailing average of up to volumeLookback earlier bars.
func obv(xs, volumes []float64) models.Verdict {
	if len(volumes) < 2 {
		return models.VerdictNeutral
	}
	n := len(volumes) - 1
	from := n - volumeLookback
	if from < 0 {
		from = 0
	}
	var sum float64
	for _, v := range volumes[from:n] {
		sum += v
	}
	avg := sum / float64(n-from)
	if volumes[n] <= volumeSurge*avg {
		return models.VerdictNeutral
	}
	return compare(xs[len(xs)-1], xs[len(xs)-2])
}

// atr votes in the direction of the last price move when it exceeds atrMove
// times the current ATR.
func atr(a float64, prices []float64) models.Verdict {
	if len(prices) < 2 {
		return models.VerdictNeutral
	}
	change := prices[len(prices)-1] - prices[len(prices)-2]
	if change > atrMove*a {
		return models.VerdictBuy
	}
	if -change > atrMove*a {
		return models.VerdictSell
	}
	return models.VerdictNeutral
}
