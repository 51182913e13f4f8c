package indicators

import (
	"time"

	"KlineScope/internal/domain/models"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"
)

// newTimeSeries loads candles into a techan series. Candles that would go
// back in time are skipped by techan, so callers must pass ascending input.
func newTimeSeries(candles []models.Candle) *techan.TimeSeries {
	ts := techan.NewTimeSeries()
	for _, c := range candles {
		start := time.UnixMilli(c.Time)
		var d time.Duration
		if c.CloseTime > c.Time {
			d = time.Duration(c.CloseTime-c.Time+1) * time.Millisecond
		}
		candle := techan.NewCandle(techan.NewTimePeriod(start, d))
		candle.OpenPrice = big.NewDecimal(c.Open)
		candle.ClosePrice = big.NewDecimal(c.Close)
		candle.MaxPrice = big.NewDecimal(c.High)
		candle.MinPrice = big.NewDecimal(c.Low)
		candle.Volume = big.NewDecimal(c.Volume)
		candle.TradeCount = uint(c.Trades)
		ts.AddCandle(candle)
	}
	return ts
}

// collect evaluates ind from warmup to the end of the series.
func collect(ts *techan.TimeSeries, warmup int, ind techan.Indicator) []float64 {
	n := len(ts.Candles)
	if n <= warmup {
		return nil
	}
	out := make([]float64, 0, n-warmup)
	for i := warmup; i < n; i++ {
		out = append(out, ind.Calculate(i).Float())
	}
	return out
}

func rsi(ts *techan.TimeSeries, period int) []float64 {
	closes := techan.NewClosePriceIndicator(ts)
	return collect(ts, period, techan.NewRelativeStrengthIndexIndicator(closes, period))
}

func sma(ts *techan.TimeSeries, period int) []float64 {
	closes := techan.NewClosePriceIndicator(ts)
	return collect(ts, period-1, techan.NewSimpleMovingAverage(closes, period))
}

func ema(ts *techan.TimeSeries, period int) []float64 {
	closes := techan.NewClosePriceIndicator(ts)
	return collect(ts, period-1, techan.NewEMAIndicator(closes, period))
}

func atr(ts *techan.TimeSeries, period int) []float64 {
	return collect(ts, period, techan.NewAverageTrueRangeIndicator(ts, period))
}

func cci(ts *techan.TimeSeries, period int) []float64 {
	return collect(ts, period-1, techan.NewCCIIndicator(ts, period))
}

// offsetIndicator reads ind shifted so that index 0 maps to start.
type offsetIndicator struct {
	ind   techan.Indicator
	start int
}

func (o offsetIndicator) Calculate(i int) big.Decimal {
	return o.ind.Calculate(i + o.start)
}

// macd builds the signal EMA over the valid part of the MACD line only.
// techan's slow EMA reads zero before slow-1, so the line there sits near the
// price level and must not seed the signal.
func macd(ts *techan.TimeSeries, fast, slow, signal int) []models.MACDValue {
	closes := techan.NewClosePriceIndicator(ts)
	line := techan.NewMACDIndicator(closes, fast, slow)

	m := collect(ts, slow-1, line)
	if len(m) < signal {
		return nil
	}
	sig := techan.NewEMAIndicator(offsetIndicator{ind: line, start: slow - 1}, signal)
	out := make([]models.MACDValue, 0, len(m)-signal+1)
	for j := signal - 1; j < len(m); j++ {
		s := sig.Calculate(j).Float()
		out = append(out, models.MACDValue{MACD: m[j], Signal: s, Histogram: m[j] - s})
	}
	return out
}

func bollinger(ts *techan.TimeSeries, period int, k float64) []models.BandsValue {
	closes := techan.NewClosePriceIndicator(ts)
	warmup := period - 1
	upper := collect(ts, warmup, techan.NewBollingerUpperBandIndicator(closes, period, k))
	middle := collect(ts, warmup, techan.NewSimpleMovingAverage(closes, period))
	lower := collect(ts, warmup, techan.NewBollingerLowerBandIndicator(closes, period, k))
	if middle == nil {
		return nil
	}
	out := make([]models.BandsValue, len(middle))
	for i := range middle {
		out[i] = models.BandsValue{Upper: upper[i], Middle: middle[i], Lower: lower[i]}
	}
	return out
}

// kdj is the slow stochastic with the derived J line (3K - 2D).
func kdj(ts *techan.TimeSeries, period, signal int) []models.KDJValue {
	k := techan.NewFastStochasticIndicator(ts, period)
	d := techan.NewSlowStochasticIndicator(k, signal)
	warmup := period + signal - 2
	ks := collect(ts, warmup, k)
	ds := collect(ts, warmup, d)
	if ks == nil {
		return nil
	}
	out := make([]models.KDJValue, len(ks))
	for i := range ks {
		out[i] = models.KDJValue{K: ks[i], D: ds[i], J: 3*ks[i] - 2*ds[i]}
	}
	return out
}

// The exported wrappers below compute a single indicator from candles.

func RSI(candles []models.Candle, period int) []float64 {
	return guard(func() []float64 { return rsi(newTimeSeries(candles), period) })
}

func MACD(candles []models.Candle, fast, slow, signal int) []models.MACDValue {
	return guard(func() []models.MACDValue { return macd(newTimeSeries(candles), fast, slow, signal) })
}

func BollingerBands(candles []models.Candle, period int, k float64) []models.BandsValue {
	return guard(func() []models.BandsValue { return bollinger(newTimeSeries(candles), period, k) })
}

func SMA(candles []models.Candle, period int) []float64 {
	return guard(func() []float64 { return sma(newTimeSeries(candles), period) })
}

func EMA(candles []models.Candle, period int) []float64 {
	return guard(func() []float64 { return ema(newTimeSeries(candles), period) })
}

func KDJ(candles []models.Candle, period, signal int) []models.KDJValue {
	return guard(func() []models.KDJValue { return kdj(newTimeSeries(candles), period, signal) })
}

func ATR(candles []models.Candle, period int) []float64 {
	return guard(func() []float64 { return atr(newTimeSeries(candles), period) })
}

func CCI(candles []models.Candle, period int) []float64 {
	return guard(func() []float64 { return cci(newTimeSeries(candles), period) })
}
