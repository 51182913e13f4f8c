package indicators

import (
	"math"

	"KlineScope/internal/domain/models"
)

// ROC is the percentage rate of change over period closes. A zero base
// yields zero.
func ROC(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) <= period {
		return nil
	}
	out := make([]float64, 0, len(closes)-period)
	for i := period; i < len(closes); i++ {
		base := closes[i-period]
		if base == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (closes[i]-base)/base*100)
	}
	return out
}

// OBV is on-balance volume starting from zero at the first candle.
func OBV(candles []models.Candle) []float64 {
	if len(candles) == 0 {
		return nil
	}
	out := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		out[i] = out[i-1]
		switch {
		case candles[i].Close > candles[i-1].Close:
			out[i] += candles[i].Volume
		case candles[i].Close < candles[i-1].Close:
			out[i] -= candles[i].Volume
		}
	}
	return out
}

// ADX computes Wilder's average directional index with the +DI and -DI lines.
// The first value lands on candle 2*period-1.
func ADX(candles []models.Candle, period int) []models.ADXValue {
	if period < 2 || len(candles) < 2*period {
		return nil
	}
	n := len(candles)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
		tr[i] = math.Max(candles[i].High-candles[i].Low,
			math.Max(math.Abs(candles[i].High-candles[i-1].Close), math.Abs(candles[i].Low-candles[i-1].Close)))
	}

	var sPlus, sMinus, sTR float64
	for i := 1; i <= period; i++ {
		sPlus += plusDM[i]
		sMinus += minusDM[i]
		sTR += tr[i]
	}

	p := float64(period)
	di := func() (float64, float64, float64) {
		if sTR == 0 {
			return 0, 0, 0
		}
		pdi := sPlus / sTR * 100
		mdi := sMinus / sTR * 100
		if pdi+mdi == 0 {
			return pdi, mdi, 0
		}
		return pdi, mdi, math.Abs(pdi-mdi) / (pdi + mdi) * 100
	}

	// dx values from candle period onward; the first ADX averages period of them
	pdi, mdi, dx := di()
	dxSum := dx
	var adx float64
	out := make([]models.ADXValue, 0, n-(2*period-1))
	for i := period + 1; i < n; i++ {
		sPlus = sPlus - sPlus/p + plusDM[i]
		sMinus = sMinus - sMinus/p + minusDM[i]
		sTR = sTR - sTR/p + tr[i]
		pdi, mdi, dx = di()

		switch {
		case i < 2*period-1:
			dxSum += dx
		case i == 2*period-1:
			adx = (dxSum + dx) / p
			out = append(out, models.ADXValue{ADX: adx, PlusDI: pdi, MinusDI: mdi})
		default:
			adx = (adx*(p-1) + dx) / p
			out = append(out, models.ADXValue{ADX: adx, PlusDI: pdi, MinusDI: mdi})
		}
	}
	return out
}
