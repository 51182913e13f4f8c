package indicators

import (
	"KlineScope/internal/domain/models"
	domsvc "KlineScope/internal/domain/service"
)

// Params holds the lookback windows for every indicator.
type Params struct {
	RSIPeriod       int
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
	BollingerPeriod int
	BollingerK      float64
	SMAPeriod       int
	EMAPeriod       int
	StochPeriod     int
	StochSignal     int
	ROCPeriod       int
	ATRPeriod       int
	ADXPeriod       int
	CCIPeriod       int
}

// DefaultParams returns the conventional settings.
func DefaultParams() Params {
	return Params{
		RSIPeriod:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		BollingerPeriod: 20,
		BollingerK:      2,
		SMAPeriod:       20,
		EMAPeriod:       20,
		StochPeriod:     14,
		StochSignal:     3,
		ROCPeriod:       12,
		ATRPeriod:       14,
		ADXPeriod:       14,
		CCIPeriod:       20,
	}
}

// withDefaults fills zero fields from DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	fill := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&p.RSIPeriod, d.RSIPeriod)
	fill(&p.MACDFast, d.MACDFast)
	fill(&p.MACDSlow, d.MACDSlow)
	fill(&p.MACDSignal, d.MACDSignal)
	fill(&p.BollingerPeriod, d.BollingerPeriod)
	fill(&p.SMAPeriod, d.SMAPeriod)
	fill(&p.EMAPeriod, d.EMAPeriod)
	fill(&p.StochPeriod, d.StochPeriod)
	fill(&p.StochSignal, d.StochSignal)
	fill(&p.ROCPeriod, d.ROCPeriod)
	fill(&p.ATRPeriod, d.ATRPeriod)
	fill(&p.ADXPeriod, d.ADXPeriod)
	fill(&p.CCIPeriod, d.CCIPeriod)
	if p.BollingerK <= 0 {
		p.BollingerK = d.BollingerK
	}
	return p
}

// Calculator computes indicator series from candles. It is stateless and
// safe for concurrent use.
type Calculator struct {
	params Params
}

var _ domsvc.IndicatorCalculator = (*Calculator)(nil)

func NewCalculator(p Params) *Calculator {
	return &Calculator{params: p.withDefaults()}
}

func (c *Calculator) Params() Params { return c.params }

// Compute returns the always-on indicators plus every optional kind enabled in
// active. Each series is aligned to the tail of candles; a series whose
// warm-up exceeds the input is left nil.
func (c *Calculator) Compute(candles []models.Candle, active models.ActiveSet) models.IndicatorSeries {
	var out models.IndicatorSeries
	if len(candles) == 0 {
		return out
	}
	p := c.params
	ts := newTimeSeries(candles)

	for _, kind := range models.AllIndicators {
		if !active.Enabled(kind) {
			continue
		}
		switch kind {
		case models.IndicatorRSI:
			out.RSI = guard(func() []float64 { return rsi(ts, p.RSIPeriod) })
		case models.IndicatorMACD:
			out.MACD = guard(func() []models.MACDValue { return macd(ts, p.MACDFast, p.MACDSlow, p.MACDSignal) })
		case models.IndicatorBollinger:
			out.Bollinger = guard(func() []models.BandsValue { return bollinger(ts, p.BollingerPeriod, p.BollingerK) })
		case models.IndicatorSMA:
			out.SMA = guard(func() []float64 { return sma(ts, p.SMAPeriod) })
		case models.IndicatorEMA:
			out.EMA = guard(func() []float64 { return ema(ts, p.EMAPeriod) })
		case models.IndicatorKDJ:
			out.KDJ = guard(func() []models.KDJValue { return kdj(ts, p.StochPeriod, p.StochSignal) })
		case models.IndicatorROC:
			out.ROC = ROC(models.Closes(candles), p.ROCPeriod)
		case models.IndicatorOBV:
			out.OBV = OBV(candles)
		case models.IndicatorATR:
			out.ATR = guard(func() []float64 { return atr(ts, p.ATRPeriod) })
		case models.IndicatorADX:
			out.ADX = ADX(candles, p.ADXPeriod)
		case models.IndicatorCCI:
			out.CCI = guard(func() []float64 { return cci(ts, p.CCIPeriod) })
		}
	}
	return out
}

// guard drops a series whose computation hit an undefined value (for
// example a zero high-low range inside a stochastic window).
func guard[T any](fn func() []T) (out []T) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
		}
	}()
	return fn()
}

// Warmup returns how many leading candles kind consumes before its first value.
func (p Params) Warmup(kind models.IndicatorKind) int {
	p = p.withDefaults()
	switch kind {
	case models.IndicatorRSI:
		return p.RSIPeriod
	case models.IndicatorMACD:
		return p.MACDSlow + p.MACDSignal - 2
	case models.IndicatorBollinger:
		return p.BollingerPeriod - 1
	case models.IndicatorSMA:
		return p.SMAPeriod - 1
	case models.IndicatorEMA:
		return p.EMAPeriod - 1
	case models.IndicatorKDJ:
		return p.StochPeriod + p.StochSignal - 2
	case models.IndicatorROC:
		return p.ROCPeriod
	case models.IndicatorOBV:
		return 0
	case models.IndicatorATR:
		return p.ATRPeriod
	case models.IndicatorADX:
		return 2*p.ADXPeriod - 1
	case models.IndicatorCCI:
		return p.CCIPeriod - 1
	default:
		return 0
	}
}
