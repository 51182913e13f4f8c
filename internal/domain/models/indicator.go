package models

import (
	"fmt"
	"strings"
)

// IndicatorKind enumerates the indicators the aggregator knows how to read.
type IndicatorKind int

const (
	IndicatorRSI IndicatorKind = iota
	IndicatorMACD
	IndicatorBollinger
	IndicatorSMA
	IndicatorEMA
	IndicatorKDJ
	IndicatorROC
	IndicatorOBV
	IndicatorATR
	IndicatorADX
	IndicatorCCI
)

// AllIndicators lists every kind in evaluation order.
var AllIndicators = []IndicatorKind{
	IndicatorRSI, IndicatorMACD, IndicatorBollinger,
	IndicatorSMA, IndicatorEMA, IndicatorKDJ, IndicatorROC,
	IndicatorOBV, IndicatorATR, IndicatorADX, IndicatorCCI,
}

var indicatorNames = map[IndicatorKind]string{
	IndicatorRSI:       "rsi",
	IndicatorMACD:      "macd",
	IndicatorBollinger: "bollingerBands",
	IndicatorSMA:       "sma",
	IndicatorEMA:       "ema",
	IndicatorKDJ:       "kdj",
	IndicatorROC:       "roc",
	IndicatorOBV:       "obv",
	IndicatorATR:       "atr",
	IndicatorADX:       "adx",
	IndicatorCCI:       "cci",
}

func (k IndicatorKind) String() string {
	if n, ok := indicatorNames[k]; ok {
		return n
	}
	return fmt.Sprintf("indicator(%d)", int(k))
}

// AlwaysOn reports whether the kind is evaluated regardless of the active set.
func (k IndicatorKind) AlwaysOn() bool {
	switch k {
	case IndicatorRSI, IndicatorMACD, IndicatorBollinger:
		return true
	default:
		return false
	}
}

// MarshalText lets kinds be used as JSON object keys.
func (k IndicatorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseIndicatorKind accepts the canonical names plus "bb" and "stochastic".
func ParseIndicatorKind(s string) (IndicatorKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "bb", "bollinger", "bollingerbands":
		return IndicatorBollinger, nil
	case "stochastic", "stoch":
		return IndicatorKDJ, nil
	}
	for k, n := range indicatorNames {
		if strings.ToLower(n) == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown indicator %q", s)
}

// ActiveSet selects the optional indicators that take part in aggregation.
type ActiveSet map[IndicatorKind]bool

// ParseActiveSet builds an ActiveSet from indicator names.
func ParseActiveSet(names []string) (ActiveSet, error) {
	set := ActiveSet{}
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		k, err := ParseIndicatorKind(n)
		if err != nil {
			return nil, err
		}
		set[k] = true
	}
	return set, nil
}

// Enabled reports whether k participates: always-on kinds, or optional kinds marked active.
func (a ActiveSet) Enabled(k IndicatorKind) bool {
	return k.AlwaysOn() || a[k]
}

type MACDValue struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

type BandsValue struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

type KDJValue struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
	J float64 `json:"j"`
}

type ADXValue struct {
	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"plusDI"`
	MinusDI float64 `json:"minusDI"`
}

// IndicatorSeries holds one computed series per kind. A nil slice means the
// indicator was not computed.
type IndicatorSeries struct {
	RSI       []float64
	MACD      []MACDValue
	Bollinger []BandsValue
	SMA       []float64
	EMA       []float64
	KDJ       []KDJValue
	ROC       []float64
	OBV       []float64
	ATR       []float64
	ADX       []ADXValue
	CCI       []float64
}

// Len returns the length of the series for kind k.
func (s *IndicatorSeries) Len(k IndicatorKind) int {
	switch k {
	case IndicatorRSI:
		return len(s.RSI)
	case IndicatorMACD:
		return len(s.MACD)
	case IndicatorBollinger:
		return len(s.Bollinger)
	case IndicatorSMA:
		return len(s.SMA)
	case IndicatorEMA:
		return len(s.EMA)
	case IndicatorKDJ:
		return len(s.KDJ)
	case IndicatorROC:
		return len(s.ROC)
	case IndicatorOBV:
		return len(s.OBV)
	case IndicatorATR:
		return len(s.ATR)
	case IndicatorADX:
		return len(s.ADX)
	case IndicatorCCI:
		return len(s.CCI)
	default:
		return 0
	}
}

// Latest returns the last element of each computed series, keyed by kind.
func (s *IndicatorSeries) Latest() map[IndicatorKind]interface{} {
	out := make(map[IndicatorKind]interface{})
	if n := len(s.RSI); n > 0 {
		out[IndicatorRSI] = s.RSI[n-1]
	}
	if n := len(s.MACD); n > 0 {
		out[IndicatorMACD] = s.MACD[n-1]
	}
	if n := len(s.Bollinger); n > 0 {
		out[IndicatorBollinger] = s.Bollinger[n-1]
	}
	if n := len(s.SMA); n > 0 {
		out[IndicatorSMA] = s.SMA[n-1]
	}
	if n := len(s.EMA); n > 0 {
		out[IndicatorEMA] = s.EMA[n-1]
	}
	if n := len(s.KDJ); n > 0 {
		out[IndicatorKDJ] = s.KDJ[n-1]
	}
	if n := len(s.ROC); n > 0 {
		out[IndicatorROC] = s.ROC[n-1]
	}
	if n := len(s.OBV); n > 0 {
		out[IndicatorOBV] = s.OBV[n-1]
	}
	if n := len(s.ATR); n > 0 {
		out[IndicatorATR] = s.ATR[n-1]
	}
	if n := len(s.ADX); n > 0 {
		out[IndicatorADX] = s.ADX[n-1]
	}
	if n := len(s.CCI); n > 0 {
		out[IndicatorCCI] = s.CCI[n-1]
	}
	return out
}
