package models

// Verdict is a categorical trading signal.
type Verdict string

const (
	VerdictBuy     Verdict = "buy"
	VerdictSell    Verdict = "sell"
	VerdictNeutral Verdict = "neutral"
)

// Score maps a verdict to 1, -1 or 0.
func (v Verdict) Score() float64 {
	switch v {
	case VerdictBuy:
		return 1
	case VerdictSell:
		return -1
	default:
		return 0
	}
}

// Summary tallies the per-indicator verdicts.
type Summary struct {
	Buy     int `json:"buy"`
	Sell    int `json:"sell"`
	Neutral int `json:"neutral"`
}

// Add increments the bucket for v.
func (s *Summary) Add(v Verdict) {
	switch v {
	case VerdictBuy:
		s.Buy++
	case VerdictSell:
		s.Sell++
	default:
		s.Neutral++
	}
}

// SignalVerdict is the result of one aggregation call.
type SignalVerdict struct {
	Signals        map[IndicatorKind]Verdict `json:"signals"`
	Summary        Summary                   `json:"summary"`
	Recommendation Verdict                   `json:"recommendation"`
}

// AnalysisResult bundles the latest indicator readings with the aggregated verdict.
type AnalysisResult struct {
	Symbol     string                        `json:"symbol"`
	Interval   string                        `json:"interval"`
	Price      float64                       `json:"price"`
	Candles    int                           `json:"candles"`
	Indicators map[IndicatorKind]interface{} `json:"indicators"`
	Verdict    SignalVerdict                 `json:"verdict"`
}
