package models

// Candle represents one OHLCV bucket as returned by the klines endpoint.
// Time and CloseTime are unix milliseconds.
type Candle struct {
	Time                int64   `json:"time"`
	Open                float64 `json:"open"`
	High                float64 `json:"high"`
	Low                 float64 `json:"low"`
	Close               float64 `json:"close"`
	Volume              float64 `json:"volume"`
	CloseTime           int64   `json:"closeTime"`
	QuoteVolume         float64 `json:"quoteVolume"`
	Trades              int64   `json:"trades"`
	TakerBuyVolume      float64 `json:"takerBuyVolume"`
	TakerBuyQuoteVolume float64 `json:"takerBuyQuoteVolume"`
}

// StreamCandle is a live kline update. IsClosed is false while the bucket is still aggregating.
type StreamCandle struct {
	Symbol    string  `json:"symbol"`
	Interval  string  `json:"interval"`
	Time      int64   `json:"time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	IsClosed  bool    `json:"isClosed"`
	EventTime int64   `json:"eventTime"`
}

// Ticker is the 24h rolling window snapshot for a symbol.
type Ticker struct {
	Symbol             string  `json:"symbol"`
	PriceChange        float64 `json:"priceChange"`
	PriceChangePercent float64 `json:"priceChangePercent"`
	WeightedAvgPrice   float64 `json:"weightedAvgPrice"`
	PrevClosePrice     float64 `json:"prevClosePrice"`
	LastPrice          float64 `json:"lastPrice"`
	LastQty            float64 `json:"lastQty"`
	BidPrice           float64 `json:"bidPrice"`
	AskPrice           float64 `json:"askPrice"`
	OpenPrice          float64 `json:"openPrice"`
	HighPrice          float64 `json:"highPrice"`
	LowPrice           float64 `json:"lowPrice"`
	Volume             float64 `json:"volume"`
	QuoteVolume        float64 `json:"quoteVolume"`
	OpenTime           int64   `json:"openTime"`
	CloseTime          int64   `json:"closeTime"`
	FirstID            int64   `json:"firstId"`
	LastID             int64   `json:"lastId"`
	Count              int64   `json:"count"`
}

// TickerPrice is the latest traded price for a symbol.
type TickerPrice struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// Closes extracts close prices in candle order.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts volumes in candle order.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
