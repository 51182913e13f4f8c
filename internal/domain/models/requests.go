package models

// Requests for the HTTP endpoints. Defined in domain for reuse by handlers and tests.

// CandlesRequest reads from the exchange unless From or To is set, in which
// case the archive is queried. Times are RFC 3339 or Unix milliseconds.
type CandlesRequest struct {
	Symbol   string `query:"symbol" json:"symbol" default:"BTCUSDT" validate:"required,alphanum"`
	Interval string `query:"interval" json:"interval" default:"1h" validate:"required"`
	Limit    int    `query:"limit" json:"limit" default:"100" validate:"gte=1"`
	From     string `query:"from" json:"from"`
	To       string `query:"to" json:"to"`
}

type SymbolRequest struct {
	Symbol string `query:"symbol" json:"symbol" default:"BTCUSDT" validate:"required,alphanum"`
}

type NormalizeRequest struct {
	Interval string `query:"interval" json:"interval" validate:"required"`
}

type SignalsRequest struct {
	Symbol     string `query:"symbol" json:"symbol" default:"BTCUSDT" validate:"required,alphanum"`
	Interval   string `query:"interval" json:"interval" default:"1h" validate:"required"`
	Limit      int    `query:"limit" json:"limit" default:"100" validate:"gte=1"`
	Indicators string `query:"indicators" json:"indicators"`
}
