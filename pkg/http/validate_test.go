package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type candlesQuery struct {
	Symbol   string `query:"symbol" default:"BTCUSDT" validate:"required,alphanum"`
	Interval string `query:"interval" validate:"required"`
	Limit    int    `query:"limit" default:"100" validate:"gte=1"`
}

func readQuery(t *testing.T, target string) (*candlesQuery, []ValidationError) {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
	req := &candlesQuery{}
	verr := ReadAndValidateRequest(c, req)
	if verr == nil {
		return req, nil
	}
	errs, ok := verr.([]ValidationError)
	if !ok {
		t.Fatalf("unexpected error type %T", verr)
	}
	return req, errs
}

func TestReadAndValidateRequestDefaults(t *testing.T) {
	req, errs := readQuery(t, "/?interval=4h")
	if errs != nil {
		t.Fatalf("unexpected errors %+v", errs)
	}
	if req.Symbol != "BTCUSDT" || req.Limit != 100 || req.Interval != "4h" {
		t.Fatalf("got %+v", req)
	}
}

func TestReadAndValidateRequestFieldErrors(t *testing.T) {
	tests := []struct {
		target  string
		code    string
		field   string
		message string
	}{
		{"/?symbol=BTCUSDT", "ERR_REQUIRED", "interval", "interval is required"},
		{"/?interval=1h&symbol=BTC-USDT", "ERR_ALPHANUM", "symbol", "symbol must be an exchange pair such as BTCUSDT"},
		{"/?interval=1h&limit=-5", "ERR_GTE", "limit", "limit must be at least 1"},
		{"/?interval=1h&limit=ten", "ERR_BIND", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			_, errs := readQuery(t, tt.target)
			if len(errs) != 1 {
				t.Fatalf("got %+v", errs)
			}
			got := errs[0]
			if got.Code != tt.code || got.Field != tt.field {
				t.Fatalf("got %+v", got)
			}
			if tt.message != "" && got.Message != tt.message {
				t.Fatalf("message %q want %q", got.Message, tt.message)
			}
		})
	}
}
