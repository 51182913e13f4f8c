package binance

import (
	"errors"
	"testing"
)

func TestParseKlineMessage(t *testing.T) {
	raw := `{"e":"kline","E":1700000000123,"s":"BTCUSDT","k":{"t":1700000000000,"T":1700000059999,"i":"1m","o":"37000.5","c":"37010","h":"37020","l":"36990","v":"12.5","x":true}}`

	tests := []struct {
		name  string
		input string
	}{
		{"raw", raw},
		{"combined", `{"stream":"btcusdt@kline_1m","data":` + raw + `}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseKlineMessage([]byte(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Symbol != "BTCUSDT" || c.Interval != "1m" || !c.IsClosed {
				t.Fatalf("unexpected candle %+v", c)
			}
			if c.Open != 37000.5 || c.Close != 37010 || c.High != 37020 || c.Low != 36990 || c.Volume != 12.5 {
				t.Fatalf("unexpected prices %+v", c)
			}
			if c.Time != 1700000000000 || c.EventTime != 1700000000123 {
				t.Fatalf("unexpected times %+v", c)
			}
		})
	}
}

func TestParseKlineMessageRejects(t *testing.T) {
	if _, err := ParseKlineMessage([]byte(`{"result":null,"id":1}`)); !errors.Is(err, errNotKline) {
		t.Fatalf("expected errNotKline, got %v", err)
	}
	if _, err := ParseKlineMessage([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
	bad := `{"e":"kline","s":"BTCUSDT","k":{"t":1,"T":2,"i":"1m","o":"x","c":"1","h":"1","l":"1","v":"1","x":false}}`
	if _, err := ParseKlineMessage([]byte(bad)); err == nil {
		t.Fatalf("expected number error")
	}
}
