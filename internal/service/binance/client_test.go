package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"KlineScope/internal/domain/models"
	xhttp "KlineScope/pkg/http"
	applogger "KlineScope/pkg/logger"
	"KlineScope/pkg/metrics"
)

const klineFixture = `[
  [1499040000000, "0.01634790", "0.80000000", "0.01575800", "0.01577100", "148976.11427815",
   1499644799999, "2434.19055334", 308, "1756.87402397", "28.46694368", "0"],
  [1499644800000, "0.01577100", "0.01600000", "0.01500000", "0.01590000", "1000.5",
   1500249599999, "15.9", 12, "400.25", "6.3", "0"]
]`

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(srv.URL, xhttp.NewClient(xhttp.WithTimeout(2*time.Second)), applogger.Nop(), metrics.Nop{})
	return c, srv
}

func TestParseKlineRow(t *testing.T) {
	var rows [][]interface{}
	dec := json.NewDecoder(strings.NewReader(klineFixture))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		t.Fatal(err)
	}

	got, err := ParseKlineRow(rows[0])
	if err != nil {
		t.Fatalf("ParseKlineRow: %v", err)
	}
	want := models.Candle{
		Time:                1499040000000,
		Open:                0.01634790,
		High:                0.80000000,
		Low:                 0.01575800,
		Close:               0.01577100,
		Volume:              148976.11427815,
		CloseTime:           1499644799999,
		QuoteVolume:         2434.19055334,
		Trades:              308,
		TakerBuyVolume:      1756.87402397,
		TakerBuyQuoteVolume: 28.46694368,
	}
	if got != want {
		t.Fatalf("ParseKlineRow =\n %+v\nwant\n %+v", got, want)
	}
}

func TestParseKlineRowShort(t *testing.T) {
	if _, err := ParseKlineRow([]interface{}{json.Number("1")}); err == nil {
		t.Fatal("expected error for short row")
	}
}

func TestFetchCandles(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "BNBBTC" || q.Get("interval") != "1h" || q.Get("limit") != "1000" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(klineFixture))
	})

	// 50m is not served by the exchange and 5000 exceeds the batch maximum.
	candles, err := c.FetchCandles(context.Background(), "BNBBTC", "50m", 5000)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("len = %d, want 2", len(candles))
	}
	if candles[0].Time >= candles[1].Time {
		t.Fatalf("order changed: %d then %d", candles[0].Time, candles[1].Time)
	}
	if candles[1].Trades != 12 || candles[1].Close != 0.0159 {
		t.Fatalf("second candle = %+v", candles[1])
	}
}

func TestFetchCandlesInvalidInterval(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.FetchCandles(context.Background(), "BTCUSDT", "fortnight", 10)
	if !errors.Is(err, models.ErrInvalidFormat) {
		t.Fatalf("err = %v, want ErrInvalidFormat", err)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{-5, DefaultLimit},
		{0, DefaultLimit},
		{1, 1},
		{1000, 1000},
		{1001, 1000},
		{50000, 1000},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestUpstreamError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})

	_, err := c.FetchTicker(context.Background(), "NOPE")
	var ue *models.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if ue.Status != http.StatusBadRequest || ue.Message != "Invalid symbol." {
		t.Fatalf("upstream error = %+v", ue)
	}
}

func TestUpstreamErrorWithoutBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.FetchCurrentPrice(context.Background(), "BTCUSDT")
	var ue *models.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if ue.Message != "Service Unavailable" || !ue.Temporary() {
		t.Fatalf("upstream error = %+v", ue)
	}
}

func TestNetworkError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.FetchCurrentPrice(context.Background(), "BTCUSDT")
	var ne *models.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %v, want *NetworkError", err)
	}
}

func TestFetchTicker(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/24hr" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"symbol":"BTCUSDT","priceChange":"-94.99999800","priceChangePercent":"-95.960",
			"weightedAvgPrice":"0.29628482","prevClosePrice":"0.10002000","lastPrice":"4.00000200",
			"lastQty":"200.00000000","bidPrice":"4.00000000","askPrice":"4.00000200",
			"openPrice":"99.00000000","highPrice":"100.00000000","lowPrice":"0.10000000",
			"volume":"8913.30000000","quoteVolume":"15.30000000","openTime":1499783499040,
			"closeTime":1499869899040,"firstId":28385,"lastId":28460,"count":76}`))
	})

	tk, err := c.GetTicker(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetTicker: %v", err)
	}
	if tk.LastPrice != 4.000002 || tk.PriceChange != -94.999998 || tk.Count != 76 || tk.OpenTime != 1499783499040 {
		t.Fatalf("ticker = %+v", tk)
	}
}

func TestFetchCurrentPrice(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"LTCBTC","price":"4.00000200"}`))
	})

	p, err := c.FetchCurrentPrice(context.Background(), "LTCBTC")
	if err != nil {
		t.Fatalf("FetchCurrentPrice: %v", err)
	}
	if p.Symbol != "LTCBTC" || p.Price != 4.000002 {
		t.Fatalf("price = %+v", p)
	}
}

func TestSupportedIntervals(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	got := c.SupportedIntervals()
	if len(got) != 14 || got[0] != "1s" || got[len(got)-1] != "3d" {
		t.Fatalf("SupportedIntervals = %v", got)
	}
}
