package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordReconnect("BTCUSDT")
	r.RecordReconnect("BTCUSDT")
	r.RecordError("stream")
	r.RecordRecommendation("BTCUSDT", -1)
	r.RecordRequest("signals", "ok")

	if got := testutil.ToFloat64(r.reconnects.WithLabelValues("BTCUSDT")); got != 2 {
		t.Fatalf("reconnects = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.errorsTotal.WithLabelValues("stream")); got != 1 {
		t.Fatalf("errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.recommendation.WithLabelValues("BTCUSDT")); got != -1 {
		t.Fatalf("recommendation = %v, want -1", got)
	}
	if got := testutil.ToFloat64(r.requestsTotal.WithLabelValues("signals", "ok")); got != 1 {
		t.Fatalf("requests = %v, want 1", got)
	}
}

func TestNewOnSeparateRegistries(t *testing.T) {
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
