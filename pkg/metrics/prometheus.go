package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	requestsTotal  *prometheus.CounterVec
	messagesSent   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
	reconnects     *prometheus.CounterVec
	streamState    *prometheus.GaugeVec
	recommendation *prometheus.GaugeVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "klinescope_requests_total",
				Help: "API requests by endpoint and result",
			},
			[]string{"endpoint", "result"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "klinescope_candles_sent_total",
				Help: "Closed candles handed to a backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "klinescope_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "klinescope_last_price",
				Help: "Last close price seen on the live stream",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "klinescope_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		reconnects: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "klinescope_stream_reconnects_total",
				Help: "Scheduled stream reconnects",
			},
			[]string{"symbol"},
		),
		streamState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "klinescope_stream_state",
				Help: "Current stream subscription state",
			},
			[]string{"symbol"},
		),
		recommendation: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "klinescope_recommendation",
				Help: "Latest recommendation: 1 buy, 0 neutral, -1 sell",
			},
			[]string{"symbol"},
		),
	}
}

func (r *Recorder) RecordRequest(endpoint, result string) {
	r.requestsTotal.WithLabelValues(endpoint, result).Inc()
}

func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordReconnect(symbol string) {
	r.reconnects.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordStreamState(symbol string, state int) {
	r.streamState.WithLabelValues(symbol).Set(float64(state))
}

func (r *Recorder) RecordRecommendation(symbol string, score float64) {
	r.recommendation.WithLabelValues(symbol).Set(score)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordRequest(string, string) {}
func (Nop) RecordMessageSent(string, string) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLastPrice(string, float64) {}
func (Nop) RecordLatency(string, float64) {}
func (Nop) RecordReconnect(string) {}
func (Nop) RecordStreamState(string, int) {}
func (Nop) RecordRecommendation(string, float64) {}
