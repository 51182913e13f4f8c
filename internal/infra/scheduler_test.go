package infra

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"KlineScope/internal/domain/models"
	"KlineScope/internal/usecase"
	applogger "KlineScope/pkg/logger"
)

type scriptedAnalyzer struct {
	mu    sync.Mutex
	calls map[string]int
	errs  map[string][]error
}

func (a *scriptedAnalyzer) Analyze(_ context.Context, p usecase.AnalyzeParams) (*models.AnalysisResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.calls[p.Symbol]
	a.calls[p.Symbol] = n + 1
	if errs := a.errs[p.Symbol]; n < len(errs) {
		return nil, errs[n]
	}
	return &models.AnalysisResult{
		Symbol:   p.Symbol,
		Interval: p.Interval,
		Verdict:  models.SignalVerdict{Recommendation: models.VerdictBuy},
	}, nil
}

func (a *scriptedAnalyzer) count(symbol string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[symbol]
}

func TestRunOnceRetriesTransientErrors(t *testing.T) {
	a := &scriptedAnalyzer{
		calls: map[string]int{},
		errs: map[string][]error{
			"BTCUSDT": {&models.NetworkError{Op: "klines", Err: errors.New("reset")}, &models.UpstreamError{Status: 429}},
			"ETHUSDT": {&models.UpstreamError{Status: 400, Message: "Invalid symbol."}},
			"BADUSDT": {models.ErrInvalidFormat},
		},
	}
	s := NewScheduler(a, SchedulerConfig{
		Symbols:         []string{"btcusdt", "ETHUSDT", "BADUSDT", " "},
		Interval:        "1h",
		RetryMaxElapsed: 10 * time.Second,
	}, applogger.Nop())

	if ok := s.RunOnce(context.Background()); ok != 1 {
		t.Fatalf("expected 1 successful run, got %d", ok)
	}
	if a.count("BTCUSDT") != 3 {
		t.Fatalf("expected 3 attempts for transient errors, got %d", a.count("BTCUSDT"))
	}
	if a.count("ETHUSDT") != 1 || a.count("BADUSDT") != 1 {
		t.Fatalf("permanent errors must not be retried: eth=%d bad=%d", a.count("ETHUSDT"), a.count("BADUSDT"))
	}

	res, ok := s.Latest("btcusdt")
	if !ok || res.Verdict.Recommendation != models.VerdictBuy {
		t.Fatalf("expected stored result, got %+v %v", res, ok)
	}
	if _, ok := s.Latest("ETHUSDT"); ok {
		t.Fatalf("failed symbol must have no result")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{models.ErrInvalidFormat, false},
		{models.ErrInvalidInput, false},
		{&models.UpstreamError{Status: 404}, false},
		{&models.UpstreamError{Status: 503}, true},
		{&models.UpstreamError{Status: 418}, true},
		{&models.NetworkError{Op: "x", Err: errors.New("eof")}, true},
	}
	for _, tt := range tests {
		if got := retryable(tt.err); got != tt.want {
			t.Errorf("retryable(%v) = %v want %v", tt.err, got, tt.want)
		}
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(&scriptedAnalyzer{calls: map[string]int{}}, SchedulerConfig{Schedule: "every now and then"}, applogger.Nop())
	if err := s.Start(); err == nil {
		t.Fatalf("expected invalid schedule error")
	}

	s = NewScheduler(&scriptedAnalyzer{calls: map[string]int{}}, SchedulerConfig{Schedule: "*/1 * * * * *"}, applogger.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
}
