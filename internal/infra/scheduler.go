package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"KlineScope/internal/domain/models"
	"KlineScope/internal/usecase"
	applogger "KlineScope/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
)

// Analyzer runs a single analysis.
type Analyzer interface {
	Analyze(ctx context.Context, p usecase.AnalyzeParams) (*models.AnalysisResult, error)
}

type SchedulerConfig struct {
	Schedule        string // six-field cron expression, seconds first
	Symbols         []string
	Interval        string
	Limit           int
	Active          models.ActiveSet
	RetryMaxElapsed time.Duration
}

// Scheduler periodically analyzes a fixed symbol list and keeps the latest
// result per symbol.
type Scheduler struct {
	cron     *cron.Cron
	analyzer Analyzer
	cfg      SchedulerConfig
	logger   *applogger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	latest map[string]*models.AnalysisResult
}

func NewScheduler(analyzer Analyzer, cfg SchedulerConfig, logger *applogger.Logger) *Scheduler {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 */5 * * * *"
	}
	if cfg.RetryMaxElapsed <= 0 {
		cfg.RetryMaxElapsed = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		analyzer: analyzer,
		cfg:      cfg,
		logger:   logger.With(applogger.String("component", "scheduler")),
		ctx:      ctx,
		cancel:   cancel,
		latest:   make(map[string]*models.AnalysisResult),
	}
}

// Start registers the analysis job and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		applogger.String("schedule", s.cfg.Schedule),
		applogger.Strings("symbols", s.cfg.Symbols),
	)
	if _, err := s.cron.AddFunc(s.cfg.Schedule, func() { s.RunOnce(s.ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	return nil
}

// Stop cancels in-flight analyses and waits for the running job to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunOnce analyzes every configured symbol concurrently and returns the
// number of successful runs.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for _, raw := range s.cfg.Symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.runSymbol(ctx, symbol) {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return ok
}

func (s *Scheduler) runSymbol(ctx context.Context, symbol string) bool {
	start := time.Now()
	var res *models.AnalysisResult

	op := func() error {
		r, err := s.analyzer.Analyze(ctx, usecase.AnalyzeParams{
			Symbol:   symbol,
			Interval: s.cfg.Interval,
			Limit:    s.cfg.Limit,
			Active:   s.cfg.Active,
		})
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		res = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = s.cfg.RetryMaxElapsed
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("analysis failed, retrying",
			applogger.String("symbol", symbol),
			applogger.Duration("wait_ms", wait),
			applogger.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		s.logger.Error("analysis failed",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return false
	}

	s.mu.Lock()
	s.latest[symbol] = res
	s.mu.Unlock()

	s.logger.Info("analysis complete",
		applogger.String("symbol", symbol),
		applogger.String("interval", res.Interval),
		applogger.Float64("price", res.Price),
		applogger.String("recommendation", string(res.Verdict.Recommendation)),
		applogger.Int("buy", res.Verdict.Summary.Buy),
		applogger.Int("sell", res.Verdict.Summary.Sell),
		applogger.Int("neutral", res.Verdict.Summary.Neutral),
		applogger.Duration("took_ms", time.Since(start)),
	)
	return true
}

// Latest returns the most recent scheduled result for symbol.
func (s *Scheduler) Latest(symbol string) (*models.AnalysisResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.latest[strings.ToUpper(symbol)]
	return r, ok
}

// retryable reports whether err may clear on its own: network failures and
// rate-limit or server-side upstream errors.
func retryable(err error) bool {
	if errors.Is(err, models.ErrInvalidFormat) || errors.Is(err, models.ErrInvalidInput) {
		return false
	}
	var ue *models.UpstreamError
	if errors.As(err, &ue) {
		return ue.Temporary()
	}
	return true
}
