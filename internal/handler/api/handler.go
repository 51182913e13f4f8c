package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"KlineScope/internal/domain/models"
	domrepo "KlineScope/internal/domain/repository"
	"KlineScope/internal/usecase"
	xhttp "KlineScope/pkg/http"
	applogger "KlineScope/pkg/logger"
	"KlineScope/pkg/util"

	"github.com/labstack/echo/v4"
)

// Analyzer runs an on-demand analysis.
type Analyzer interface {
	Analyze(ctx context.Context, p usecase.AnalyzeParams) (*models.AnalysisResult, error)
}

// LatestResults exposes results produced by the scheduled analysis job.
type LatestResults interface {
	Latest(symbol string) (*models.AnalysisResult, bool)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// KlineHandler serves market data and signal endpoints.
type KlineHandler struct {
	market   domrepo.MarketData
	candles  *usecase.CandlesUseCase
	analyzer Analyzer
	latest   LatestResults
	checks   map[string]HealthCheck
	metrics  domrepo.Metrics
	logger   *applogger.Logger
}

func NewKlineHandler(market domrepo.MarketData, candles *usecase.CandlesUseCase, analyzer Analyzer, metrics domrepo.Metrics, logger *applogger.Logger) *KlineHandler {
	return &KlineHandler{
		market:   market,
		candles:  candles,
		analyzer: analyzer,
		checks:   map[string]HealthCheck{},
		metrics:  metrics,
		logger:   logger.With(applogger.String("component", "api")),
	}
}

// SetLatest enables /api/signals/latest.
func (h *KlineHandler) SetLatest(l LatestResults) { h.latest = l }

// AddHealthCheck registers a named dependency check for /healthz.
func (h *KlineHandler) AddHealthCheck(name string, fn HealthCheck) { h.checks[name] = fn }

func (h *KlineHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/intervals", h.Intervals)
	g.GET("/intervals/normalize", h.Normalize)
	g.GET("/candles", h.Candles)
	g.GET("/ticker", h.Ticker)
	g.GET("/price", h.Price)
	g.GET("/signals", h.Signals)
	g.GET("/signals/latest", h.LatestSignals)
}

// observe records latency and outcome for endpoint.
func (h *KlineHandler) observe(endpoint string, start time.Time, err error) {
	h.metrics.RecordLatency("api_"+endpoint, time.Since(start).Seconds())
	h.metrics.RecordRequest(endpoint, result(err))
}

func (h *KlineHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed", applogger.String("endpoint", endpoint), applogger.Error(err))
	} else {
		h.logger.Debug("request rejected", applogger.String("endpoint", endpoint), applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *KlineHandler) Intervals(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"intervals": h.market.SupportedIntervals(),
	})
}

func (h *KlineHandler) Normalize(c echo.Context) error {
	start := time.Now()
	req := &models.NormalizeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf, err := h.market.NormalizeInterval(req.Interval)
	h.observe("normalize", start, err)
	if err != nil {
		return h.fail(c, "normalize", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"input":       req.Interval,
		"interval":    tf,
		"substituted": string(tf) != req.Interval,
	})
}

func (h *KlineHandler) Candles(c echo.Context) error {
	start := time.Now()
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, err := parseTime(req.From)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid from: %v", err))
	}
	to, err := parseTime(req.To)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid to: %v", err))
	}

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Limit:    req.Limit,
		From:     from,
		To:       to,
	})
	h.observe("candles", start, err)
	if err != nil {
		return h.fail(c, "candles", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *KlineHandler) Ticker(c echo.Context) error {
	start := time.Now()
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.market.FetchTicker(c.Request().Context(), strings.ToUpper(req.Symbol))
	h.observe("ticker", start, err)
	if err != nil {
		return h.fail(c, "ticker", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, res)
}

func (h *KlineHandler) Price(c echo.Context) error {
	start := time.Now()
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.market.FetchCurrentPrice(c.Request().Context(), strings.ToUpper(req.Symbol))
	h.observe("price", start, err)
	if err != nil {
		return h.fail(c, "price", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *KlineHandler) Signals(c echo.Context) error {
	start := time.Now()
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	active, err := models.ParseActiveSet(strings.Split(req.Indicators, ","))
	if err != nil {
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_UNKNOWN_INDICATOR", "indicators", err.Error(), http.StatusBadRequest))
	}

	res, err := h.analyzer.Analyze(c.Request().Context(), usecase.AnalyzeParams{
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Limit:    req.Limit,
		Active:   active,
	})
	h.observe("signals", start, err)
	if err != nil {
		return h.fail(c, "signals", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *KlineHandler) LatestSignals(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.latest == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("scheduled analysis is disabled"))
	}
	res, ok := h.latest.Latest(req.Symbol)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no scheduled result for %s", strings.ToUpper(req.Symbol)))
	}
	return xhttp.SuccessResponse(c, res)
}

// Health runs every registered check with a short deadline.
func (h *KlineHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	report := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			report[name] = err.Error()
			continue
		}
		report[name] = "ok"
	}
	return xhttp.DataResponse(c, status, report)
}

// parseTime accepts RFC 3339 or Unix milliseconds. Empty input yields the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return util.MillisToTime(ms), nil
	}
	return time.Parse(time.RFC3339, s)
}
