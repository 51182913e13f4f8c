package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applogger "KlineScope/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/ok", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/panic", func(c echo.Context) error { panic("boom") })
	e.GET("/missing", func(c echo.Context) error { return AppErrorResponse(c, NotFoundErrorf("no %s", "thing")) })
}

func serve(s *Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServerRoutesAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServer(routes{}, applogger.Nop(), WithRegistry(reg), WithPort(0))

	if rec := serve(s, "/ok"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"pong"`) {
		t.Fatalf("ok: %d %s", rec.Code, rec.Body.String())
	}
	if rec := serve(s, "/missing"); rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "ERR_NOT_FOUND") {
		t.Fatalf("missing: %d %s", rec.Code, rec.Body.String())
	}
	if rec := serve(s, "/panic"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("panic: %d", rec.Code)
	}

	rec := serve(s, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `http_requests_total{method="GET",route="/ok",status="200"} 1`) {
		t.Fatalf("request counter missing:\n%s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	s := NewServer(routes{}, applogger.Nop(), WithRegistry(prometheus.NewRegistry()))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/ok", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	s.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET,OPTIONS" {
		t.Fatalf("allow methods = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "3600" {
		t.Fatalf("max age = %q", got)
	}
}

func TestCORSDisabled(t *testing.T) {
	s := NewServer(routes{}, applogger.Nop(), WithRegistry(prometheus.NewRegistry()), WithCORS(false))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Origin", "http://example.com")
	s.Echo().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
