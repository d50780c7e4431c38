package server

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/prospero-intel/prospero/internal/telemetry"
)

func newTestServer() *Server {
	return &Server{
		Metrics: telemetry.NewMetrics(),
		Logger:  log.New(io.Discard, "", 0),
	}
}

func TestHealthz(t *testing.T) {
	e := newTestServer().Echo()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestChatRejectsEmptyMessages(t *testing.T) {
	e := newTestServer().Echo()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages": []}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty messages status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error") {
		t.Fatalf("error body missing: %s", rec.Body.String())
	}
}

func TestChatRejectsMalformedBody(t *testing.T) {
	e := newTestServer().Echo()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{not json`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d", rec.Code)
	}
}

func TestLatestRunWithoutStore(t *testing.T) {
	e := newTestServer().Echo()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/latest", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("runs without store status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestServer().Echo()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
}
