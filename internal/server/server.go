// Package server exposes the chat orchestrator and run statistics over
// HTTP.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/prospero-intel/prospero/internal/ragchat"
	"github.com/prospero-intel/prospero/internal/store"
	"github.com/prospero-intel/prospero/internal/telemetry"
	"github.com/prospero-intel/prospero/provider"
)

// Server wires the HTTP surface.
type Server struct {
	Chat    *ragchat.Orchestrator
	Store   *store.Store // nil disables the runs endpoint data
	Metrics *telemetry.Metrics
	Logger  *log.Logger
}

// Echo builds the configured echo instance.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.Logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}
	e.POST("/api/chat", s.handleChat)
	e.GET("/api/runs/latest", s.handleLatestRun)
	return e
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	return s.Echo().Start(addr)
}

type chatRequest struct {
	Messages []provider.Message `json:"messages"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "messages required")
	}
	resp, err := s.Chat.Chat(c.Request().Context(), req.Messages)
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLatestRun(c echo.Context) error {
	if s.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no run store configured")
	}
	runID, stats, err := s.Store.LatestRunStats(c.Request().Context())
	if err != nil {
		return fmt.Errorf("latest run: %w", err)
	}
	if stats == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no runs recorded")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"run_id": runID, "stats": stats})
}
