// Package server exposes the research pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"researcher/internal/domain"
	"researcher/internal/metrics"
	"researcher/internal/service"
)

// Runner executes research runs; *service.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, query string) (*domain.State, error)
	Stream(ctx context.Context, query string, emit func(service.Event) error) (*domain.State, error)
}

type Server struct {
	e       *echo.Echo
	runner  Runner
	memory  domain.MemoryCapability
	metrics *metrics.Recorder
	log     *zap.Logger
}

func New(runner Runner, memory domain.MemoryCapability, m *metrics.Recorder, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		e:       echo.New(),
		runner:  runner,
		memory:  memory,
		metrics: m,
		log:     log.With(zap.String("module", "http")),
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.HTTPErrorHandler = s.handleError
	s.e.Use(middleware.Recover())
	s.e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
	}))
	s.e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))

	s.e.GET("/healthz", s.health)
	s.e.GET("/metrics", echo.WrapHandler(m.Handler()))
	s.e.GET("/chat", s.chat)
	s.e.GET("/chat/stream", s.chatStream)
	s.e.DELETE("/memory", s.clearMemory)
	return s
}

// Handler returns the HTTP handler; used by tests.
func (s *Server) Handler() http.Handler { return s.e }

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("listening", zap.String("address", addr))
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	if code >= 500 {
		s.log.Error("request failed", zap.Int("status", code), zap.String("method", req.Method),
			zap.String("path", req.URL.Path), zap.Error(err))
	}
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]any{"error": msg})
	}
}

func queryParam(c echo.Context) (string, error) {
	q := strings.TrimSpace(c.QueryParam("query"))
	if q == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	return q, nil
}

func (s *Server) health(c echo.Context) error {
	body := map[string]any{"status": "ok", "memory_available": s.memory.Available()}
	if err := s.memory.Reason(); err != nil {
		body["memory_reason"] = err.Error()
	}
	return c.JSON(http.StatusOK, body)
}

// chat runs the pipeline and returns the final state as one JSON object.
func (s *Server) chat(c echo.Context) error {
	q, err := queryParam(c)
	if err != nil {
		return err
	}
	st, err := s.runner.Run(c.Request().Context(), q)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error()).SetInternal(err)
	}
	return c.JSON(http.StatusOK, st)
}

// chatStream runs the pipeline as server-sent events, one JSON frame per event.
func (s *Server) chatStream(c echo.Context) error {
	q, err := queryParam(c)
	if err != nil {
		return err
	}
	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)
	flusher.Flush()

	started := time.Now()
	_, err = s.runner.Stream(c.Request().Context(), q, func(ev service.Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(resp, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// the error event, if any, is already on the wire
		s.log.Warn("stream ended with error", zap.String("query", q), zap.Duration("elapsed", time.Since(started)), zap.Error(err))
	}
	return nil
}

func (s *Server) clearMemory(c echo.Context) error {
	store, ok := s.memory.Store()
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, s.memory.Reason().Error())
	}
	if err := store.Clear(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
	return c.NoContent(http.StatusNoContent)
}
