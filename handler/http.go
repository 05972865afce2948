package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"portfolio-chat/internal/usecase"
)

// maxBodyBytes bounds chat request bodies read by the HTTP server.
const maxBodyBytes = 64 << 10

// Server is the standalone HTTP front end.
type Server struct {
	echo     *echo.Echo
	chat     ChatUseCase
	observer Observer
}

type ServerOption func(*serverOptions)

type serverOptions struct {
	observer     Observer
	allowOrigins []string
	metrics      http.Handler
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func WithServerObserver(o Observer) ServerOption {
	return func(so *serverOptions) {
		if o != nil {
			so.observer = o
		}
	}
}

func WithServerAllowOrigins(origins ...string) ServerOption {
	return func(so *serverOptions) {
		if len(origins) > 0 {
			so.allowOrigins = origins
		}
	}
}

// WithMetricsHandler serves h at GET /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(so *serverOptions) {
		so.metrics = h
	}
}

func WithTimeouts(read, write time.Duration) ServerOption {
	return func(so *serverOptions) {
		so.readTimeout = read
		so.writeTimeout = write
	}
}

func NewServer(chat ChatUseCase, opts ...ServerOption) (*Server, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	so := serverOptions{observer: nopObserver{}, allowOrigins: []string{"*"}}
	for _, opt := range opts {
		opt(&so)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = so.readTimeout
	e.Server.WriteTimeout = so.writeTimeout
	e.HTTPErrorHandler = httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator:    uuid.NewString,
		TargetHeader: correlationHeader,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogMethod:  true,
		LogURI:     true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"correlation_id", c.Response().Header().Get(correlationHeader),
			)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: so.allowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, correlationHeader},
	}))

	s := &Server{echo: e, chat: chat, observer: so.observer}
	e.POST("/chat", s.handleChat)
	e.GET("/health", s.handleHealth)
	if so.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(so.metrics))
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	slog.Info("http server listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleChat(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest).SetInternal(err)
	}
	correlationID := c.Response().Header().Get(correlationHeader)
	status, payload := serveChat(c.Request().Context(), s.chat, s.observer, correlationID, body)
	return c.JSON(status, payload)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthy)
}

// httpErrorHandler renders routing and middleware errors in the same JSON
// shape as chat errors.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
	}

	var body errorResponse
	switch status {
	case http.StatusNotFound:
		body = errorResponse{Error: errorNotFound, Message: "Not found."}
	case http.StatusMethodNotAllowed:
		body = errorResponse{Error: errorMethodNotAllowed, Message: "Method not allowed."}
	case http.StatusBadRequest:
		body = errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "Invalid request."}
	default:
		status = http.StatusInternalServerError
		body = errorResponse{Error: string(usecase.ErrorInternal), Message: internalErrorMessage}
		slog.Error("unhandled http error", "err", err, "correlation_id", c.Response().Header().Get(correlationHeader))
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, body)
}
