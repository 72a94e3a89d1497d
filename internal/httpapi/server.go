// Package httpapi exposes the core daemon's read-only introspection
// surface plus a handful of reconfiguration endpoints (spec.md §6), built
// on echo the way the teacher's internal/httpcontroller does.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sctg-development/photoacoustic-go/internal/computing"
	"github.com/sctg-development/photoacoustic-go/internal/conf"
	"github.com/sctg-development/photoacoustic-go/internal/events"
	"github.com/sctg-development/photoacoustic-go/internal/logging"
	"github.com/sctg-development/photoacoustic-go/internal/processing"
	"github.com/sctg-development/photoacoustic-go/internal/thermal"
)

// Capabilities is the read surface the HTTP API needs from the running
// daemon. *daemon.Supervisor implements it; tests can supply a stub.
type Capabilities interface {
	Graph() *processing.Graph
	ComputingBus() *computing.Bus
	EventBus() *events.Bus
	Thermal() *thermal.System
}

// Server wraps an Echo instance bound to the daemon's capabilities.
type Server struct {
	Echo   *echo.Echo
	cfg    conf.HTTPConfig
	caps   Capabilities
	logger *slog.Logger
}

// New builds the introspection server. Start must be called to begin
// serving.
func New(cfg conf.HTTPConfig, caps Capabilities) *Server {
	if cfg.Port == 0 {
		cfg.Port = 8090
	}
	s := &Server{
		Echo:   echo.New(),
		cfg:    cfg,
		caps:   caps,
		logger: logging.ForComponent("httpapi"),
	}
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("http request", "uri", v.URI, "status", v.Status, logging.WithErr(v.Error))
			return nil
		},
	}))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/healthz", s.handleHealthz)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.Echo.Group("/api/v1")
	v1.GET("/bus", s.handleBusSnapshot)
	v1.GET("/graph", s.handleGraphStructure)
	v1.GET("/graph/stats", s.handleGraphStats)
	v1.GET("/graph/actions", s.handleActionNodes)
	v1.PUT("/graph/nodes/:id", s.handleUpdateNodeConfig)
	v1.GET("/system", s.handleSystemStats)
	v1.GET("/thermal", s.handleThermalStatus)
	v1.GET("/thermal/:id/history", s.handleThermalHistory)
	v1.POST("/thermal/:id/command", s.handleThermalCommand)
	v1.GET("/events/stats", s.handleEventStats)
}

// Start begins serving; it blocks until the server stops or errors.
func (s *Server) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("http api disabled in config")
		return nil
	}
	addr := s.cfg.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("http api listening", "address", addr, "port", s.cfg.Port)
	err := s.Echo.Start(formatAddr(addr, s.cfg.Port))
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func formatAddr(address string, port int) string {
	return fmt.Sprintf("%s:%d", address, port)
}
