// Package server wires the resolver pipeline into an HTTP surface: the ask
// endpoint, metrics and health probes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/cleanbrain/brain"
	"github.com/hrygo/cleanbrain/brain/bitrix"
	"github.com/hrygo/cleanbrain/brain/logging"
	"github.com/hrygo/cleanbrain/brain/metrics"
	"github.com/hrygo/cleanbrain/brain/resolver"
	"github.com/hrygo/cleanbrain/internal/profile"
	apiv1 "github.com/hrygo/cleanbrain/server/router/api/v1"
	"github.com/hrygo/cleanbrain/store"
)

// Server hosts the HTTP API over the resolver pipeline.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echo       *echo.Echo
	metrics    *metrics.Collector
	dispatcher *resolver.Dispatcher
	logger     *logging.Logger
}

// NewServer assembles the full pipeline: CRM client and gateway, brain,
// dispatcher, metrics, and the echo routes.
func NewServer(ctx context.Context, prof *profile.Profile, st *store.Store) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	collector := metrics.New(metrics.DefaultConfig())

	client := bitrix.NewClient(prof.BitrixWebhookURL, prof.BitrixDeadline())

	fields := bitrix.DefaultFieldMap()
	if prof.BitrixAddressField != "" {
		fields.Address = prof.BitrixAddressField
	}
	if prof.BitrixApartmentsField != "" {
		fields.Apartments = prof.BitrixApartmentsField
	}
	if prof.BitrixEntrancesField != "" {
		fields.Entrances = prof.BitrixEntrancesField
	}
	if prof.BitrixFloorsField != "" {
		fields.Floors = prof.BitrixFloorsField
	}
	gateway := bitrix.NewGateway(client, prof.BitrixCategoryID, fields)

	cfg := brain.DefaultConfig()
	if prof.HousesCacheTTL > 0 {
		cfg.HousesTTL = time.Duration(prof.HousesCacheTTL) * time.Second
	}
	if prof.ElderCacheTTL > 0 {
		cfg.ElderTTL = time.Duration(prof.ElderCacheTTL) * time.Second
	}
	if prof.FinanceCacheTTL > 0 {
		cfg.FinanceTTL = time.Duration(prof.FinanceCacheTTL) * time.Second
	}
	if prof.BreakerThreshold > 0 {
		cfg.BreakerThreshold = prof.BreakerThreshold
	}
	if prof.BreakerOpenSecs > 0 {
		cfg.BreakerOpenFor = time.Duration(prof.BreakerOpenSecs) * time.Second
	}

	dispatcher := resolver.New(brain.New(gateway, st, cfg))
	dispatcher.SetMetrics(collector)

	s := &Server{
		Profile:    prof,
		Store:      st,
		echo:       e,
		metrics:    collector,
		dispatcher: dispatcher,
		logger:     logging.FromContext(ctx).WithField("component", "server"),
	}

	e.Use(middleware.Recover())
	e.Use(requestLogger(s.logger))

	e.GET("/healthz", s.healthz)
	e.GET("/metrics", echo.WrapHandler(collector.Handler()))

	api := apiv1.NewAPIV1Service(prof, dispatcher, collector)
	api.RegisterRoutes(e)

	return s, nil
}

// Start begins serving in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	s.logger.Info("http server starting", "address", address, "mode", s.Profile.Mode)
	go func() {
		if err := s.echo.Start(address); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server stopped", "error", err.Error())
		}
	}()
	return nil
}

// Shutdown drains in-flight requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("failed to shut down http server", "error", err.Error())
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			s.logger.Error("failed to close store", "error", err.Error())
		}
	}
	s.logger.Info("server shut down")
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.Profile.Version,
	})
}

// requestLogger emits one structured line per request.
func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return err
		}
	}
}
