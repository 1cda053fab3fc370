package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum-optimism/optimism/op-service/httputil"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	Log         log.Logger
	HealthzAddr string // Healthz is disabled when empty
	Metrics     opmetrics.CLIConfig
	Registry    *prometheus.Registry
}

// Service runs the optional healthz and metrics servers next to a test run
type Service struct {
	cfg     Config
	log     log.Logger
	healthz *HealthzServer
	metrics *httputil.HTTPServer
}

func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Service{cfg: cfg, log: cfg.Log}
}

func (s *Service) Start(ctx context.Context) error {
	s.log.Info("service starting")

	if s.cfg.HealthzAddr != "" {
		healthz := NewHealthzServer(s.log)
		if err := healthz.Start(s.cfg.HealthzAddr); err != nil {
			return fmt.Errorf("failed to start healthz server: %w", err)
		}
		s.healthz = healthz
		s.log.Info("Started healthz server", "addr", healthz.Addr())
	}

	if s.cfg.Metrics.Enabled {
		if s.cfg.Registry == nil {
			return fmt.Errorf("metrics enabled without a registry")
		}
		s.log.Info("Starting metrics server", "addr", s.cfg.Metrics.ListenAddr, "port", s.cfg.Metrics.ListenPort)
		server, err := opmetrics.StartServer(s.cfg.Registry, s.cfg.Metrics.ListenAddr, s.cfg.Metrics.ListenPort)
		if err != nil {
			return errors.Join(fmt.Errorf("failed to start metrics server: %w", err), s.Stop(ctx))
		}
		s.metrics = server
		s.log.Info("Started metrics server", "endpoint", server.Addr())
	}

	s.log.Info("service started")
	return nil
}

// HealthzAddr returns the bound healthz address, empty when not running
func (s *Service) HealthzAddr() string {
	if s.healthz == nil || s.healthz.Addr() == nil {
		return ""
	}
	return s.healthz.Addr().String()
}

// MetricsAddr returns the bound metrics address, empty when not running
func (s *Service) MetricsAddr() string {
	if s.metrics == nil {
		return ""
	}
	return s.metrics.Addr().String()
}

func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("service shutting down")

	var result error
	if s.healthz != nil {
		if err := s.healthz.Shutdown(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop healthz server: %w", err))
		}
		s.healthz = nil
		s.log.Info("healthz stopped")
	}
	if s.metrics != nil {
		if err := s.metrics.Stop(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop metrics server: %w", err))
		}
		s.metrics = nil
		s.log.Info("metrics stopped")
	}

	s.log.Info("service stopped")
	return result
}
