// Package app holds the startup and shutdown steps shared by the three binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rasert/distributed-tracing-poc/internal/config"
	"github.com/rasert/distributed-tracing-poc/internal/observability"
	"github.com/rasert/distributed-tracing-poc/internal/telemetry"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 10 * time.Second

// Runtime is what every binary needs before wiring its own components
type Runtime struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Telemetry *telemetry.Provider
	Metrics   *observability.OTelMetrics
}

// Bootstrap loads configuration, configures logging and builds the telemetry providers.
func Bootstrap(ctx context.Context, serviceName, version string) (*Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	observability.InitLogger(cfg.Logging.Level)
	observability.InitFormat(cfg.Logging.Format)
	logger := observability.GetLogger()

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	metrics, err := observability.NewOTelMetrics(tel.Meter(serviceName))
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"service":  serviceName,
		"version":  version,
		"exporter": cfg.Telemetry.Exporter,
	}).Info("Service bootstrapped")

	return &Runtime{
		Config:    cfg,
		Logger:    logger,
		Telemetry: tel,
		Metrics:   metrics,
	}, nil
}

// Shutdown flushes telemetry within the shutdown grace period
func (r *Runtime) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := r.Telemetry.Shutdown(ctx); err != nil {
		r.Logger.WithError(err).Warn("Failed to flush telemetry")
	}
}

// ServeHTTP binds port immediately and serves handler in g until ctx is done.
// A bind failure is returned to the caller instead of surfacing later from g.
func ServeHTTP(ctx context.Context, g *errgroup.Group, name string, port int, handler http.Handler, logger *logrus.Logger) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to bind %s listener: %w", name, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.WithFields(logrus.Fields{"server": name, "addr": ln.Addr().String()}).Info("HTTP server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		logger.WithField("server", name).Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})
	return nil
}
