package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rasert/distributed-tracing-poc/internal/api"
	"github.com/rasert/distributed-tracing-poc/internal/app"
	"github.com/rasert/distributed-tracing-poc/internal/config"
	"github.com/rasert/distributed-tracing-poc/internal/observability"
	"github.com/rasert/distributed-tracing-poc/internal/service"
	"github.com/rasert/distributed-tracing-poc/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	serviceName := flag.String("service", "persistence", "service name reported to the tracing backend")
	flag.Parse()

	if err := run(*serviceName); err != nil {
		observability.GetLogger().WithError(err).Fatal("Persistence exited with error")
	}
}

func run(serviceName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Bootstrap(ctx, serviceName, version)
	if err != nil {
		return err
	}
	defer rt.Shutdown()

	cfg := rt.Config
	logger := rt.Logger

	repo, err := openRepository(ctx, cfg.Persistence, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.Close(closeCtx); err != nil {
			logger.WithError(err).Warn("Failed to close repository")
		}
	}()

	store := service.NewTextStore(service.TextStoreConfig{
		Repository:     repo,
		Logger:         logger,
		TracerProvider: rt.Telemetry.TracerProvider(),
	})

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		ServiceName:    serviceName,
		Logger:         logger,
		TracerProvider: rt.Telemetry.TracerProvider(),
		Propagator:     rt.Telemetry.Propagator(),
		Ready:          store.Ping,
		Metrics:        rt.Telemetry.MetricsHandler(),
	})
	api.NewPersistenceHandler(store).Register(router)

	g, gctx := errgroup.WithContext(ctx)
	if err := app.ServeHTTP(gctx, g, serviceName, cfg.Persistence.Port, router, logger); err != nil {
		return err
	}

	err = g.Wait()
	logger.Info("Persistence stopped")
	return err
}

func openRepository(ctx context.Context, cfg config.PersistenceConfig, logger *logrus.Logger) (storage.TextRepository, error) {
	if cfg.Store == "memory" {
		logger.Warn("Using in-memory text store, documents are lost on restart")
		return storage.NewMemoryTextRepository(), nil
	}
	return storage.NewMongoTextRepository(ctx, storage.MongoConfig{
		URI:             cfg.MongoURI,
		Database:        cfg.Database,
		Collection:      cfg.Collection,
		ConnectAttempts: cfg.ConnectAttempts,
		ConnectDelay:    cfg.ConnectDelay,
		Logger:          logger,
	})
}
