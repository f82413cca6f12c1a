package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rasert/distributed-tracing-poc/internal/api"
	"github.com/rasert/distributed-tracing-poc/internal/app"
	"github.com/rasert/distributed-tracing-poc/internal/kafka"
	"github.com/rasert/distributed-tracing-poc/internal/observability"
	"github.com/rasert/distributed-tracing-poc/internal/service"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	serviceName := flag.String("service", "publisher", "service name reported to the tracing backend")
	flag.Parse()

	if err := run(*serviceName); err != nil {
		observability.GetLogger().WithError(err).Fatal("Publisher exited with error")
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

	client := kafka.NewClient(cfg.Kafka.Brokers)
	if err := client.WaitReady(ctx, cfg.Kafka.ConnectAttempts, cfg.Kafka.ConnectDelay); err != nil {
		return err
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:        cfg.Kafka.Brokers,
		Acks:           cfg.Kafka.AcksValue(),
		MaxAttempts:    cfg.Kafka.MaxAttempts,
		WriteTimeout:   cfg.Kafka.WriteTimeout,
		Metrics:        rt.Metrics,
		Logger:         logger,
		TracerProvider: rt.Telemetry.TracerProvider(),
		Propagator:     rt.Telemetry.Propagator(),
	})
	defer func() {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close producer")
		}
	}()

	publisher := service.NewTextPublisher(service.PublisherConfig{
		Topic:          cfg.Kafka.Topic,
		Producer:       producer,
		Metrics:        rt.Metrics,
		Logger:         logger,
		TracerProvider: rt.Telemetry.TracerProvider(),
	})

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		ServiceName:    serviceName,
		Logger:         logger,
		TracerProvider: rt.Telemetry.TracerProvider(),
		Propagator:     rt.Telemetry.Propagator(),
		Ready:          client.HealthCheck,
		Metrics:        rt.Telemetry.MetricsHandler(),
	})
	api.NewPublisherHandler(publisher).Register(router)

	g, gctx := errgroup.WithContext(ctx)
	if err := app.ServeHTTP(gctx, g, serviceName, cfg.Publisher.Port, router, logger); err != nil {
		return err
	}

	err = g.Wait()
	logger.Info("Publisher stopped")
	return err
}
