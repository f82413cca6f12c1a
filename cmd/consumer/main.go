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
	serviceName := flag.String("service", "consumer", "service name reported to the tracing backend")
	flag.Parse()

	if err := run(*serviceName); err != nil {
		observability.GetLogger().WithError(err).Fatal("Consumer exited with error")
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

	forwarder := service.NewTextForwarder(service.ForwarderConfig{
		PersistenceURL: cfg.Consumer.PersistenceURL,
		Timeout:        cfg.Consumer.HandlerTimeout,
		Metrics:        rt.Metrics,
		Logger:         logger,
		TracerProvider: rt.Telemetry.TracerProvider(),
		Propagator:     rt.Telemetry.Propagator(),
	})

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         cfg.Kafka.Brokers,
		Topic:           cfg.Kafka.Topic,
		GroupID:         cfg.Consumer.GroupID,
		HandlerTimeout:  cfg.Consumer.HandlerTimeout,
		ShutdownTimeout: cfg.Consumer.ShutdownTimeout,
		Metrics:         rt.Metrics,
		Logger:          logger,
		TracerProvider:  rt.Telemetry.TracerProvider(),
		Propagator:      rt.Telemetry.Propagator(),
	})

	gin.SetMode(gin.ReleaseMode)
	ops := api.NewOpsRouter(client.HealthCheck, rt.Telemetry.MetricsHandler())

	g, gctx := errgroup.WithContext(ctx)
	if err := app.ServeHTTP(gctx, g, "consumer-ops", cfg.Consumer.OpsPort, ops, logger); err != nil {
		return err
	}

	g.Go(func() error {
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close consumer")
			}
		}()
		return consumer.Start(gctx, forwarder.Handle)
	})

	err = g.Wait()
	logger.Info("Consumer stopped")
	return err
}
