// Package api exposes the publisher and persistence services over gin.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rasert/distributed-tracing-poc/internal/observability"
	"github.com/rasert/distributed-tracing-poc/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ReadyFunc reports whether a service's dependencies are reachable
type ReadyFunc func(ctx context.Context) error

type RouterConfig struct {
	ServiceName    string
	Logger         *logrus.Logger
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
	Ready          ReadyFunc
	Metrics        http.Handler
}

// NewRouter builds a gin engine with recovery, request logging, tracing and the ops routes.
// Ops routes are not traced.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = observability.GetLogger()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = noop.NewTracerProvider()
	}
	if cfg.Propagator == nil {
		cfg.Propagator = telemetry.W3CPropagator()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	RegisterOps(r, cfg.Ready, cfg.Metrics)

	r.Use(otelgin.Middleware(cfg.ServiceName,
		otelgin.WithTracerProvider(cfg.TracerProvider),
		otelgin.WithPropagators(cfg.Propagator),
	))
	r.Use(requestLogger(cfg.Logger))
	return r
}

// NewOpsRouter serves only the ops routes, for processes without a business API
func NewOpsRouter(ready ReadyFunc, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	RegisterOps(r, ready, metrics)
	return r
}

// RegisterOps adds /healthz, /readyz and, when metrics is set, /metrics.
func RegisterOps(r gin.IRoutes, ready ReadyFunc, metrics http.Handler) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/readyz", func(c *gin.Context) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := observability.WithSpan(c.Request.Context(), logger).WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request failed")
			return
		}
		entry.Debug("Request handled")
	}
}
