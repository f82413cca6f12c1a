package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rasert/distributed-tracing-poc/internal/observability"

	retry "github.com/avast/retry-go/v5"
	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Client checks broker reachability for startup and readiness probes
type Client struct {
	brokers []string
	logger  *logrus.Logger
	check   func(ctx context.Context) error
}

func NewClient(brokers []string) *Client {
	c := &Client{
		brokers: brokers,
		logger:  observability.GetLogger(),
	}
	c.check = c.dialCheck
	return c
}

// HealthCheck verifies connectivity to the Kafka cluster by reading partition metadata
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.check(ctx)
}

func (c *Client) dialCheck(ctx context.Context) error {
	if len(c.brokers) == 0 {
		return errors.New("no brokers configured")
	}

	var lastErr error
	for _, broker := range c.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = fmt.Errorf("failed to connect to broker %s: %w", broker, err)
			continue
		}

		// Fetch metadata to verify broker health
		_, err = conn.ReadPartitions()
		_ = conn.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read partitions from %s: %w", broker, err)
			continue
		}
		return nil
	}
	return lastErr
}

// WaitReady blocks until a broker answers, retrying with exponential backoff.
// It returns the last health check error once attempts are exhausted.
func (c *Client) WaitReady(ctx context.Context, attempts uint, delay time.Duration) error {
	if attempts == 0 {
		attempts = 1
	}

	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WithFields(logrus.Fields{
				"attempt": n + 1,
				"brokers": c.GetBrokers(),
			}).WithError(err).Warn("Kafka not ready, retrying")
		}),
	).Do(func() error {
		return c.HealthCheck(ctx)
	})
	if err != nil {
		return fmt.Errorf("kafka not reachable after %d attempts: %w", attempts, err)
	}

	c.logger.WithField("brokers", c.GetBrokers()).Info("Kafka is reachable")
	return nil
}

// GetBrokers returns the list of brokers
func (c *Client) GetBrokers() []string {
	return c.brokers
}
