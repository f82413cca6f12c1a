package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "text-topic", cfg.Kafka.Topic)
	assert.Equal(t, -1, cfg.Kafka.AcksValue())
	assert.Equal(t, "consumer-group", cfg.Consumer.GroupID)
	assert.Equal(t, "http://localhost:8888", cfg.Consumer.PersistenceURL)
	assert.Equal(t, 8080, cfg.Publisher.Port)
	assert.Equal(t, 8081, cfg.Consumer.OpsPort)
	assert.Equal(t, 8888, cfg.Persistence.Port)
	assert.Equal(t, "testdb", cfg.Persistence.Database)
	assert.Equal(t, "texts", cfg.Persistence.Collection)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRatio)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " kafka1:9092 , kafka2:9092,")
	t.Setenv("KAFKA_TOPIC", "texts")
	t.Setenv("KAFKA_REQUIRED_ACKS", "1")
	t.Setenv("CONSUMER_GROUP_ID", "forwarders")
	t.Setenv("CONSUMER_PERSISTENCE_URL", "http://persistence:8888")
	t.Setenv("CONSUMER_HANDLER_TIMEOUT", "5s")
	t.Setenv("PUBLISHER_PORT", "9090")
	t.Setenv("PERSISTENCE_STORE", "memory")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OTEL_EXPORTER", "stdout")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka1:9092", "kafka2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "texts", cfg.Kafka.Topic)
	assert.Equal(t, 1, cfg.Kafka.AcksValue())
	assert.Equal(t, "forwarders", cfg.Consumer.GroupID)
	assert.Equal(t, "http://persistence:8888", cfg.Consumer.PersistenceURL)
	assert.Equal(t, 5*time.Second, cfg.Consumer.HandlerTimeout)
	assert.Equal(t, 9090, cfg.Publisher.Port)
	assert.Equal(t, "memory", cfg.Persistence.Store)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Telemetry.Exporter)
	assert.Equal(t, 0.25, cfg.Telemetry.SampleRatio)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"empty brokers", "KAFKA_BROKERS", " , "},
		{"unknown exporter", "OTEL_EXPORTER", "zipkin"},
		{"ratio out of range", "OTEL_SAMPLE_RATIO", "1.5"},
		{"unknown store", "PERSISTENCE_STORE", "sqlite"},
		{"zero connect attempts", "KAFKA_CONNECT_ATTEMPTS", "0"},
		{"bad duration", "CONSUMER_HANDLER_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseAcks(t *testing.T) {
	assert.Equal(t, -1, parseAcks("all"))
	assert.Equal(t, -1, parseAcks("ALL"))
	assert.Equal(t, -1, parseAcks("-1"))
	assert.Equal(t, 0, parseAcks("0"))
	assert.Equal(t, 1, parseAcks("1"))
	assert.Equal(t, -1, parseAcks("bogus"))
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Consumer.GroupID = ""
	assert.EqualError(t, cfg.Validate(), "consumer group id cannot be empty")
}
