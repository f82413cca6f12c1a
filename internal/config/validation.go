package config

import "errors"

func (c *Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka brokers cannot be empty")
	}
	if c.Kafka.Topic == "" {
		return errors.New("kafka topic cannot be empty")
	}
	if c.Kafka.ConnectAttempts == 0 {
		return errors.New("kafka connect attempts must be greater than zero")
	}
	if c.Kafka.WriteTimeout <= 0 {
		return errors.New("kafka write timeout must be greater than zero")
	}
	if c.Consumer.GroupID == "" {
		return errors.New("consumer group id cannot be empty")
	}
	if c.Consumer.PersistenceURL == "" {
		return errors.New("consumer persistence url cannot be empty")
	}
	if c.Consumer.HandlerTimeout <= 0 {
		return errors.New("consumer handler timeout must be greater than zero")
	}
	if c.Consumer.ShutdownTimeout <= 0 {
		return errors.New("consumer shutdown timeout must be greater than zero")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return errors.New("telemetry sample ratio must be within [0, 1]")
	}
	switch c.Telemetry.Exporter {
	case "otlphttp", "otlpgrpc", "stdout", "none":
	default:
		return errors.New("telemetry exporter must be one of otlphttp, otlpgrpc, stdout, none")
	}
	if c.Persistence.ConnectAttempts == 0 {
		return errors.New("persistence connect attempts must be greater than zero")
	}
	switch c.Persistence.Store {
	case "mongo", "memory":
	default:
		return errors.New("persistence store must be one of mongo, memory")
	}
	return nil
}
