package kafka_config

import "time"

const (
	DefaultKafkaBrokers = "localhost:9092"
	DefaultTopic        = "tourbook.booking-events"
	DefaultClientID     = "tourbook"

	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerRequireAcks  = -1 // Require all replicas
	DefaultProducerCompression  = "snappy"
	DefaultProducerAsync        = false
	DefaultProducerWriteTimeout = 10 * time.Second

	DefaultEnableMiddleware = true
)
