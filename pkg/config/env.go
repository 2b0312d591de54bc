package config

const (
	EnvConfigFile = "CONFIG_FILE"
	EnvDotEnvFile = "DOTENV_FILE"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvStateChangeLimit  = "STATE_CHANGE_LIMIT"
	EnvStateChangeWindow = "STATE_CHANGE_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvBookingHorizon     = "BOOKING_HORIZON"
	EnvMaxSuggestions     = "MAX_SUGGESTIONS"
	EnvDefaultTimeZone    = "DEFAULT_TIMEZONE"
	EnvDefaultSlotLen     = "DEFAULT_SLOT_LENGTH_MIN"
	EnvDefaultStartOfDay  = "DEFAULT_START_OF_DAY"
	EnvDefaultEndOfDay    = "DEFAULT_END_OF_DAY"
	EnvDefaultWorkingDays = "DEFAULT_WORKING_DAYS"

	EnvLockBackend = "LOCK_BACKEND"
	EnvLockTimeout = "LOCK_TIMEOUT"
	EnvLockTTL     = "LOCK_TTL"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvCacheBackend = "CACHE_BACKEND"
	EnvCacheTTL     = "CACHE_TTL"

	EnvRetryAttempts = "RETRY_ATTEMPTS"
	EnvRetryBackoff  = "RETRY_BACKOFF"

	EnvKafkaEnabled    = "KAFKA_ENABLED"
	EnvNotifyQueueSize = "NOTIFY_QUEUE_SIZE"

	EnvHygieneInterval = "HYGIENE_INTERVAL"
	EnvSlotRetention   = "SLOT_RETENTION"
)
