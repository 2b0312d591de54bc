package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "tourbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultStateChangeLimit  = 20
	DefaultStateChangeWindow = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultBookingHorizon    = 14 * 24 * time.Hour
	DefaultMaxSuggestions    = 3
	DefaultTimeZone          = "UTC"
	DefaultSlotLengthMin     = 30
	DefaultStartOfDay        = "09:00"
	DefaultEndOfDay          = "17:00"
	DefaultWorkingDaysString = "monday,tuesday,wednesday,thursday,friday"

	LockBackendLocal = "local"
	LockBackendMongo = "mongo"
	LockBackendRedis = "redis"

	DefaultLockBackend = LockBackendMongo
	DefaultLockTimeout = 5 * time.Second
	DefaultLockTTL     = 30 * time.Second

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"

	DefaultCacheBackend = CacheBackendMemory
	DefaultCacheTTL     = 10 * time.Minute

	DefaultRetryAttempts = 3
	DefaultRetryBackoff  = 50 * time.Millisecond

	DefaultKafkaEnabled    = false
	DefaultNotifyQueueSize = 256

	DefaultHygieneInterval = 1 * time.Hour
	DefaultSlotRetention   = 90 * 24 * time.Hour

	DefaultPaginationLimit = 100
)
