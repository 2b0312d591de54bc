package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tourbook/pkg/client"
	"tourbook/pkg/logger"
	"tourbook/pkg/retry"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port     string
	LogLevel string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	StateChangeLimit  int
	StateChangeWindow time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BookingHorizon     time.Duration
	MaxSuggestions     int
	DefaultTimeZone    string
	DefaultSlotLength  int
	DefaultStartOfDay  string
	DefaultEndOfDay    string
	DefaultWorkingDays []time.Weekday

	LockBackend string
	LockTimeout time.Duration
	LockTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CacheBackend string
	CacheTTL     time.Duration

	RetryAttempts int
	RetryBackoff  time.Duration

	KafkaEnabled    bool
	NotifyQueueSize int

	HygieneInterval time.Duration
	SlotRetention   time.Duration

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the configuration for serviceName. Values already present in the
// environment win over .env entries, which win over the YAML defaults file.
func Load(serviceName string) *Config {
	fileErr := loadFiles()

	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient()

	if fileErr != nil {
		cfg.Log.Fatal("Failed to load configuration files", "error", fileErr)
	}
	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from the current environment without validating it.
func FromEnv() *Config {
	return &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port:     getEnvStr(EnvPort, DefaultPort),
		LogLevel: getEnvStr(EnvLogLevel, DefaultLogLevel),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		StateChangeLimit:  getEnvNum(EnvStateChangeLimit, DefaultStateChangeLimit),
		StateChangeWindow: getEnvDuration(EnvStateChangeWindow, DefaultStateChangeWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		BookingHorizon:     getEnvDuration(EnvBookingHorizon, DefaultBookingHorizon),
		MaxSuggestions:     getEnvNum(EnvMaxSuggestions, DefaultMaxSuggestions),
		DefaultTimeZone:    getEnvStr(EnvDefaultTimeZone, DefaultTimeZone),
		DefaultSlotLength:  getEnvNum(EnvDefaultSlotLen, DefaultSlotLengthMin),
		DefaultStartOfDay:  getEnvStr(EnvDefaultStartOfDay, DefaultStartOfDay),
		DefaultEndOfDay:    getEnvStr(EnvDefaultEndOfDay, DefaultEndOfDay),
		DefaultWorkingDays: getEnvWeekdays(EnvDefaultWorkingDays, DefaultWorkingDaysString),

		LockBackend: strings.ToLower(getEnvStr(EnvLockBackend, DefaultLockBackend)),
		LockTimeout: getEnvDuration(EnvLockTimeout, DefaultLockTimeout),
		LockTTL:     getEnvDuration(EnvLockTTL, DefaultLockTTL),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		CacheBackend: strings.ToLower(getEnvStr(EnvCacheBackend, DefaultCacheBackend)),
		CacheTTL:     getEnvDuration(EnvCacheTTL, DefaultCacheTTL),

		RetryAttempts: getEnvNum(EnvRetryAttempts, DefaultRetryAttempts),
		RetryBackoff:  getEnvDuration(EnvRetryBackoff, DefaultRetryBackoff),

		KafkaEnabled:    getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		NotifyQueueSize: getEnvNum(EnvNotifyQueueSize, DefaultNotifyQueueSize),

		HygieneInterval: getEnvDuration(EnvHygieneInterval, DefaultHygieneInterval),
		SlotRetention:   getEnvDuration(EnvSlotRetention, DefaultSlotRetention),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects Redis only when a backend needs it.
func (cfg *Config) SetRedis() {
	if cfg.LockBackend != LockBackendRedis && cfg.CacheBackend != CacheBackendRedis {
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	timeRegex := regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	if !timeRegex.MatchString(cfg.DefaultStartOfDay) {
		errors = append(errors, fmt.Sprintf("DefaultStartOfDay must be in HH:MM format (00:00-23:59), got: %s", cfg.DefaultStartOfDay))
	}
	if !timeRegex.MatchString(cfg.DefaultEndOfDay) {
		errors = append(errors, fmt.Sprintf("DefaultEndOfDay must be in HH:MM format (00:00-23:59), got: %s", cfg.DefaultEndOfDay))
	}
	if cfg.DefaultStartOfDay >= cfg.DefaultEndOfDay {
		errors = append(errors, fmt.Sprintf("DefaultStartOfDay (%s) must be before DefaultEndOfDay (%s)", cfg.DefaultStartOfDay, cfg.DefaultEndOfDay))
	}
	if _, err := time.LoadLocation(cfg.DefaultTimeZone); err != nil {
		errors = append(errors, fmt.Sprintf("DefaultTimeZone must be an IANA zone, got: %s", cfg.DefaultTimeZone))
	}
	if len(cfg.DefaultWorkingDays) == 0 {
		errors = append(errors, "DefaultWorkingDays must name at least one weekday")
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	positive := map[string]time.Duration{
		"MongoConnTimeout":  cfg.MongoConnTimeout,
		"RateLimitWindow":   cfg.RateLimitWindow,
		"StateChangeWindow": cfg.StateChangeWindow,
		"RequestTimeout":    cfg.RequestTimeout,
		"IdempotencyTTL":    cfg.IdempotencyTTL,
		"ReadTimeout":       cfg.ReadTimeout,
		"WriteTimeout":      cfg.WriteTimeout,
		"IdleTimeout":       cfg.IdleTimeout,
		"ShutdownTimeout":   cfg.ShutdownTimeout,
		"BookingHorizon":    cfg.BookingHorizon,
		"LockTimeout":       cfg.LockTimeout,
		"LockTTL":           cfg.LockTTL,
		"CacheTTL":          cfg.CacheTTL,
		"HygieneInterval":   cfg.HygieneInterval,
		"SlotRetention":     cfg.SlotRetention,
	}
	for _, name := range sortedKeys(positive) {
		if positive[name] <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", name, positive[name]))
		}
	}
	if cfg.RetryBackoff < 0 {
		errors = append(errors, fmt.Sprintf("RetryBackoff cannot be negative, got: %s", cfg.RetryBackoff))
	}
	if cfg.LockTTL < cfg.LockTimeout {
		errors = append(errors, fmt.Sprintf("LockTTL (%s) must be >= LockTimeout (%s)", cfg.LockTTL, cfg.LockTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.StateChangeLimit <= 0 {
		errors = append(errors, fmt.Sprintf("StateChangeLimit must be positive, got: %d", cfg.StateChangeLimit))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.MaxSuggestions <= 0 {
		errors = append(errors, fmt.Sprintf("MaxSuggestions must be positive, got: %d", cfg.MaxSuggestions))
	}
	if cfg.DefaultSlotLength < 15 || cfg.DefaultSlotLength > 120 {
		errors = append(errors, fmt.Sprintf("DefaultSlotLength must be between 15 and 120 minutes, got: %d", cfg.DefaultSlotLength))
	}
	if cfg.RetryAttempts < 1 {
		errors = append(errors, fmt.Sprintf("RetryAttempts must be at least 1, got: %d", cfg.RetryAttempts))
	}
	if cfg.NotifyQueueSize <= 0 {
		errors = append(errors, fmt.Sprintf("NotifyQueueSize must be positive, got: %d", cfg.NotifyQueueSize))
	}

	switch cfg.LockBackend {
	case LockBackendLocal, LockBackendMongo, LockBackendRedis:
	default:
		errors = append(errors, fmt.Sprintf("LockBackend must be one of [local, mongo, redis], got: %s", cfg.LockBackend))
	}
	switch cfg.CacheBackend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		errors = append(errors, fmt.Sprintf("CacheBackend must be one of [memory, redis], got: %s", cfg.CacheBackend))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"state_change_limit", cfg.StateChangeLimit,
		"state_change_window", cfg.StateChangeWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"booking_horizon", cfg.BookingHorizon,
		"max_suggestions", cfg.MaxSuggestions,
		"default_timezone", cfg.DefaultTimeZone,
		"default_slot_length_min", cfg.DefaultSlotLength,
		"default_start_of_day", cfg.DefaultStartOfDay,
		"default_end_of_day", cfg.DefaultEndOfDay,
		"lock_backend", cfg.LockBackend,
		"lock_timeout", cfg.LockTimeout,
		"lock_ttl", cfg.LockTTL,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"cache_backend", cfg.CacheBackend,
		"cache_ttl", cfg.CacheTTL,
		"retry_attempts", cfg.RetryAttempts,
		"retry_backoff", cfg.RetryBackoff,
		"kafka_enabled", cfg.KafkaEnabled,
		"notify_queue_size", cfg.NotifyQueueSize,
		"hygiene_interval", cfg.HygieneInterval,
		"slot_retention", cfg.SlotRetention,
	)
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

// RetryPolicy is the backoff applied to storage calls that fail transiently.
func (cfg *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		Attempts:   cfg.RetryAttempts,
		Backoff:    cfg.RetryBackoff,
		MaxBackoff: time.Second,
	}
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvWeekdays(key, fallback string) []time.Weekday {
	days, err := ParseWeekdays(getEnvStr(key, fallback))
	if err != nil {
		days, _ = ParseWeekdays(fallback)
	}
	return days
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekdays parses a comma separated list of weekday names.
func ParseWeekdays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	seen := make(map[time.Weekday]bool)
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		d, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	return days, nil
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
