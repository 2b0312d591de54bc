package cli

import (
	"fmt"

	assignmentsrepo "tourbook/internal/assignments/repository"
	assignments "tourbook/internal/assignments/service"
	slotrepo "tourbook/internal/availability/repository"
	availability "tourbook/internal/availability/service"
	slotvalidator "tourbook/internal/availability/validator"
	bookingrepo "tourbook/internal/bookings/repository"
	bookings "tourbook/internal/bookings/service"
	bookingvalidator "tourbook/internal/bookings/validator"
	"tourbook/internal/notifications"
	prefcache "tourbook/internal/preferences/cache"
	prefrepo "tourbook/internal/preferences/repository"
	preferences "tourbook/internal/preferences/service"
	prefvalidator "tourbook/internal/preferences/validator"
	"tourbook/internal/suggest"
	"tourbook/pkg/clock"
	"tourbook/pkg/config"
	"tourbook/pkg/kafka"
	kafka_config "tourbook/pkg/kafka/config"
	kafka_middleware "tourbook/pkg/kafka/middleware"
	"tourbook/pkg/lock"
	"tourbook/pkg/ratelimit"
)

// Container holds the wired services of one process.
type Container struct {
	Bookings    bookings.BookingService
	Store       availability.Store
	Preferences preferences.PreferencesService
	Resolver    assignments.Resolver
	Dispatcher  *notifications.Dispatcher

	limiter *ratelimit.Limiter
	closers []func() error
}

// NewContainer wires every service against the connections in cfg.Client.
// Mongo must be connected; Redis only when a backend asks for it.
func NewContainer(cfg *config.Config) (*Container, error) {
	clk := clock.System()

	locker, err := buildLocker(cfg)
	if err != nil {
		return nil, err
	}
	cache, err := buildCache(cfg, clk)
	if err != nil {
		return nil, err
	}
	publisher, closePublisher, err := buildPublisher(cfg)
	if err != nil {
		return nil, err
	}

	prefs := preferences.NewPreferencesService(
		prefrepo.NewMongoPreferencesRepository(cfg),
		cache,
		prefvalidator.NewPreferencesValidator(cfg.Log),
		clk,
		cfg,
	)

	slots := slotrepo.NewMongoSlotRepository(cfg)
	checker := availability.NewChecker(slots, clk, cfg)
	store := availability.NewStore(slots, prefs, locker, slotvalidator.NewSlotValidator(cfg.Log), clk, cfg)
	resolver := assignments.NewResolver(
		assignmentsrepo.NewMongoAssignmentRepository(cfg),
		assignmentsrepo.NewMongoPropertyRepository(cfg),
		clk,
		cfg,
	)

	dispatcher := notifications.NewDispatcher(publisher, cfg.NotifyQueueSize, cfg.Log)
	limiter := ratelimit.New(cfg.StateChangeLimit, cfg.StateChangeWindow, clk)

	c := &Container{
		Store:       store,
		Preferences: prefs,
		Resolver:    resolver,
		Dispatcher:  dispatcher,
		limiter:     limiter,
	}
	if closePublisher != nil {
		c.closers = append(c.closers, closePublisher)
	}

	c.Bookings = bookings.NewBookingService(bookings.Deps{
		Repo:      bookingrepo.NewMongoBookingRepository(cfg),
		Store:     store,
		Checker:   checker,
		Resolver:  resolver,
		Suggester: suggest.NewSuggester(checker, prefs, clk, cfg),
		Locker:    locker,
		Limiter:   limiter,
		Events:    dispatcher,
		Validator: bookingvalidator.NewBookingValidator(cfg.Log),
		Clock:     clk,
	}, cfg)

	cfg.Log.Info("Services initialized",
		"lock_backend", cfg.LockBackend,
		"cache_backend", cfg.CacheBackend,
		"kafka_enabled", cfg.KafkaEnabled,
	)
	return c, nil
}

// Start launches the background parts of the container.
func (c *Container) Start(cfg *config.Config) {
	c.Dispatcher.Start()
	c.limiter.StartCleanup(cfg.StateChangeWindow)
}

// Close stops the limiter and closes the publisher. The dispatcher is
// drained separately because draining needs a deadline.
func (c *Container) Close() error {
	c.limiter.Stop()
	var firstErr error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func buildLocker(cfg *config.Config) (lock.Locker, error) {
	switch cfg.LockBackend {
	case config.LockBackendLocal:
		return lock.NewLocal(cfg.LockTimeout), nil
	case config.LockBackendMongo:
		if cfg.Client == nil || cfg.Client.Mongo == nil {
			return nil, fmt.Errorf("lock backend %q needs a mongo connection", cfg.LockBackend)
		}
		return lock.NewMongo(cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg.LockTimeout, cfg.LockTTL, cfg.Log), nil
	case config.LockBackendRedis:
		if cfg.Client == nil || cfg.Client.Redis == nil {
			return nil, fmt.Errorf("lock backend %q needs a redis connection", cfg.LockBackend)
		}
		return lock.NewRedis(cfg.Client.Redis, cfg.LockTimeout, cfg.LockTTL, cfg.Log), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
}

func buildCache(cfg *config.Config, clk clock.Clock) (prefcache.Cache, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendMemory:
		return prefcache.NewMemory(cfg.CacheTTL, clk), nil
	case config.CacheBackendRedis:
		if cfg.Client == nil || cfg.Client.Redis == nil {
			return nil, fmt.Errorf("cache backend %q needs a redis connection", cfg.CacheBackend)
		}
		return prefcache.NewRedis(cfg.Client.Redis, cfg.CacheTTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// buildPublisher returns the Kafka publisher when enabled and a log-only
// publisher otherwise. The returned close func is nil when nothing needs
// closing.
func buildPublisher(cfg *config.Config) (notifications.Publisher, func() error, error) {
	if !cfg.KafkaEnabled {
		return notifications.NewLogPublisher(cfg.Log), nil, nil
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid kafka configuration: %w", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware())
	}

	publisher := notifications.NewKafkaPublisher(producer)
	return publisher, publisher.Close, nil
}
