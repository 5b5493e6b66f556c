package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/landrecords/portal/common/cache"
	"github.com/landrecords/portal/common/config"
	"github.com/landrecords/portal/common/db"
	"github.com/landrecords/portal/common/logger"
	"github.com/landrecords/portal/common/queue"
	"github.com/landrecords/portal/common/redis"
	"github.com/landrecords/portal/common/telemetry"
)

// Setup initializes all service components
// This is the main entry point for all services
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg := components.Config

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)
	}
	log := components.Logger

	log.Info("initializing service",
		"service", serviceName,
		"environment", cfg.Service.Environment,
		"store", cfg.Store.Backend,
	)

	fail := func(err error) (*Components, error) {
		_ = components.Shutdown(ctx)
		return nil, err
	}

	// 3. Initialize database (only for the postgres store)
	if !options.skipDB && cfg.Store.Backend == "postgres" {
		log.Info("connecting to database")
		components.DB, err = db.New(ctx, cfg, log)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to database: %w", err))
		}

		components.addCleanup(func() error {
			components.DB.Close()
			return nil
		})

		if options.dbInitHook != nil {
			log.Info("running database init hook")
			if err := options.dbInitHook(ctx, components.DB); err != nil {
				return fail(fmt.Errorf("database init hook failed: %w", err))
			}
		}
	}

	// 4. Initialize redis (notifications and rate limits)
	if !options.skipRedis && cfg.NeedsRedis() {
		components.Redis, err = redis.Connect(ctx, cfg, log)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to redis: %w", err))
		}
		components.addCleanup(func() error {
			log.Info("closing redis connection")
			return components.Redis.Close()
		})
	}

	// 5. Initialize queue
	if !options.skipQueue {
		log.Info("initializing queue", "type", cfg.Queue.Type)
		components.Queue, err = queue.New(ctx, cfg, log)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize queue: %w", err))
		}
		components.addCleanup(func() error {
			log.Info("closing queue")
			return components.Queue.Close()
		})
	}

	// 6. Initialize cache
	if !options.skipCache && cfg.Cache.Enabled {
		log.Info("initializing cache", "role_ttl", cfg.Cache.RoleTTL)
		components.Cache = cache.NewMemoryCache(log, time.Minute)
		components.addCleanup(func() error {
			return components.Cache.Close()
		})
	}

	// 7. Initialize telemetry. The registry always exists; listeners are optional.
	pprofPort, metricsPort := 0, 0
	if !options.skipTelemetry {
		if cfg.Telemetry.EnablePprof {
			pprofPort = cfg.Telemetry.PprofPort
		}
		if cfg.Telemetry.EnableMetrics {
			metricsPort = cfg.Telemetry.MetricsPort
		}
	}
	components.Telemetry = telemetry.New(pprofPort, metricsPort, log)
	if err := components.Telemetry.Start(ctx); err != nil {
		log.Warn("failed to start telemetry", "error", err)
	}
	components.addCleanup(func() error {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return components.Telemetry.Stop(stopCtx)
	})

	log.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"redis", components.Redis != nil,
		"queue", components.Queue != nil,
		"cache", components.Cache != nil,
	)

	return components, nil
}

// MustSetup is like Setup but panics on error
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
