package container

import (
	"context"
	"fmt"
	"os"

	"github.com/landrecords/portal/cmd/portal/repository"
	"github.com/landrecords/portal/cmd/portal/service"
	"github.com/landrecords/portal/common/bootstrap"
	"github.com/landrecords/portal/common/draw"
	"github.com/landrecords/portal/common/integrity"
	"github.com/landrecords/portal/common/notify"
	"github.com/landrecords/portal/common/ratelimit"
	"github.com/landrecords/portal/common/render"
	"github.com/landrecords/portal/common/statemachine"
	"github.com/landrecords/portal/common/store/memory"
	"github.com/landrecords/portal/common/workflow"
)

// Backend is what both persistence implementations provide
type Backend interface {
	workflow.Store
	service.DrawStore
	service.UserStore
	service.DocumentStore
}

var (
	_ Backend = (*repository.Repository)(nil)
	_ Backend = (*memory.Store)(nil)
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Persistence
	Backend Backend
	Store   workflow.Store // Backend, behind the role cache when enabled

	// Workflow core
	Registry *statemachine.Registry
	Sealer   *integrity.Sealer
	Notifier workflow.Notifier
	Inbox    *notify.Inbox
	Executor *workflow.Executor

	// Services
	DocumentService *service.DocumentService
	DrawService     *service.DrawService
	SequenceService *service.SequenceService

	// Nil when rate limiting is disabled
	RateLimiter *ratelimit.RateLimiter
}

// NewContainer initializes all services and repositories once
func NewContainer(ctx context.Context, components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger
	m := components.Telemetry.Metrics

	backend, err := newBackend(components)
	if err != nil {
		return nil, err
	}
	if err := service.SeedUsers(ctx, backend, cfg.SeedUsers, log); err != nil {
		return nil, err
	}

	var store workflow.Store = backend
	if components.Cache != nil {
		store = repository.NewRoleCachingStore(backend, components.Cache, cfg.Cache.RoleTTL)
	}

	if err := os.MkdirAll(cfg.Documents.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document dir: %w", err)
	}
	sealer := integrity.NewSealer(cfg.Documents.Dir, cfg.Documents.VerifyBaseURL, m)

	notifier, err := notify.New(cfg, components.Queue, components.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}

	// The inbox reads back what QueueNotifier publishes
	inbox := notify.NewInbox(notify.DefaultInboxSize)
	if cfg.Notify.Backend == "queue" {
		if err := components.Queue.Subscribe(ctx, cfg.Queue.Topic, inbox.Handle); err != nil {
			return nil, fmt.Errorf("failed to subscribe inbox: %w", err)
		}
	}

	registry := statemachine.Default()
	executor := workflow.NewExecutor(
		store,
		registry,
		render.NewJSONRenderer(),
		sealer,
		notifier,
		log,
		workflow.WithMetrics(m),
	)

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && components.Redis != nil {
		limiter = ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), log)
	}

	return &Container{
		Components:      components,
		Backend:         backend,
		Store:           store,
		Registry:        registry,
		Sealer:          sealer,
		Notifier:        notifier,
		Inbox:           inbox,
		Executor:        executor,
		DocumentService: service.NewDocumentService(backend, sealer, log),
		DrawService:     service.NewDrawService(backend, store, draw.NewEngine(), m, log),
		SequenceService: service.NewSequenceService(store, m),
		RateLimiter:     limiter,
	}, nil
}

// newBackend picks the store selected by STORE_BACKEND
func newBackend(components *bootstrap.Components) (Backend, error) {
	switch backend := components.Config.Store.Backend; backend {
	case "postgres":
		if components.DB == nil {
			return nil, fmt.Errorf("postgres store requires a database connection")
		}
		return repository.NewRepository(components.DB), nil
	case "memory":
		components.Logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
