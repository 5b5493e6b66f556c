//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/landrecords/portal/common/db"
	"github.com/landrecords/portal/common/logger"
)

// PostgresContainer wraps a testcontainers Postgres instance with the portal
// schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	DB        *db.DB
}

// NewPostgresContainer starts Postgres, connects a pool and migrates it.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("landrecords"),
		tcpostgres.WithUsername("landrecords"),
		tcpostgres.WithPassword("landrecords"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	pool, err := db.Connect(ctx, url, nil, logger.Discard())
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to migrate: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		_ = container.Terminate(context.Background())
	})

	return &PostgresContainer{
		Container: container,
		URL:       url,
		DB:        pool,
	}
}

// Truncate empties every portal table.
func (p *PostgresContainer) Truncate(ctx context.Context) error {
	_, err := p.DB.Exec(ctx, `TRUNCATE draw_result, draw_audit, scheme_application,
		transition_log, verifiable_document, sequence_counter, workflow_entity, portal_user`)
	return err
}
