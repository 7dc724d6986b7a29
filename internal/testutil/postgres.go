// Package testutil provides a disposable PostgreSQL for repository tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/rogue/internal/config"
	"github.com/cory-johannsen/rogue/internal/storage/postgres"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	RawPool   *pgxpool.Pool
	Config    config.DatabaseConfig
}

// NewPostgresContainer starts a PostgreSQL test container and returns
// a connected Pool.
//
// Precondition: Docker must be available.
// Postcondition: Returns a running container with a connected pool,
// fails the test, or skips it under -short.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container skipped in -short mode")
	}
	ctx := context.Background()
	start := time.Now()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "rogue",
			"POSTGRES_PASSWORD": "rogue",
			"POSTGRES_DB":       "rogue_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v [%s]", err, time.Since(start))
	}

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("getting container host: %v", err)
	}

	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("getting mapped port: %v", err)
	}

	dbCfg := config.DatabaseConfig{
		Host:            host,
		Port:            mappedPort.Int(),
		User:            "rogue",
		Password:        "rogue",
		Name:            "rogue_test",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		t.Fatalf("connecting to test postgres: %v [%s]", err, time.Since(start))
	}

	t.Logf("postgres container started [%s]", time.Since(start))

	pc := &PostgresContainer{
		container: container,
		Pool:      pool,
		RawPool:   pool.DB(),
		Config:    dbCfg,
	}

	t.Cleanup(pool.Close)
	return pc
}

// ApplyMigrations creates the runs schema directly, mirroring
// migrations/000001_create_runs.up.sql.
//
// Precondition: Pool must be connected.
// Postcondition: The runs table exists in the test database.
func (pc *PostgresContainer) ApplyMigrations(t *testing.T) {
	t.Helper()
	start := time.Now()
	if _, err := pc.RawPool.Exec(context.Background(), RunsSchema); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	t.Logf("migrations applied [%s]", time.Since(start))
}

// Truncate empties the runs table between subtests.
func (pc *PostgresContainer) Truncate(t *testing.T) {
	t.Helper()
	if _, err := pc.RawPool.Exec(context.Background(), "TRUNCATE runs"); err != nil {
		t.Fatalf("truncating runs: %v", err)
	}
}

// RunsSchema is the runs table definition.
const RunsSchema = `
	CREATE TABLE IF NOT EXISTS runs (
		id            UUID         PRIMARY KEY,
		player_name   VARCHAR(64)  NOT NULL,
		class         VARCHAR(32)  NOT NULL,
		floor_reached INTEGER      NOT NULL CHECK (floor_reached >= 1),
		level         INTEGER      NOT NULL CHECK (level >= 1),
		kills         INTEGER      NOT NULL DEFAULT 0 CHECK (kills >= 0),
		killer        VARCHAR(64)  NOT NULL DEFAULT '',
		outcome       VARCHAR(16)  NOT NULL CHECK (outcome IN ('death', 'abandoned')),
		started_at    TIMESTAMPTZ  NOT NULL,
		ended_at      TIMESTAMPTZ  NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_ranking ON runs (floor_reached DESC, kills DESC, ended_at ASC);
`

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string {
	return pc.Config.DSN()
}
