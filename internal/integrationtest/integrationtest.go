//go:build integration

// Package integrationtest provides db helpers used in integration tests.
package integrationtest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/go-petr/customer-ledger/cmd/httpserver"
	"github.com/go-petr/customer-ledger/internal/middleware"
	"github.com/go-petr/customer-ledger/pkg/configpkg"
	"github.com/go-petr/customer-ledger/pkg/dbpkg"

	_ "github.com/lib/pq"
)

const postgresImage = "postgres:16-alpine"

// Postgres wraps a testcontainers PostgreSQL instance.
type Postgres struct {
	Container testcontainers.Container
	Source    string
}

// StartPostgres starts a PostgreSQL container and creates the customer schema in it.
func StartPostgres(ctx context.Context) (*Postgres, error) {
	container, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("root"),
		tcpostgres.WithPassword("secret"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	source, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	db, err := dbpkg.Setup("postgres", source)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	defer db.Close()

	if err := dbpkg.EnsureSchema(ctx, db); err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Postgres{Container: container, Source: source}, nil
}

// Terminate stops the container.
func (p *Postgres) Terminate() error {
	return p.Container.Terminate(context.Background())
}

// Flush flushes all db tables without droping.
func Flush(t *testing.T, db *sql.DB) {
	t.Helper()

	var tables string

	const query = `
	SELECT string_agg(table_name, ', ')
	FROM information_schema.tables
	WHERE table_schema='public';`

	row := db.QueryRow(query)

	err := row.Scan(&tables)
	if err != nil {
		t.Fatalf("db cleanup failed. err: %v", err)
	}

	if _, err := db.Exec(`TRUNCATE TABLE ` + tables + " RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("db cleanup failed. err: %v", err)
	}
}

// SetupDB sets up connection with database for testing and then cleans it.
func SetupDB(t *testing.T, source string) *sql.DB {
	t.Helper()

	db, err := dbpkg.Setup("postgres", source)
	if err != nil {
		t.Fatalf("db initialization failed. err: %v", err)
	}

	t.Cleanup(func() {
		Flush(t, db)

		if err := db.Close(); err != nil {
			t.Fatalf("db cleanup failed. err: %v", err)
		}
	})

	return db
}

// SetupServer returns test server that cleans up database after each integration test.
func SetupServer(t *testing.T, source string) *httpserver.Server {
	t.Helper()

	config := configpkg.Config{
		DBDriver:    "postgres",
		DBSource:    source,
		MetricsPath: "/metrics",
	}

	zerolog.SetGlobalLevel(zerolog.FatalLevel)

	logger := middleware.NewLogger(config)

	db := SetupDB(t, source)

	gin.SetMode(gin.ReleaseMode)

	server, err := httpserver.New(db, logger, config, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf(`httpserver.New(db, logger, config) returned error: %v`, err)
	}

	return server
}
