// Package testhelpers provides shared test infrastructure for integration
// tests that need a real PostgreSQL instance.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresImage is the stock PostgreSQL image used for integration tests.
const PostgresImage = "postgres:16-alpine"

// TestDB holds a shared test database container and connection pool.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	// DSNTemplate points every tenant at the shared test database, so the
	// tenant pool manager can be exercised without one database per tenant.
	DSNTemplate string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "report_test",
			"POSTGRES_USER":     "reports",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://reports:test_password@%s:%s/report_test?sslmode=disable",
		host, port.Port())
	dsnTemplate := fmt.Sprintf("host=%s port=%s user=reports password=test_password dbname=report_test sslmode=disable",
		host, port.Port())

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	return &TestDB{
		Container:   container,
		Pool:        pool,
		ConnStr:     connStr,
		DSNTemplate: dsnTemplate,
	}, nil
}

// SeedReportSchema creates and fills the tables the report integration tests
// query. Idempotent so the shared container can serve multiple packages.
func SeedReportSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS clients (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			region TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id BIGINT PRIMARY KEY,
			client_id BIGINT NOT NULL REFERENCES clients(id),
			status TEXT NOT NULL,
			total NUMERIC NOT NULL,
			paid_at TIMESTAMPTZ
		)`,
		`TRUNCATE invoices, clients`,
		`INSERT INTO clients (id, name, region) VALUES
			(1, 'Northwind', 'north'),
			(2, 'Southpaw', 'south'),
			(3, 'Eastline', 'east')`,
		`INSERT INTO invoices (id, client_id, status, total, paid_at) VALUES
			(10, 1, 'paid', 120.50, now()),
			(11, 1, 'overdue', 75.00, NULL),
			(12, 2, 'paid', 300.00, now()),
			(13, 2, 'draft', 42.00, NULL),
			(14, 3, 'paid', 18.25, now())`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("seed statement failed: %w", err)
		}
	}
	return nil
}
