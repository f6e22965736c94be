package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/USSTM/asset-backend/internal/config"
	"github.com/USSTM/asset-backend/internal/database"
	"github.com/USSTM/asset-backend/internal/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDatabase wraps a migrated PostgreSQL container.
type TestDatabase struct {
	*database.Database
	container testcontainers.Container
}

// StartDatabase boots a postgres container and applies the migrations. It is
// meant for TestMain, where no *testing.T exists yet.
func StartDatabase(ctx context.Context) (*TestDatabase, error) {
	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
				wait.ForListeningPort("5432/tcp").
					WithStartupTimeout(30*time.Second),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	conn, err := database.Connect(ctx, connStr)
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, err
	}

	if err := conn.Migrate(ctx); err != nil {
		conn.Close()
		_ = postgresContainer.Terminate(ctx)
		return nil, err
	}

	return &TestDatabase{Database: conn, container: postgresContainer}, nil
}

// NewTestDatabase starts a dedicated container for one test.
func NewTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	tdb, err := StartDatabase(context.Background())
	if err != nil {
		t.Fatalf("failed to start test database: %v", err)
	}
	t.Cleanup(tdb.Terminate)
	return tdb
}

func (tdb *TestDatabase) Queries() *db.Queries {
	return tdb.Database.Queries()
}

func (tdb *TestDatabase) Pool() *pgxpool.Pool {
	return tdb.Database.Pool()
}

// DatabaseConfig points a config.Load style consumer at the container.
func (tdb *TestDatabase) DatabaseConfig(ctx context.Context) (config.DatabaseConfig, error) {
	host, err := tdb.container.Host(ctx)
	if err != nil {
		return config.DatabaseConfig{}, err
	}
	port, err := tdb.container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return config.DatabaseConfig{}, err
	}
	return config.DatabaseConfig{
		Host:     host,
		Port:     port.Port(),
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}, nil
}

// Terminate closes the pool and removes the container.
func (tdb *TestDatabase) Terminate() {
	tdb.Close()
	if tdb.container != nil {
		_ = tdb.container.Terminate(context.Background())
	}
}

// CleanupDatabase truncates the mutable tables. The migration-seeded module
// catalog and built-in roles survive.
func (tdb *TestDatabase) CleanupDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	tables := []string{
		"notification_settings",
		"notifications",
		"borrow_items",
		"borrow_transactions",
		"borrow_requests",
		"assets",
		"users",
	}
	_, err := tdb.Pool().Exec(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" RESTART IDENTITY CASCADE")
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}

	// custom roles and departments go, the seeded roles stay
	if _, err := tdb.Pool().Exec(ctx, "DELETE FROM roles WHERE name NOT IN ('Admin', 'Staff', 'User') OR department_id IS NOT NULL"); err != nil {
		t.Fatalf("failed to clear roles: %v", err)
	}
	if _, err := tdb.Pool().Exec(ctx, "DELETE FROM departments"); err != nil {
		t.Fatalf("failed to clear departments: %v", err)
	}
}
