package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/db"
	"github.com/nareshshah139/Clinic-Management-System-sub003/migrations"
)

// testDB holds the shared database infrastructure for integration tests.
type testDB struct {
	Pool    *pgxpool.Pool
	ConnStr string
}

// globalDB is the package-level test database, initialized once in TestMain.
var globalDB *testDB

func TestMain(m *testing.M) {
	if os.Getenv("INTEGRATION_DATABASE_URL") == "" {
		if _, err := exec.LookPath("docker"); err != nil {
			fmt.Fprintln(os.Stderr, "skipping integration tests: docker not found and INTEGRATION_DATABASE_URL unset")
			os.Exit(0)
		}
	}

	ctx := context.Background()
	tdb, cleanup, err := setupPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres: %v\n", err)
		os.Exit(1)
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

// setupPostgres connects to INTEGRATION_DATABASE_URL when set, otherwise
// starts a throwaway container, then applies the embedded migrations.
func setupPostgres(ctx context.Context) (*testDB, func(), error) {
	connStr := os.Getenv("INTEGRATION_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		container, err := startPostgresContainer(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("start postgres container: %w", err)
		}
		connStr, cleanup = container.dsn, container.Stop
	}

	pool, err := db.NewPool(ctx, connStr, db.PoolOptions{MaxConns: 10})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}

	if _, err := db.NewMigrator(pool, migrations.FS).Up(ctx); err != nil {
		pool.Close()
		cleanup()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &testDB{Pool: pool, ConnStr: connStr}, func() {
		pool.Close()
		cleanup()
	}, nil
}

// resetAppointments empties the appointment table between tests.
func resetAppointments(t *testing.T) {
	t.Helper()
	if _, err := globalDB.Pool.Exec(context.Background(), "TRUNCATE appointment"); err != nil {
		t.Fatalf("truncate appointment: %v", err)
	}
}
