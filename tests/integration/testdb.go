// Package integration runs the delivery backend against a real PostgreSQL
// started with testcontainers. The schema comes from the embedded SQL
// migrations, applied the same way the server applies them.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/delivery/backend/internal/infrastructure/config"
	"github.com/delivery/backend/internal/infrastructure/logger"
	"github.com/delivery/backend/internal/infrastructure/migration"
	"github.com/delivery/backend/internal/infrastructure/persistence"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	pgImage    = "postgres:16-alpine"
	pgUser     = "postgres"
	pgPassword = "delivery"
	pgAdminDB  = "postgres"
)

var (
	server struct {
		once      sync.Once
		container *tcpostgres.PostgresContainer
		base      config.DatabaseConfig
		err       error
	}
	dbSeq atomic.Int64
)

// TestDB is one freshly migrated database inside the shared container
type TestDB struct {
	DB     *gorm.DB
	Config config.DatabaseConfig
	db     *persistence.Database
}

// NewTestDB creates an empty database, migrates it and returns a GORM
// handle. The database is dropped when the test ends.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	base := startServer(t)
	ctx := context.Background()

	cfg := base
	cfg.DBName = fmt.Sprintf("delivery_test_%d_%d", os.Getpid(), dbSeq.Add(1))
	admin := base
	admin.DBName = pgAdminDB

	require.NoError(t, adminExec(ctx, admin, "CREATE DATABASE "+cfg.DBName), "create test database")

	m, err := migration.Open(cfg.DSN())
	require.NoError(t, err, "open migrator")
	require.NoError(t, m.Up(ctx), "apply migrations")
	require.NoError(t, m.Close())

	level := gormlogger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = gormlogger.Info
	}
	zl := zap.NewNop()
	if level == gormlogger.Info {
		zl, _ = zap.NewDevelopment()
	}
	db, err := persistence.Open(&cfg, logger.NewGormLogger(zl, level))
	require.NoError(t, err, "connect to test database")

	tdb := &TestDB{DB: db.DB, Config: cfg, db: db}
	t.Cleanup(func() { tdb.drop(t, admin) })
	return tdb
}

// Close releases the connection pool. The database itself is dropped by
// the test cleanup.
func (tdb *TestDB) Close() {
	if tdb.db != nil {
		_ = tdb.db.Close()
		tdb.db = nil
	}
}

func (tdb *TestDB) drop(t *testing.T, admin config.DatabaseConfig) {
	tdb.Close()
	stmt := "DROP DATABASE IF EXISTS " + tdb.Config.DBName + " WITH (FORCE)"
	if err := adminExec(context.Background(), admin, stmt); err != nil {
		t.Logf("drop %s: %v", tdb.Config.DBName, err)
	}
}

// adminExec runs a statement outside any transaction, as CREATE and DROP
// DATABASE require
func adminExec(ctx context.Context, admin config.DatabaseConfig, stmt string) error {
	db, err := sql.Open("postgres", admin.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, stmt)
	return err
}

func startServer(t *testing.T) config.DatabaseConfig {
	t.Helper()
	server.once.Do(func() {
		ctx := context.Background()
		c, err := tcpostgres.Run(ctx, pgImage,
			tcpostgres.WithDatabase(pgAdminDB),
			tcpostgres.WithUsername(pgUser),
			tcpostgres.WithPassword(pgPassword),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			server.err = fmt.Errorf("start postgres: %w", err)
			return
		}
		server.container = c

		endpoint, err := c.Endpoint(ctx, "")
		if err != nil {
			server.err = fmt.Errorf("postgres endpoint: %w", err)
			return
		}
		host, portStr, err := net.SplitHostPort(endpoint)
		if err != nil {
			server.err = err
			return
		}
		port, _ := strconv.Atoi(portStr)
		server.base = config.DatabaseConfig{
			Host:            host,
			Port:            port,
			User:            pgUser,
			Password:        pgPassword,
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5,
			ConnMaxIdleTime: 1,
		}
	})
	require.NoError(t, server.err)
	return server.base
}

// stopServer terminates the shared container, if one was started
func stopServer() {
	if server.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = server.container.Terminate(ctx)
}
