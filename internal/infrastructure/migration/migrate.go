// Package migration applies the SQL schema migrations with golang-migrate.
// Migrations come from the copy embedded in the binary unless a directory
// is given, which is what the migrate CLI does while developing.
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/delivery/backend/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Status is the schema version recorded in schema_migrations. Version 0
// means nothing was applied yet.
type Status struct {
	Version uint
	Dirty   bool
}

func (s Status) String() string {
	if s.Version == 0 {
		return "no migrations applied"
	}
	if s.Dirty {
		return fmt.Sprintf("version %d (dirty)", s.Version)
	}
	return fmt.Sprintf("version %d", s.Version)
}

// Option configures Open
type Option func(*options)

type options struct {
	dir              string
	log              *zap.Logger
	statementTimeout time.Duration
}

// WithDir reads migrations from dir instead of the embedded copy
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithLogger sets the logger. golang-migrate's own output is forwarded at
// debug level.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithStatementTimeout bounds each migration statement
func WithStatementTimeout(d time.Duration) Option {
	return func(o *options) { o.statementTimeout = d }
}

// Migrator runs migrations against one PostgreSQL database
type Migrator struct {
	m   *migrate.Migrate
	db  *sql.DB
	log *zap.Logger
}

// Open connects to dsn and prepares a Migrator. Close releases the
// connection.
func Open(dsn string, opts ...Option) (*Migrator, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{StatementTimeout: o.statementTimeout})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	src, srcName, err := openSource(o.dir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	m, err := migrate.NewWithInstance(srcName, src, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = zapMigrateLogger{
		sugar:   o.log.Named("migrate").Sugar(),
		verbose: o.log.Core().Enabled(zapcore.DebugLevel),
	}

	return &Migrator{m: m, db: db, log: o.log}, nil
}

func openSource(dir string) (source.Driver, string, error) {
	if dir == "" {
		src, err := iofs.New(migrations.FS, ".")
		if err != nil {
			return nil, "", fmt.Errorf("open embedded migrations: %w", err)
		}
		return src, "iofs", nil
	}
	src, err := source.Open("file://" + dir)
	if err != nil {
		return nil, "", fmt.Errorf("open migrations in %s: %w", dir, err)
	}
	return src, "file", nil
}

// Up applies every pending migration
func (m *Migrator) Up(ctx context.Context) error {
	return m.run(ctx, "up", m.m.Up)
}

// Down rolls back every migration
func (m *Migrator) Down(ctx context.Context) error {
	return m.run(ctx, "down", m.m.Down)
}

// Steps applies n migrations, rolling back when n is negative
func (m *Migrator) Steps(ctx context.Context, n int) error {
	return m.run(ctx, fmt.Sprintf("steps %+d", n), func() error { return m.m.Steps(n) })
}

// GoTo migrates up or down to version
func (m *Migrator) GoTo(ctx context.Context, version uint) error {
	return m.run(ctx, fmt.Sprintf("goto %d", version), func() error { return m.m.Migrate(version) })
}

// Version reports the current schema version
func (m *Migrator) Version() (Status, error) {
	v, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("read schema version: %w", err)
	}
	return Status{Version: v, Dirty: dirty}, nil
}

// Force records version as applied and clears the dirty flag without running
// anything. It is the way out after a migration failed halfway.
func (m *Migrator) Force(version int) error {
	m.log.Warn("Forcing schema version", zap.Int("version", version))
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Drop removes every table, including schema_migrations
func (m *Migrator) Drop() error {
	m.log.Warn("Dropping every table in the database")
	if err := m.m.Drop(); err != nil {
		return fmt.Errorf("drop database: %w", err)
	}
	return nil
}

// Close releases the source and the database connection
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr, m.db.Close())
}

// run executes fn and logs the version change. Cancelling ctx asks
// golang-migrate to stop after the migration in flight.
func (m *Migrator) run(ctx context.Context, op string, fn func() error) error {
	stop := context.AfterFunc(ctx, func() {
		select {
		case m.m.GracefulStop <- true:
		default:
		}
	})
	defer stop()

	before, err := m.Version()
	if err != nil {
		return err
	}
	if before.Dirty {
		return fmt.Errorf("migrate %s: schema is dirty at version %d, fix it and run force", op, before.Version)
	}

	err = fn()
	if errors.Is(err, migrate.ErrNoChange) {
		m.log.Info("Schema already up to date", zap.String("op", op), zap.Uint("version", before.Version))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", op, err)
	}

	after, err := m.Version()
	if err != nil {
		return err
	}
	m.log.Info("Schema migrated",
		zap.String("op", op),
		zap.Uint("from", before.Version),
		zap.Uint("to", after.Version),
	)
	return ctx.Err()
}

// zapMigrateLogger implements migrate.Logger
type zapMigrateLogger struct {
	sugar   *zap.SugaredLogger
	verbose bool
}

func (l zapMigrateLogger) Printf(format string, v ...any) {
	l.sugar.Debugf(strings.TrimRight(format, "\n"), v...)
}

func (l zapMigrateLogger) Verbose() bool { return l.verbose }
