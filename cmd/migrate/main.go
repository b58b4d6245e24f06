package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/delivery/backend/internal/infrastructure/config"
	"github.com/delivery/backend/internal/infrastructure/logger"
	"github.com/delivery/backend/internal/infrastructure/migration"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

var (
	migrationsPath   string
	logLevel         string
	statementTimeout time.Duration
	log              *zap.Logger
)

func main() {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Delivery database migration tool",
		Long:          "Applies the schema migrations. Without --path the migrations embedded in the binary are used.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			log, err = logger.New(&logger.Config{
				Level:      logLevel,
				Format:     "console",
				Output:     "stdout",
				TimeFormat: "2006-01-02 15:04:05",
			})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			log.Debug("Migration CLI started", zap.String("command", cmd.Name()))
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync(log)
		},
	}
	root.PersistentFlags().StringVar(&migrationsPath, "path", "", "Migrations directory (default: embedded for apply commands, ./migrations for create and list)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().DurationVar(&statementTimeout, "statement-timeout", 0, "Abort a migration statement running longer than this (0 = no limit)")

	root.AddCommand(
		withMigrator(&cobra.Command{Use: "up", Short: "Apply all pending migrations", Args: cobra.NoArgs},
			func(ctx context.Context, m *migration.Migrator, _ []string) error { return m.Up(ctx) }),
		withMigrator(&cobra.Command{Use: "down", Short: "Roll back all migrations", Args: cobra.NoArgs},
			func(ctx context.Context, m *migration.Migrator, _ []string) error { return m.Down(ctx) }),
		withMigrator(&cobra.Command{Use: "step <n>", Short: "Apply n migrations (negative rolls back)", Args: cobra.ExactArgs(1)},
			func(ctx context.Context, m *migration.Migrator, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil || n == 0 {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				return m.Steps(ctx, n)
			}),
		withMigrator(&cobra.Command{Use: "goto <version>", Short: "Migrate to a specific version", Args: cobra.ExactArgs(1)},
			func(ctx context.Context, m *migration.Migrator, args []string) error {
				version, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return m.GoTo(ctx, uint(version))
			}),
		withMigrator(&cobra.Command{Use: "version", Short: "Show current migration version", Args: cobra.NoArgs},
			func(_ context.Context, m *migration.Migrator, _ []string) error {
				status, err := m.Version()
				if err != nil {
					return err
				}
				log.Info("Schema "+status.String(), zap.Uint("version", status.Version), zap.Bool("dirty", status.Dirty))
				return nil
			}),
		withMigrator(&cobra.Command{Use: "force <version>", Short: "Record a version without running it (clears dirty state)", Args: cobra.ExactArgs(1)},
			func(_ context.Context, m *migration.Migrator, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return m.Force(version)
			}),
		dropCommand(),
		createCommand(),
		listCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		if log != nil {
			log.Error("Migration command failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// withMigrator attaches a RunE that connects to the configured database and
// hands a Migrator to run
func withMigrator(cmd *cobra.Command, run func(ctx context.Context, m *migration.Migrator, args []string) error) *cobra.Command {
	cmd.RunE = func(c *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		opts := []migration.Option{
			migration.WithLogger(log),
			migration.WithStatementTimeout(statementTimeout),
		}
		if migrationsPath != "" {
			dir, err := resolveMigrationsPath(migrationsPath)
			if err != nil {
				return err
			}
			log.Info("Using migrations directory", zap.String("path", dir))
			opts = append(opts, migration.WithDir(dir))
		}

		m, err := migration.Open(cfg.Database.DSN(), opts...)
		if err != nil {
			return err
		}
		defer func() {
			if err := m.Close(); err != nil {
				log.Warn("Failed to close migrator", zap.Error(err))
			}
		}()

		return run(c.Context(), m, args)
	}
	return cmd
}

func dropCommand() *cobra.Command {
	var confirm bool
	cmd := withMigrator(&cobra.Command{
		Use:   "drop",
		Short: "Drop all database objects (DANGEROUS)",
		Args:  cobra.NoArgs,
	}, func(_ context.Context, m *migration.Migrator, _ []string) error {
		if !confirm {
			return errors.New("drop cancelled, use 'migrate drop --confirm' to confirm")
		}
		return m.Drop()
	})
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm dropping every table")
	return cmd
}

func createCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> [description]",
		Short: "Create a new migration file pair",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			dir, err := resolveMigrationsPath(migrationsPath)
			if err != nil {
				return err
			}
			description := ""
			if len(args) > 1 {
				description = args[1]
			}
			f, err := migration.Create(dir, args[0], description, time.Now())
			if err != nil {
				return fmt.Errorf("failed to create migration: %w", err)
			}
			log.Info("Migration created",
				zap.Uint64("version", f.Version),
				zap.String("up_file", f.UpPath),
				zap.String("down_file", f.DownPath),
			)
			return nil
		},
	}
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List migrations in the migrations directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := resolveMigrationsPath(migrationsPath)
			if err != nil {
				return err
			}
			files, err := migration.List(dir)
			if err != nil {
				return fmt.Errorf("failed to list migrations: %w", err)
			}
			if len(files) == 0 {
				log.Info("No migrations found", zap.String("path", dir))
				return nil
			}
			out := cmd.OutOrStdout()
			for _, f := range files {
				marker := ""
				if f.DownPath == "" {
					marker = "  (no down)"
				}
				fmt.Fprintf(out, "  %d  %s%s\n", f.Version, f.Name, marker)
			}
			return nil
		},
	}
}

// resolveMigrationsPath finds the migrations directory next to the working
// directory or the executable and returns it as an absolute path
func resolveMigrationsPath(path string) (string, error) {
	if path == "" {
		path = defaultMigrationsPath
		if _, err := os.Stat(path); err != nil {
			if execPath, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(execPath), "..", "..", defaultMigrationsPath)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
				}
			}
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return abs, nil
}
