package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	maintenanceapp "github.com/delivery/backend/internal/application/maintenance"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/infrastructure/config"
	"github.com/delivery/backend/internal/infrastructure/geocoding"
	"github.com/delivery/backend/internal/infrastructure/logger"
	"github.com/delivery/backend/internal/infrastructure/persistence"
	"github.com/delivery/backend/internal/infrastructure/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errJobFailed makes the process exit non-zero when a report has failures
var errJobFailed = errors.New("maintenance job reported failures")

type flags struct {
	dryRun    bool
	uploadDir string
	seedFile  string
	limit     int
	logLevel  string
}

var jobDescriptions = map[string]string{
	maintenanceapp.JobMigrateOpeningHours: "Convert legacy opening-hours text to the JSON schedule",
	maintenanceapp.JobFixImageURLs:        "Move restaurant and product image URLs to object storage",
	maintenanceapp.JobBackfillCoordinates: "Geocode restaurants that have no coordinates",
	maintenanceapp.JobDedupeRestaurants:   "Merge restaurants sharing a phone or a name and address",
	maintenanceapp.JobSeed:                "Insert restaurants and products from a JSON seed file",
	maintenanceapp.JobPurgeExpired:        "Delete expired idempotency keys and OTP codes",
}

func main() {
	f := &flags{}
	root := &cobra.Command{
		Use:           "maintenance",
		Short:         "Run delivery data maintenance jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&f.dryRun, "dry-run", false, "Report what would change without writing")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	for _, job := range maintenanceapp.Jobs() {
		root.AddCommand(jobCommand(job, f))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errJobFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func jobCommand(job string, f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   job,
		Short: jobDescriptions[job],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, job, f)
		},
	}
	switch job {
	case maintenanceapp.JobFixImageURLs:
		cmd.Flags().StringVar(&f.uploadDir, "upload-dir", "", "Directory holding the legacy /uploads files to push to storage")
	case maintenanceapp.JobSeed:
		cmd.Flags().StringVar(&f.seedFile, "seed-file", "", "JSON seed file")
		_ = cmd.MarkFlagRequired("seed-file")
	case maintenanceapp.JobBackfillCoordinates:
		cmd.Flags().IntVar(&f.limit, "limit", 0, "Maximum restaurants to geocode (0 = default)")
	}
	return cmd
}

func run(cmd *cobra.Command, job string, f *flags) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:      f.logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	db, err := persistence.Open(&cfg.Database, logger.NewGormLogger(log, logger.MapGormLogLevel(f.logLevel)))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	opts := []maintenanceapp.Option{
		maintenanceapp.WithConfig(maintenanceapp.Config{LegacyHosts: cfg.Storage.LegacyHosts}),
		maintenanceapp.WithLogger(log),
	}
	if cfg.Geocoding.Enabled {
		var geocoder shared.Geocoder = geocoding.NewNominatimClient(cfg.Geocoding)
		opts = append(opts, maintenanceapp.WithGeocoder(geocoder))
	}
	if job == maintenanceapp.JobFixImageURLs {
		store, err := objectStore(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		opts = append(opts, maintenanceapp.WithObjectStore(store))
	}

	svc := maintenanceapp.NewService(
		persistence.NewGormMaintenanceStore(db.DB),
		persistence.NewGormRestaurantRepository(db.DB),
		persistence.NewGormProductRepository(db.DB),
		persistence.NewGormIdempotencyKeyRepository(db.DB),
		persistence.NewGormOTPRepository(db.DB),
		opts...,
	)

	log.Info("Running maintenance job", zap.String("job", job), zap.Bool("dry_run", f.dryRun))
	report, err := svc.Run(cmd.Context(), job, maintenanceapp.Options{
		DryRun:    f.dryRun,
		UploadDir: f.uploadDir,
		SeedFile:  f.seedFile,
		Limit:     f.limit,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.Failed > 0 {
		log.Warn("Maintenance job finished with failures", zap.String("job", job), zap.Int("failed", report.Failed))
		return errJobFailed
	}
	return nil
}

// objectStore uses S3 when a bucket is configured and the local directory otherwise
func objectStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (maintenanceapp.ObjectStore, error) {
	if cfg.Storage.Bucket == "" {
		return storage.NewLocalObjectStorage(cfg.Storage.LocalDir, cfg.Storage.PublicURL)
	}
	s3Store, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}
	if err := s3Store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("object storage bucket %q: %w", cfg.Storage.Bucket, err)
	}
	return s3Store, nil
}
