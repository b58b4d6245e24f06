package maintenance

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/delivery/backend/internal/domain/catalog"
	"github.com/delivery/backend/internal/domain/identity"
	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Job names
const (
	JobMigrateOpeningHours = "migrate-opening-hours"
	JobFixImageURLs        = "fix-image-urls"
	JobBackfillCoordinates = "backfill-coordinates"
	JobDedupeRestaurants   = "dedupe-restaurants"
	JobSeed                = "seed"
	JobPurgeExpired        = "purge-expired"
)

// ErrUnknownJob is returned for a job name that does not exist
var ErrUnknownJob = shared.NewDomainError("UNKNOWN_JOB", "Unknown maintenance job")

// Metrics records job outcomes. Implemented by telemetry.DeliveryMetrics.
type Metrics interface {
	RecordJob(ctx context.Context, job string, updated, skipped, failed int)
}

// ObjectStore is the object storage used to host images
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
}

// Options tunes a single run
type Options struct {
	DryRun    bool
	UploadDir string
	SeedFile  string
	// Limit caps how many restaurants backfill-coordinates geocodes
	Limit int
}

// OptionsFromParams reads Options from scheduler job params
func OptionsFromParams(params map[string]string) Options {
	opts := Options{
		UploadDir: params["upload_dir"],
		SeedFile:  params["seed_file"],
	}
	opts.DryRun, _ = strconv.ParseBool(params["dry_run"])
	opts.Limit, _ = strconv.Atoi(params["limit"])
	return opts
}

// Params is the inverse of OptionsFromParams
func (o Options) Params() map[string]string {
	params := map[string]string{}
	if o.DryRun {
		params["dry_run"] = "true"
	}
	if o.UploadDir != "" {
		params["upload_dir"] = o.UploadDir
	}
	if o.SeedFile != "" {
		params["seed_file"] = o.SeedFile
	}
	if o.Limit > 0 {
		params["limit"] = strconv.Itoa(o.Limit)
	}
	return params
}

// Config holds job settings
type Config struct {
	// LegacyHosts are hostnames whose image URLs get moved to object storage
	LegacyHosts []string
	// GeocodeInterval spaces geocoding requests; Nominatim allows one per second
	GeocodeInterval time.Duration
}

// Service runs data maintenance jobs
type Service struct {
	store       Store
	restaurants restaurant.RestaurantRepository
	products    catalog.ProductRepository
	keys        order.IdempotencyKeyRepository
	otps        identity.OTPRepository
	geocoder    shared.Geocoder
	objects     ObjectStore
	metrics     Metrics
	config      Config
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures the Service
type Option func(*Service)

// WithGeocoder enables backfill-coordinates
func WithGeocoder(g shared.Geocoder) Option {
	return func(s *Service) { s.geocoder = g }
}

// WithObjectStore enables fix-image-urls
func WithObjectStore(o ObjectStore) Option {
	return func(s *Service) { s.objects = o }
}

// WithMetrics records job metrics
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithConfig sets job settings
func WithConfig(cfg Config) Option {
	return func(s *Service) { s.config = cfg }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a maintenance service
func NewService(
	store Store,
	restaurants restaurant.RestaurantRepository,
	products catalog.ProductRepository,
	keys order.IdempotencyKeyRepository,
	otps identity.OTPRepository,
	opts ...Option,
) *Service {
	s := &Service{
		store:       store,
		restaurants: restaurants,
		products:    products,
		keys:        keys,
		otps:        otps,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.GeocodeInterval <= 0 {
		s.config.GeocodeInterval = time.Second
	}
	return s
}

// Jobs lists the job names in alphabetical order
func Jobs() []string {
	jobs := []string{
		JobMigrateOpeningHours, JobFixImageURLs, JobBackfillCoordinates,
		JobDedupeRestaurants, JobSeed, JobPurgeExpired,
	}
	sort.Strings(jobs)
	return jobs
}

// IsJob reports whether name is a known job
func IsJob(name string) bool {
	for _, j := range Jobs() {
		if j == name {
			return true
		}
	}
	return false
}

// Run executes a job by name and logs its report
func (s *Service) Run(ctx context.Context, job string, opts Options) (*Report, error) {
	var (
		report *Report
		err    error
	)
	switch job {
	case JobMigrateOpeningHours:
		report, err = s.MigrateOpeningHours(ctx, opts.DryRun)
	case JobFixImageURLs:
		report, err = s.FixImageURLs(ctx, opts.UploadDir, opts.DryRun)
	case JobBackfillCoordinates:
		report, err = s.BackfillCoordinates(ctx, opts.Limit)
	case JobDedupeRestaurants:
		report, err = s.DedupeRestaurants(ctx, opts.DryRun)
	case JobSeed:
		report, err = s.SeedFile(ctx, opts.SeedFile)
	case JobPurgeExpired:
		report, err = s.PurgeExpired(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}
	if err != nil {
		s.logger.Error("maintenance job failed", zap.String("job", job), zap.Error(err))
		return report, err
	}
	s.finish(ctx, report, opts.DryRun)
	return report, nil
}

func (s *Service) finish(ctx context.Context, r *Report, dryRun bool) {
	s.logger.Info("maintenance job finished",
		zap.String("job", r.Job),
		zap.Bool("dry_run", dryRun),
		zap.Int("processed", r.Processed),
		zap.Int("updated", r.Updated),
		zap.Int("skipped", r.Skipped),
		zap.Int("failed", r.Failed))
	for _, e := range r.Errors {
		s.logger.Warn("maintenance item failed", zap.String("job", r.Job), zap.String("detail", e))
	}
	if s.metrics != nil && !dryRun {
		s.metrics.RecordJob(ctx, r.Job, r.Updated, r.Skipped, r.Failed)
	}
}
