package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	catalogapp "github.com/delivery/backend/internal/application/catalog"
	dispatchapp "github.com/delivery/backend/internal/application/dispatch"
	driverapp "github.com/delivery/backend/internal/application/driver"
	geocodeapp "github.com/delivery/backend/internal/application/geocode"
	identityapp "github.com/delivery/backend/internal/application/identity"
	maintenanceapp "github.com/delivery/backend/internal/application/maintenance"
	orderapp "github.com/delivery/backend/internal/application/order"
	restaurantapp "github.com/delivery/backend/internal/application/restaurant"
	settingsapp "github.com/delivery/backend/internal/application/settings"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/infrastructure/auth"
	"github.com/delivery/backend/internal/infrastructure/cache"
	"github.com/delivery/backend/internal/infrastructure/config"
	"github.com/delivery/backend/internal/infrastructure/event"
	"github.com/delivery/backend/internal/infrastructure/geocoding"
	"github.com/delivery/backend/internal/infrastructure/logger"
	"github.com/delivery/backend/internal/infrastructure/messaging"
	"github.com/delivery/backend/internal/infrastructure/migration"
	"github.com/delivery/backend/internal/infrastructure/payment"
	"github.com/delivery/backend/internal/infrastructure/persistence"
	"github.com/delivery/backend/internal/infrastructure/realtime"
	"github.com/delivery/backend/internal/infrastructure/scheduler"
	"github.com/delivery/backend/internal/infrastructure/sms"
	"github.com/delivery/backend/internal/infrastructure/storage"
	"github.com/delivery/backend/internal/infrastructure/telegram"
	"github.com/delivery/backend/internal/infrastructure/telemetry"
	"github.com/delivery/backend/internal/interfaces/http/handler"
	"github.com/delivery/backend/internal/interfaces/http/middleware"
	"github.com/delivery/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	// Telemetry goes first so the database and HTTP layers pick up the
	// global providers
	providers, err := telemetry.Setup(rootCtx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := providers.Shutdown(ctx); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()
	if lp := providers.LoggerProvider(); lp != nil {
		level, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			level = zapcore.InfoLevel
		}
		log = telemetry.BridgeLogger(log, lp, cfg.Telemetry.ServiceName, level)
	}

	log.Info("Starting delivery backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	if cfg.Database.AutoMigrate {
		if err := applyMigrations(rootCtx, cfg.Database.DSN(), log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	db, err := persistence.Open(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		log.Warn("Database tracing disabled", zap.Error(err))
	}

	// Redis backs the token blacklist, the settings cache and event dedup.
	// Without it every node keeps its own in-memory copy.
	var redisClient *redis.Client
	if cfg.Idempotency.UseRedis {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, falling back to in-memory stores", zap.Error(err))
			redisClient = nil
		}
	}
	cacheFactory := cache.NewFactory(cfg.Redis, redisClient != nil,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
		cache.WithRedisClient(redisClient),
	)
	defer func() {
		if err := cacheFactory.Close(); err != nil {
			log.Error("Error closing cache", zap.Error(err))
		}
	}()

	var tokenBlacklist auth.TokenBlacklist = auth.NewInMemoryTokenBlacklist()
	if redisClient != nil {
		tokenBlacklist = auth.NewRedisTokenBlacklist(redisClient)
	}

	// Initialize repositories
	restaurantRepo := persistence.NewGormRestaurantRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	idempotencyKeyRepo := persistence.NewGormIdempotencyKeyRepository(db.DB)
	driverRepo := persistence.NewGormDriverRepository(db.DB)
	offerRepo := persistence.NewGormOfferRepository(db.DB)
	telegramMessageRepo := persistence.NewGormTelegramMessageRepository(db.DB)
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	adminUserRepo := persistence.NewGormAdminUserRepository(db.DB)
	otpRepo := persistence.NewGormOTPRepository(db.DB)
	settingsRepo := persistence.NewGormSettingsRepository(db.DB)
	maintenanceStore := persistence.NewGormMaintenanceStore(db.DB)

	// External integrations
	var geocoder shared.Geocoder
	if cfg.Geocoding.Enabled {
		geocoder = geocoding.NewNominatimClient(cfg.Geocoding)
		log.Info("Geocoding enabled", zap.String("base_url", cfg.Geocoding.BaseURL))
	}

	objectStore, uploadDir := newObjectStore(rootCtx, cfg, log)

	smsSender := sms.NewSender(cfg.SMS, log)

	var telegramClient *telegram.Client
	if cfg.Telegram.BotToken != "" {
		telegramClient, err = telegram.NewClient(cfg.Telegram)
		if err != nil {
			log.Fatal("Failed to initialize Telegram client", zap.Error(err))
		}
	} else {
		log.Warn("Telegram bot token not set, drivers will only be reached by SMS")
	}

	deliveryMetrics, err := telemetry.NewDeliveryMetrics(providers.Meter("delivery"), driverRepo)
	if err != nil {
		log.Fatal("Failed to create delivery metrics", zap.Error(err))
	}

	// Initialize application services
	jwtService := auth.NewJWTService(cfg.JWT, cfg.Dispatch.LoginTokenTTL)
	settingsService := settingsapp.NewService(settingsRepo, cacheFactory.CreateSettingsCache(), log)
	authService := identityapp.NewAuthService(adminUserRepo, driverRepo, customerRepo, jwtService, tokenBlacklist, log)
	otpService := identityapp.NewOTPService(otpRepo, customerRepo, smsSender, jwtService, identityapp.OTPConfig{
		TTL:            cfg.OTP.TTL,
		ResendInterval: cfg.OTP.ResendInterval,
	}, log)
	customerService := identityapp.NewCustomerService(customerRepo, log)
	driverService := driverapp.NewService(driverRepo, jwtService, tokenBlacklist, log)
	geocodeService := geocodeapp.NewService(geocoder)

	restaurantService := restaurantapp.NewService(restaurantRepo, geocoder, log)
	restaurantService.SetLocation(cfg.App.Location())
	productService := catalogapp.NewProductService(productRepo, restaurantRepo, objectStore, log)

	orderOpts := []orderapp.Option{
		orderapp.WithGeocoder(geocoder),
		orderapp.WithMetrics(deliveryMetrics),
		orderapp.WithFeeSource(settingsService),
		orderapp.WithIdempotencyTTL(cfg.Idempotency.KeyTTL),
		orderapp.WithLocation(cfg.App.Location()),
		orderapp.WithLogger(log),
	}
	if cfg.Flouci.AppToken != "" {
		flouci, err := payment.NewFlouciAdapter(cfg.Flouci)
		if err != nil {
			log.Fatal("Failed to initialize Flouci adapter", zap.Error(err))
		}
		orderOpts = append(orderOpts, orderapp.WithPaymentGateway(flouci))
	} else {
		log.Warn("Flouci not configured, online payment is disabled")
	}
	orderService := orderapp.NewService(orderRepo, idempotencyKeyRepo, restaurantRepo, productRepo, driverRepo, orderOpts...)

	dispatchOpts := []dispatchapp.Option{
		dispatchapp.WithTimeoutSource(settingsService),
		dispatchapp.WithMetrics(deliveryMetrics),
		dispatchapp.WithLogger(log),
	}
	if telegramClient != nil {
		dispatchOpts = append(dispatchOpts, dispatchapp.WithTelegram(telegramClient))
	}
	dispatchService := dispatchapp.NewService(
		orderRepo, driverRepo, restaurantRepo, offerRepo, telegramMessageRepo,
		smsSender, jwtService,
		dispatchapp.Config{
			PublicBaseURL: cfg.App.PublicBaseURL,
			DriverAppURL:  cfg.App.DriverAppURL,
			AdminChatID:   cfg.Telegram.AdminChatID,
			OfferTimeout:  cfg.Dispatch.OfferTimeout,
		},
		dispatchOpts...,
	)
	dispatchService.SetLinker(driverService)
	defer dispatchService.Stop()

	maintenanceService := maintenanceapp.NewService(
		maintenanceStore, restaurantRepo, productRepo, idempotencyKeyRepo, otpRepo,
		maintenanceapp.WithGeocoder(geocoder),
		maintenanceapp.WithObjectStore(objectStore),
		maintenanceapp.WithMetrics(deliveryMetrics),
		maintenanceapp.WithConfig(maintenanceapp.Config{LegacyHosts: cfg.Storage.LegacyHosts}),
		maintenanceapp.WithLogger(log),
	)

	// Initialize event serializer and register all event types
	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)

	idempotencyStore, err := cacheFactory.CreateIdempotencyStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	hub := realtime.NewHub(log, cfg.HTTP.CORSAllowOrigins...)
	go hub.Run(rootCtx)

	eventBus := event.NewInMemoryEventBus(log)

	// OrderCreated may be delivered twice (bus retry, AMQP redelivery);
	// dispatch must only start once per order
	orderCreatedHandler := event.NewIdempotentHandler(
		dispatchapp.NewOrderCreatedHandler(dispatchService, log),
		idempotencyStore,
		log,
		event.WithMarkerTTL(cfg.Idempotency.EventTTL),
	)
	eventBus.Subscribe(orderCreatedHandler)
	eventBus.Subscribe(hub)

	if cfg.Messaging.AMQPURL != "" {
		publisher, err := messaging.Dial(cfg.Messaging, eventSerializer, log)
		if err != nil {
			log.Fatal("Failed to connect to message broker", zap.Error(err))
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error("Error closing message broker", zap.Error(err))
			}
		}()
		eventBus.Subscribe(publisher)
		log.Info("Publishing order events to AMQP", zap.String("exchange", cfg.Messaging.Exchange))
	}

	log.Info("Event handlers registered",
		zap.Strings("dispatch_events", orderCreatedHandler.EventTypes()),
		zap.Strings("tracking_events", hub.EventTypes()),
	)

	if err := eventBus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Inject event bus into services that publish events
	orderService.SetEventPublisher(eventBus)
	restaurantService.SetEventPublisher(eventBus)
	productService.SetEventPublisher(eventBus)
	dispatchService.SetEventPublisher(eventBus)

	// Maintenance jobs run on the scheduler, triggered by the admin API and
	// by the periodic purge
	jobScheduler := scheduler.NewScheduler(scheduler.Config{
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:        cfg.Scheduler.JobTimeout,
		RetryAttempts:     cfg.Scheduler.RetryAttempts,
		RetryDelay:        cfg.Scheduler.RetryDelay,
	}, maintenanceExecutor(maintenanceService, log), log)

	if cfg.Scheduler.Enabled {
		if err := jobScheduler.Start(rootCtx); err != nil {
			log.Fatal("Failed to start job scheduler", zap.Error(err))
		}
		defer func() {
			if err := jobScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping job scheduler", zap.Error(err))
			}
		}()

		purgeTrigger := scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
			Kind:     maintenanceapp.JobPurgeExpired,
			Interval: cfg.Scheduler.PurgeInterval,
		}, jobScheduler, log)
		if err := purgeTrigger.Start(rootCtx); err != nil {
			log.Fatal("Failed to start purge trigger", zap.Error(err))
		}
		defer func() {
			if err := purgeTrigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping purge trigger", zap.Error(err))
			}
		}()
		log.Info("Job scheduler started",
			zap.Int("max_concurrent_jobs", cfg.Scheduler.MaxConcurrentJobs),
			zap.Duration("purge_interval", cfg.Scheduler.PurgeInterval),
		)
	}

	if cfg.Admin.Username != "" && cfg.Admin.Password != "" {
		created, err := authService.EnsureBootstrapAdmin(rootCtx, cfg.Admin.Username, cfg.Admin.Password)
		if err != nil {
			log.Fatal("Failed to create bootstrap admin", zap.Error(err))
		}
		if created {
			log.Info("Bootstrap admin created", zap.String("username", cfg.Admin.Username))
		}
	}

	if telegramClient != nil && cfg.Telegram.WebhookURL != "" {
		if err := telegramClient.SetWebhook(rootCtx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			log.Error("Failed to register Telegram webhook", zap.Error(err))
		} else {
			log.Info("Telegram webhook registered", zap.String("url", cfg.Telegram.WebhookURL))
		}
	}

	// Initialize HTTP handlers
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version)
	systemHandler.AddCheck("database", db.Ping)
	if redisClient != nil {
		systemHandler.AddCheck("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	handlers := router.Handlers{
		Auth:        handler.NewAuthHandler(authService, otpService, driverService),
		Restaurants: handler.NewRestaurantHandler(restaurantService),
		Products:    handler.NewProductHandler(productService),
		Orders:      handler.NewOrderHandler(orderService, dispatchService, hub),
		Drivers:     handler.NewDriverHandler(driverService),
		Customers:   handler.NewCustomerHandler(customerService),
		Settings:    handler.NewSettingsHandler(settingsService),
		Geocode:     handler.NewGeocodeHandler(geocodeService),
		Telegram:    handler.NewTelegramHandler(dispatchService, cfg.Telegram.WebhookSecret),
		Maintenance: handler.NewMaintenanceHandler(jobScheduler),
		System:      systemHandler,
		Pages:       handler.NewDispatchPages(dispatchService),
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Tracing - Start the request span (if enabled)
	// 4. Logger - Log requests with trace IDs
	// 5. Metrics - Request count and latency
	// 6. Security - Add security headers
	// 7. CORS - Handle cross-origin requests
	// 8. BodyLimit - Limit request body size
	// 9. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	if providers.TracingEnabled() {
		engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, "/health"))
		engine.Use(middleware.SpanAnnotator())
	}
	engine.Use(logger.GinMiddleware(log, logger.SkipPaths("/health", "/uploads/*")))
	if cfg.Telemetry.MetricsEnabled {
		engine.Use(middleware.HTTPMetrics(providers.Meter("http")))
	}
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// One code request per client per resend interval, whatever the phone
	otpLimiter := middleware.RateLimitByKey(
		middleware.NewRateLimiter(3, cfg.OTP.ResendInterval),
		func(c *gin.Context) string { return "otp:" + c.ClientIP() },
	)

	router.Mount(engine, handlers, router.MountConfig{
		APIVersion: "v1",
		Auth: func(public []middleware.PublicRoute) gin.HandlerFunc {
			return middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
				JWTService:     jwtService,
				TokenBlacklist: tokenBlacklist,
				PublicRoutes:   public,
				Logger:         log,
			})
		},
		OTPLimiter: otpLimiter,
		UploadDir:  uploadDir,
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	// Closing the root context stops the hub and cancels pending offer timers
	stopRoot()

	log.Info("Server exited gracefully")
}

// objectStore is what the product and maintenance services need from storage
type objectStore interface {
	catalogapp.ImageStore
	maintenanceapp.ObjectStore
}

// newObjectStore picks S3 when a bucket is configured and the local
// directory otherwise. The returned dir is served under /uploads when set.
func newObjectStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (objectStore, string) {
	if cfg.Storage.Bucket != "" {
		s3Store, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			log.Warn("Object storage bucket check failed", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
		}
		log.Info("Using S3 object storage", zap.String("bucket", cfg.Storage.Bucket))
		return s3Store, ""
	}

	baseURL := cfg.Storage.PublicURL
	if baseURL == "" {
		baseURL = cfg.App.PublicBaseURL + "/uploads"
	}
	local, err := storage.NewLocalObjectStorage(cfg.Storage.LocalDir, baseURL)
	if err != nil {
		log.Fatal("Failed to initialize local storage", zap.Error(err))
	}
	log.Warn("Object storage bucket not set, storing uploads on local disk", zap.String("dir", local.Dir()))
	return local, local.Dir()
}

// maintenanceExecutor runs scheduler jobs through the maintenance service
func maintenanceExecutor(svc *maintenanceapp.Service, log *zap.Logger) scheduler.JobExecutor {
	return scheduler.ExecutorFunc(func(ctx context.Context, job *scheduler.Job) error {
		report, err := svc.Run(ctx, job.Kind, maintenanceapp.OptionsFromParams(job.Params))
		if err != nil {
			return err
		}
		log.Info("Maintenance job finished",
			zap.String("job_id", job.ID.String()),
			zap.String("job", job.Kind),
			zap.Int("updated", report.Updated),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)
		return nil
	})
}

// applyMigrations brings the schema up to date from the migrations embedded
// in the binary
func applyMigrations(ctx context.Context, dsn string, log *zap.Logger) error {
	m, err := migration.Open(dsn, migration.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up(ctx)
}
