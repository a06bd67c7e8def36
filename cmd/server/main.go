package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	bankingapp "github.com/hausverwaltung/backend/internal/application/banking"
	billingapp "github.com/hausverwaltung/backend/internal/application/billing"
	distributionapp "github.com/hausverwaltung/backend/internal/application/distribution"
	eventapp "github.com/hausverwaltung/backend/internal/application/event"
	"github.com/hausverwaltung/backend/internal/domain/banking"
	"github.com/hausverwaltung/backend/internal/domain/ledger"
	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/infrastructure/accounting"
	"github.com/hausverwaltung/backend/internal/infrastructure/bankcsv"
	"github.com/hausverwaltung/backend/internal/infrastructure/cache"
	"github.com/hausverwaltung/backend/internal/infrastructure/config"
	"github.com/hausverwaltung/backend/internal/infrastructure/event"
	"github.com/hausverwaltung/backend/internal/infrastructure/logger"
	"github.com/hausverwaltung/backend/internal/infrastructure/persistence"
	"github.com/hausverwaltung/backend/internal/infrastructure/persistence/tenant"
	"github.com/hausverwaltung/backend/internal/infrastructure/scheduler"
	"github.com/hausverwaltung/backend/internal/infrastructure/telemetry"
	"github.com/hausverwaltung/backend/internal/interfaces/http/handler"
	"github.com/hausverwaltung/backend/internal/interfaces/http/middleware"
	"github.com/hausverwaltung/backend/internal/interfaces/http/router"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync(log) }()

	log.Info("starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// The provider degrades to a no-op when tracing is disabled, so the
	// middleware and service spans stay wired unconditionally.
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer provider shutdown failed", zap.Error(err))
		}
	}()

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("database close failed", zap.Error(err))
		}
	}()

	if err := db.Migrate(); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}

	if cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        "postgresql",
		}, log)
		if err := plugin.Register(db.DB); err != nil {
			log.Fatal("failed to register db tracing plugin", zap.Error(err))
		}
	}

	// Tenant scoping is resolved per-request by the HTTP middleware; the
	// GORM callback injects the tenant filter into every scoped query.
	tenant.EnableAutoTenantFilter(db.DB, false)

	// Repositories.
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	transactionRepo := persistence.NewGormBankTransactionRepository(db.DB)
	postingRepo := persistence.NewGormPostingRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	// Domain events are written to the outbox in the same transaction as
	// the aggregate that raised them, and relayed to the bus afterwards.
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	outboxPublisher := event.NewOutboxPublisher(serializer)
	invoiceRepo.SetOutboxEventSaver(outboxPublisher)
	transactionRepo.SetOutboxEventSaver(outboxPublisher)

	// Services.
	clock := shared.SystemClock{}
	chart := accounting.NewStaticChart(nil)
	emitter := ledger.NewPostingEmitter(chart, postingRepo)
	txManager := persistence.NewGormTransactionManager(db.DB)

	allocationService := billingapp.NewAllocationService(invoiceRepo, paymentRepo, emitter, txManager, clock, log)
	allocationService.Retries = cfg.Engine.AllocationRetries

	dunningService := billingapp.NewDunningService(invoiceRepo, clock,
		decimal.NewFromFloat(cfg.Engine.DunningInterestRate), log)

	scorerConfig := banking.DefaultScorerConfig()
	scorerConfig.MinConfidence = decimal.NewFromFloat(cfg.Engine.MatchMinConfidence)
	scorerConfig.MaxSuggestions = cfg.Engine.MatchMaxSuggestions
	scorerConfig.MaxDateDistanceDays = cfg.Engine.MatchMaxDateDistance
	matchService := bankingapp.NewMatchService(transactionRepo, invoiceRepo,
		banking.NewMatchScorer(scorerConfig), allocationService, txManager, clock, log)

	distributionService := distributionapp.NewService(emitter, clock, log)
	distributionService.Workers = cfg.Engine.DistributionWorkers

	statementImportService := bankingapp.NewStatementImportService(bankcsv.NewParser(), matchService, log)

	outboxService := eventapp.NewOutboxService(outboxRepo, log)

	// Event consumers are wrapped with idempotency so the at-least-once
	// outbox relay never applies an event twice.
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	).CreateStore()
	if err != nil {
		log.Fatal("failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Warn("idempotency store close failed", zap.Error(err))
		}
	}()

	idempotencyConfig := shared.IdempotencyConfig{
		TTL:     time.Duration(cfg.Engine.IdempotencyKeyTTLHours) * time.Hour,
		Enabled: true,
	}

	eventBus := event.NewInMemoryEventBus(log)
	autoMatchHandler := bankingapp.NewTransactionImportedHandler(matchService, transactionRepo,
		decimal.NewFromFloat(cfg.Engine.MatchAutoConfirm), log)
	eventBus.Subscribe(
		event.NewIdempotentHandler(autoMatchHandler, idempotencyStore, log,
			event.WithIdempotencyConfig(idempotencyConfig)),
		autoMatchHandler.EventTypes()...,
	)
	log.Info("event handlers registered",
		zap.Strings("event_types", autoMatchHandler.EventTypes()))

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("failed to start event bus", zap.Error(err))
	}
	defer func() { _ = eventBus.Stop(context.Background()) }()

	outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, serializer,
		event.DefaultOutboxProcessorConfig(), log)
	if err := outboxProcessor.Start(ctx); err != nil {
		log.Fatal("failed to start outbox processor", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := outboxProcessor.Stop(stopCtx); err != nil {
			log.Warn("outbox processor stop failed", zap.Error(err))
		}
	}()

	dunningCron := scheduler.NewDunningCron(
		scheduler.DefaultDunningCronConfig(),
		persistence.NewTenantDirectory(db.DB),
		scheduler.DunningRunnerFunc(func(ctx context.Context, tenantID uuid.UUID) error {
			_, err := dunningService.Run(ctx, tenantID)
			return err
		}),
		log,
	)
	if err := dunningCron.Start(ctx); err != nil {
		log.Fatal("failed to start dunning cron", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := dunningCron.Stop(stopCtx); err != nil {
			log.Warn("dunning cron stop failed", zap.Error(err))
		}
	}()

	// HTTP layer.
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("failed to set trusted proxies", zap.Error(err))
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
			AllowMethods:     cfg.HTTP.CORSAllowMethods,
			AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Tracing(),
		middleware.SpanErrorMarker(),
	)

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow))
	}

	engine.GET("/health/ready", readinessHandler(db))

	router.Build(engine, router.Handlers{
		System:       handler.NewSystemHandler(),
		Payment:      handler.NewPaymentHandler(allocationService),
		Dunning:      handler.NewDunningHandler(dunningService),
		Banking:      handler.NewBankingHandler(matchService, statementImportService),
		Distribution: handler.NewDistributionHandler(distributionService),
		Outbox:       handler.NewOutboxHandler(outboxService),
	}, middleware.TenantMiddleware(), middleware.TracingAttributeInjector())

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
}

// readinessHandler reports whether the service can reach its database. The
// bare /health and /healthz probes answer liveness without touching it.
func readinessHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unreachable",
				"time":     time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "ok",
			"time":     time.Now().UTC().Format(time.RFC3339),
		})
	}
}
