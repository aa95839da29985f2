package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/Agamista0/ava-support-backend/pkg/database"
	"github.com/Agamista0/ava-support-backend/pkg/health"
	pkgkafka "github.com/Agamista0/ava-support-backend/pkg/kafka"
	"github.com/Agamista0/ava-support-backend/pkg/tracing"

	"github.com/Agamista0/ava-support-backend/internal/ai"
	"github.com/Agamista0/ava-support-backend/internal/auth"
	"github.com/Agamista0/ava-support-backend/internal/billing"
	"github.com/Agamista0/ava-support-backend/internal/config"
	"github.com/Agamista0/ava-support-backend/internal/event"
	handler "github.com/Agamista0/ava-support-backend/internal/handler/http"
	"github.com/Agamista0/ava-support-backend/internal/identity"
	"github.com/Agamista0/ava-support-backend/internal/repository/postgres"
	"github.com/Agamista0/ava-support-backend/internal/repository/redis"
	"github.com/Agamista0/ava-support-backend/internal/service"
	"github.com/Agamista0/ava-support-backend/internal/tracker"
	"github.com/Agamista0/ava-support-backend/migrations"
)

// App wires together all dependencies and runs the support backend.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *goredis.Client
	producer       *pkgkafka.Producer
	sweeper        *service.Sweeper
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "ava-support-backend",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.TracingEndpoint,
		SampleRate:     1.0,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// PostgreSQL connection pool.
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "ava-support-backend")

	if err := database.RunMigrations(ctx, pool, migrations.Files, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Redis backs the blacklist verdict cache. The cache degrades to the
	// database, so a missing Redis is a warning rather than a startup failure.
	var blacklistCache service.BlacklistCache
	redisClient, err := database.NewRedisClient(ctx, cfg.RedisConfig())
	if err != nil {
		logger.Warn("redis unavailable, token revocation checks fall through to postgres",
			slog.String("error", err.Error()))
		redisClient = nil
	} else {
		blacklistCache = redis.NewBlacklistCache(redisClient, cfg.RedisCacheTTL)
		logger.Info("connected to Redis", slog.String("addr", cfg.RedisConfig().Addr()))
	}

	// Kafka event fan-out is optional.
	var producer *pkgkafka.Producer
	var securityPublisher service.SecurityEventPublisher
	var billingPublisher service.BillingEventPublisher
	if cfg.EventsEnabled() {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher := event.NewPublisher(producer, logger)
		securityPublisher = publisher
		billingPublisher = publisher
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	codec := auth.NewCodec(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	users := identity.NewPostgresStore(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	blacklistRepo := postgres.NewBlacklistRepository(pool)
	attemptRepo := postgres.NewLoginAttemptRepository(pool)
	eventRepo := postgres.NewSecurityEventRepository(pool)
	creditRepo := postgres.NewCreditRepository(pool)
	webhookRepo := postgres.NewWebhookEventRepository(pool)
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)

	authManager := service.NewAuthManager(users, codec, sessionRepo, blacklistRepo, attemptRepo, eventRepo,
		blacklistCache, securityPublisher, logger)
	creditService := service.NewCreditService(creditRepo, logger)

	// The AI and tracker integrations are optional; the support surface
	// reports itself unavailable when they are not configured.
	var classifier service.Classifier
	var transcriber service.Transcriber
	var ticketTracker service.TicketCreator
	if cfg.OpenAIKey != "" {
		aiClient := openai.NewClient(cfg.OpenAIKey)
		classifier = ai.NewClassifier(aiClient, cfg.OpenAIModel)
		transcriber = ai.NewTranscriber(aiClient)
	}
	if cfg.TrackerURL != "" {
		ticketTracker = tracker.New(cfg.TrackerURL, cfg.TrackerToken, cfg.TrackerProject, logger)
	}
	supportService := service.NewSupportService(creditService, classifier, ticketTracker, transcriber,
		cfg.SupportRequestCost, logger)

	provider := billing.NewMockProvider(cfg.CheckoutBaseURL)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, webhookRepo, creditService,
		provider, billingPublisher, cfg.Plans(), logger)

	sweeper := service.NewSweeper(sessionRepo, blacklistRepo, attemptRepo, eventRepo, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
	}

	router := handler.NewRouter(cfg, authManager, creditService, supportService, subscriptionService,
		healthHandler, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		producer:       producer,
		sweeper:        sweeper,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and the retention sweeper, blocking until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go a.sweeper.Start(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: the HTTP server drains
// in-flight requests first, the tracer flushes their spans, then the
// outbound connections close.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
