package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sakashimaa/order-orchestrator/pkg/breaker"
	"github.com/sakashimaa/order-orchestrator/pkg/config"
	"github.com/sakashimaa/order-orchestrator/pkg/db"
	"github.com/sakashimaa/order-orchestrator/pkg/idempotency"
	"github.com/sakashimaa/order-orchestrator/pkg/kafka"
	"github.com/sakashimaa/order-orchestrator/pkg/metrics"
	"github.com/sakashimaa/order-orchestrator/pkg/mylogger"
	outboxRepository "github.com/sakashimaa/order-orchestrator/pkg/outbox/repository"
	"github.com/sakashimaa/order-orchestrator/pkg/outbox/worker"
	"github.com/sakashimaa/order-orchestrator/pkg/remote"
	"github.com/sakashimaa/order-orchestrator/pkg/utils"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/audit"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/client"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/repository"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/service"
	transport "github.com/sakashimaa/order-orchestrator/services/order/internal/transport/http"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/transport/http/handler"
	"go.uber.org/zap"
)

func main() {
	migrateOnStart := flag.Bool("migrate", false, "apply database migrations before serving")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(config.LoggerConfig{
		Level:   cfg.Log.Level,
		Env:     cfg.Env,
		Service: "order-service",
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := utils.InitTracer(ctx, "order-service", cfg.Env)
	if err != nil {
		logger.Fatal("Failed to init tracer", zap.Error(err))
	}

	if *migrateOnStart {
		if err := db.Migrate(cfg.Postgres.URL, cfg.Postgres.MigrationsDir); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal("Failed to create pool", zap.Error(err))
	}
	defer pool.Close()

	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
	defer func() {
		_ = rdb.Close()
	}()

	producer, err := kafka.NewProducer(cfg.Kafka, logger)
	if err != nil {
		logger.Fatal("Failed to create kafka producer", zap.Error(err))
	}
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Warn("Failed to close kafka producer", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	breakers := breaker.NewRegistry(breaker.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Interval:         cfg.Breaker.Interval,
		Cooldown:         cfg.Breaker.Cooldown,
		IsFailure:        remote.IsTransient,
	}, logger, breaker.WithStateObserver(m.ObserveBreaker))

	identityRemote := mustRemote(client.IdentityService, cfg.Services.IdentityURL, cfg.Services.Timeout, logger, m)
	defer identityRemote.Close()

	catalogRemote := mustRemote(client.CatalogService, cfg.Services.CatalogURL, cfg.Services.Timeout, logger, m)
	defer catalogRemote.Close()

	identityClient := client.NewIdentityClient(identityRemote, breakers.Get(client.IdentityService))
	catalogClient := client.NewCatalogClient(catalogRemote, breakers.Get(client.CatalogService))

	orderRepo := repository.NewOrderRepository(pool, logger)
	outboxRepo := outboxRepository.NewOutboxRepository(logger)

	orderService := service.NewOrderService(service.Deps{
		DB:       pool,
		Orders:   orderRepo,
		Outbox:   outboxRepo,
		Identity: identityClient,
		Catalog:  catalogClient,
		Guard:    service.NewInventoryGuard(catalogClient, logger),
		Audit: audit.Multi(
			audit.NewLogRecorder(logger),
			audit.NewKafkaRecorder(producer, cfg.Kafka.AuditTopic),
		),
		Metrics:    m,
		Logger:     logger,
		OrderTopic: cfg.Kafka.OrderTopic,
	})

	outboxProcessor := worker.NewOutboxProcessor(
		pool,
		outboxRepo,
		producer,
		logger,
		worker.WithBatchSize(cfg.Outbox.BatchSize),
		worker.WithInterval(cfg.Outbox.Interval),
	)
	go outboxProcessor.Start(ctx)

	app := transport.NewApp(cfg.HTTP, cfg.Limiter)
	transport.RegisterRoutes(app, &transport.Handlers{
		Order: handler.NewOrderHandler(
			orderService,
			idempotency.NewStore(rdb, cfg.Redis.IdempotencyTTL),
			logger,
		),
		Health: handler.NewHealthHandler(map[string]handler.Check{
			"postgres": pool.Ping,
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		}),
	}, []byte(cfg.Auth.AccessSecret), registry)

	go func() {
		mylogger.Info(ctx, logger, "HTTP server listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			logger.Fatal("Error listening on HTTP port", zap.String("port", cfg.HTTP.Port), zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down order server")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error shutting down HTTP app", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}
}

func mustRemote(service, rawURL string, timeout time.Duration, logger *zap.Logger, observer remote.Observer) *remote.Client {
	t, err := remote.NewTransport(rawURL)
	if err != nil {
		logger.Fatal("Failed to create remote transport", zap.String("service", service), zap.Error(err))
	}

	return remote.NewClient(service, t, logger, remote.WithTimeout(timeout), remote.WithObserver(observer))
}
