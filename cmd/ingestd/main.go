// Command ingestd runs the ingestion core as a long-lived daemon: the
// extraction worker pool, the webhook dispatcher, and the maintenance
// scheduler, all sharing one Store and one event bus.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/cinco36/iv-ingestion/audit_hook"
	"github.com/cinco36/iv-ingestion/backoff"
	"github.com/cinco36/iv-ingestion/blob"
	"github.com/cinco36/iv-ingestion/config"
	"github.com/cinco36/iv-ingestion/cron"
	"github.com/cinco36/iv-ingestion/dlq"
	"github.com/cinco36/iv-ingestion/eventbus"
	"github.com/cinco36/iv-ingestion/ext"
	"github.com/cinco36/iv-ingestion/extract"
	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/intake"
	"github.com/cinco36/iv-ingestion/middleware"
	"github.com/cinco36/iv-ingestion/observability"
	"github.com/cinco36/iv-ingestion/parser"
	"github.com/cinco36/iv-ingestion/queue"
	"github.com/cinco36/iv-ingestion/ratelimit"
	"github.com/cinco36/iv-ingestion/store"
	"github.com/cinco36/iv-ingestion/store/memory"
	"github.com/cinco36/iv-ingestion/store/postgres"
	"github.com/cinco36/iv-ingestion/webhook"
	"github.com/cinco36/iv-ingestion/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := initLogger(cfg)
	logger.Info("starting ingestd", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := initStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	logger.Info("store ready", slog.String("driver", cfg.StoreDriver))

	blobStore, err := initBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}

	extensions := ext.NewRegistry(logger)

	metricsExt, err := observability.NewMetricsExtension()
	if err != nil {
		return fmt.Errorf("init metrics extension: %w", err)
	}
	extensions.Register(metricsExt)

	auditExt := audithook.New(auditLogRecorder(logger))
	extensions.Register(auditExt)

	broker := eventbus.NewBroker(logger)
	extensions.Register(broker)

	pipeline := extract.NewPipeline(
		buildParserRegistry(),
		blobStore,
		st,
		broker,
		st,
		extract.WithLogger(logger),
		extract.WithLeaseExtension(cfg.LeaseDuration),
	)

	dlqService := dlq.NewService(st, st)

	executor := worker.NewExecutor(
		pipeline,
		extensions,
		st,
		dlqService,
		backoff.NewSchedule(),
		broker,
		logger,
		middleware.Recover(logger),
		middleware.Logging(logger),
		middleware.Tenant(),
		middleware.Tracing(),
		middleware.Metrics(),
	)

	queueManager := buildQueueManager()

	pool := worker.NewPool(st, executor, extensions, logger,
		worker.WithPoolConcurrency(cfg.WorkerConcurrency),
		worker.WithLeaseDuration(cfg.LeaseDuration),
		worker.WithHeartbeatInterval(cfg.HeartbeatInterval),
		worker.WithReapInterval(cfg.ReapInterval),
		worker.WithQueueManager(queueManager),
	)

	rlCfg := ratelimit.DefaultConfig()
	rlCfg.FailClosed = cfg.RatelimitFailClosed
	limiter := ratelimit.NewLimiter(st, rlCfg, ratelimit.WithLogger(logger))

	intakeSvc := intake.NewService(limiter, blobStore, st, extensions, logger)

	var intakeWatcher *intake.Watcher
	if cfg.IntakeWatchDir != "" {
		tenantID, err := id.Parse(cfg.IntakeTenantID)
		if err != nil {
			return fmt.Errorf("parse INGESTD_INTAKE_TENANT_ID: %w", err)
		}
		intakeWatcher = intake.NewWatcher(intakeSvc, cfg.IntakeWatchDir, tenantID,
			ratelimit.Tier(cfg.IntakeTier), cfg.IntakePollInterval, logger)
	}

	dispatcher := webhook.NewDispatcher(st, extensions, broker, logger,
		webhook.WithConcurrency(cfg.WebhookConcurrency),
		webhook.WithMaxAttempts(cfg.WebhookMaxAttempts),
	)

	scheduler := cron.NewScheduler(st, st,
		cron.WithDLQPurgeSchedule(cfg.CronDLQPurgeSchedule, cfg.CronDLQRetention),
		cron.WithRateLimitReapSchedule(cfg.CronRateLimitSchedule, cfg.CronRateLimitRetention),
		cron.WithLogger(logger),
	)

	errCh := make(chan error, 2)
	if err := pool.Start(ctx); err != nil {
		errCh <- fmt.Errorf("worker pool: %w", err)
	}
	if err := scheduler.Start(ctx); err != nil {
		errCh <- fmt.Errorf("maintenance scheduler: %w", err)
	}
	dispatcher.Start(ctx)
	if intakeWatcher != nil {
		if err := intakeWatcher.Start(ctx); err != nil {
			errCh <- fmt.Errorf("intake watcher: %w", err)
		}
	}

	logger.Info("ingestd started",
		slog.Int("worker_concurrency", cfg.WorkerConcurrency),
		slog.Int("webhook_concurrency", cfg.WebhookConcurrency),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("component error, shutting down", slog.String("error", err.Error()))
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		if intakeWatcher != nil {
			_ = intakeWatcher.Stop(shutdownCtx)
		}
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("scheduler stop error", slog.String("error", err.Error()))
		}
		dispatcher.Stop()
		_ = pool.Stop(shutdownCtx)
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, exiting anyway")
	}

	if err := st.Close(); err != nil {
		logger.Warn("error closing store", slog.String("error", err.Error()))
	}

	return nil
}

// initLogger builds the process-wide slog.Logger: tint's colorized
// handler in dev, stdlib JSON in every other environment.
func initLogger(cfg *config.Config) *slog.Logger {
	if cfg.Env == "dev" {
		handler := tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		})
		return slog.New(handler)
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler)
}

func initStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		return postgres.New(ctx, cfg.PostgresDSN, postgres.WithLogger(logger))
	default:
		return memory.New(), nil
	}
}

func initBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.BlobDriver {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return blob.NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix), nil
	default:
		if err := os.MkdirAll(cfg.BlobLocalDir, 0o755); err != nil {
			return nil, fmt.Errorf("create blob dir: %w", err)
		}
		return blob.NewLocalStore(cfg.BlobLocalDir), nil
	}
}

// buildParserRegistry wires every document parser this module ships
// against the declared kinds it handles. ImageParser is the shared
// fallback chained under any primary parser whose output text falls
// below the registry's minimum length, so scanned image-heavy PDFs
// still fall through to OCR.
func buildParserRegistry() *parser.Registry {
	reg := parser.NewRegistry(parser.NewImageParser())
	reg.Register(parser.NewPDFParser(), "pdf")
	reg.Register(parser.NewXLSXParser(), "xls", "xlsx")
	reg.Register(parser.NewCSVParser(), "csv")
	reg.Register(parser.NewImageParser(), "jpg", "jpeg", "png", "tiff", "bmp")
	return reg
}

// buildQueueManager applies per-kind concurrency gates to the heavier
// parse paths (PDF/image parsing is CPU-bound; spreadsheet/CSV parsing
// is cheap and left ungated).
func buildQueueManager() *queue.Manager {
	return queue.NewManager(
		queue.Config{Name: "pdf", MaxConcurrency: 4},
		queue.Config{Name: "jpg", MaxConcurrency: 4},
		queue.Config{Name: "jpeg", MaxConcurrency: 4},
		queue.Config{Name: "png", MaxConcurrency: 4},
	)
}

// auditLogRecorder adapts the structured logger into an audit_hook.Recorder
// until a durable audit backend is wired in; every audit event is still
// emitted, just to the process log rather than a separate store.
func auditLogRecorder(logger *slog.Logger) audithook.RecorderFunc {
	return func(_ context.Context, event *audithook.AuditEvent) error {
		logger.Info("audit event",
			slog.String("action", event.Action),
			slog.String("resource", event.Resource),
			slog.String("outcome", event.Outcome),
		)
		return nil
	}
}
