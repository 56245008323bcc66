package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"legalcase/internal/analyzer"
	"legalcase/internal/config"
	"legalcase/internal/database"
	"legalcase/internal/database/migration"
	"legalcase/internal/events"
	handlers "legalcase/internal/http/handler"
	"legalcase/internal/http/middleware"
	"legalcase/internal/otel"
	"legalcase/internal/realtime"
	"legalcase/internal/repository/postgres"
	"legalcase/internal/service"
	"legalcase/internal/storage"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	loc := time.Local

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, loc, cfg.Database.Host); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	analyzerClient := analyzer.NewClient(cfg.Analyzer)

	// Repositories.
	caseRepo := postgres.NewCasePostgres(db)
	eventLogRepo := postgres.NewEventLogPostgres(db)

	// Event bus: the hub receives a notification after every published event
	// and pushes a fresh case snapshot to SSE subscribers.
	registry := events.NewRegistry()
	hub := realtime.NewHub(cfg.StreamBufferSize)
	publisher := events.NewPublisher(caseRepo, eventLogRepo, registry, hub, 0)

	runner := events.NewAsyncRunner(ctx)

	// Services.
	caseSvc := service.NewCaseService(caseRepo, publisher, objStore, cfg.PresignExpiry)
	docSvc := service.NewDocumentService(caseRepo, objStore, analyzerClient, publisher, runner, cfg.PresignExpiry)
	analysisSvc := service.NewAnalysisService(caseRepo, eventLogRepo, publisher, cfg.MinAnalysisInterval)
	formSvc := service.NewFormValueService(caseRepo, eventLogRepo, publisher)
	questionnaireSvc := service.NewQuestionnaireService(caseRepo, objStore, publisher)
	eventLogSvc := service.NewEventLogService(caseRepo, eventLogRepo)
	notifications := service.NewLogNotificationService()

	// The SSE snapshot is the same enriched view the GET endpoint serves.
	hub.BindSnapshot(func(ctx context.Context, caseID string) (any, error) {
		return caseSvc.Get(ctx, caseID)
	})

	service.NewCaseEventHandlers(caseRepo, publisher, analysisSvc, notifications).Register(registry)

	// Async event worker: drains the publisher inbox until shutdown.
	worker := publisher.NewWorker()
	go func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("event worker stopped: %v", err)
		}
	}()

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())

	promMW, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register prometheus metrics: %v", err)
	}
	app.Use(promMW.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.RegisterRoutes(app, db, handlers.Services{
		Cases:          caseSvc,
		Documents:      docSvc,
		Questionnaires: questionnaireSvc,
		FormValues:     formSvc,
		EventLog:       eventLogSvc,
	}, hub)

	go func() {
		<-ctx.Done()
		log.Println("shutting down")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	addr := ":" + cfg.Port
	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}

	// Let in-flight analysis goroutines and the tracer flush before exit.
	runner.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("failed to shut down tracing: %v", err)
	}
}
