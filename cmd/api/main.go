package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/evalio/evalio-api/internal/config"
	"github.com/evalio/evalio-api/internal/database"
	"github.com/evalio/evalio-api/internal/handler"
	"github.com/evalio/evalio-api/internal/middleware"
	"github.com/evalio/evalio-api/internal/models"
	"github.com/evalio/evalio-api/internal/repository"
	"github.com/evalio/evalio-api/internal/router"
	"github.com/evalio/evalio-api/internal/service"
	"github.com/evalio/evalio-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Exercise{},
		&models.Correction{},
		&models.Submission{},
		&models.AIModel{},
		&models.AIPromptTemplate{},
		&models.EvaluationJob{},
		&models.Evaluation{},
		&models.FeedbackCategory{},
		&models.FeedbackItem{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis and NATS carry live status events; both are optional so a
	// minimal deployment can run on the database alone.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	jobRepo := repository.NewEvaluationJobRepository(db)
	registryRepo := repository.NewRegistryRepository(db)

	clients := map[string]ai.Client{
		models.ProviderOllama: ai.NewOllamaClient(ai.OllamaConfig{Timeout: cfg.InferenceTimeout, Logger: logger}),
		models.ProviderOpenAI: ai.NewOpenAIClient(ai.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, Logger: logger}),
	}

	notifier := service.NewStatusNotifier(redisClient, natsConn, cfg.EventChannel, cfg.StatusCacheTTL, logger)
	evaluationService := service.NewEvaluationService(
		submissionRepo, evaluationRepo, jobRepo, registryRepo,
		clients, validate, notifier, logger,
		service.EvaluationConfig{InferenceTimeout: cfg.InferenceTimeout},
	)
	seedService := service.NewSeedService(registryRepo, cfg.SeedEnabled, cfg.SeedToken, logger)

	evaluationHandler := handler.NewEvaluationHandler(evaluationService, submissionRepo, notifier, logger)
	seedHandler := handler.NewSeedHandler(seedService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		EvaluationHandler: evaluationHandler,
		SeedHandler:       seedHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if cfg.SweepInterval > 0 {
		go runSweeper(sweepCtx, evaluationService, cfg.SweepInterval, cfg.SweepLimit, logger)
	}

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

// runSweeper periodically picks up submissions that were never evaluated,
// covering triggers lost to crashes or queue gaps.
func runSweeper(ctx context.Context, evaluations service.EvaluationService, interval time.Duration, limit int, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			succeeded := evaluations.EvaluatePending(ctx, limit)
			if succeeded > 0 {
				logger.Info().Int("succeeded", succeeded).Msg("background sweep evaluated submissions")
			}
		}
	}
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
