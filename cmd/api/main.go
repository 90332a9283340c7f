package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/crisiscoach-go-api/internal/catalog"
	"github.com/noah-isme/crisiscoach-go-api/internal/config"
	"github.com/noah-isme/crisiscoach-go-api/internal/database"
	"github.com/noah-isme/crisiscoach-go-api/internal/handler"
	"github.com/noah-isme/crisiscoach-go-api/internal/middleware"
	"github.com/noah-isme/crisiscoach-go-api/internal/repository"
	"github.com/noah-isme/crisiscoach-go-api/internal/router"
	"github.com/noah-isme/crisiscoach-go-api/internal/service"
	"github.com/noah-isme/crisiscoach-go-api/pkg/ai"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "crisiscoach-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "development" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	scenarios, err := catalog.Default()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load scenario catalog")
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured, sessions are kept in memory")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, events go to redis only")
		} else {
			defer natsConn.Drain()
		}
	}

	var coach ai.Coach
	if cfg.CoachEnabled() {
		openAICoach, err := ai.NewOpenAICoach(ai.OpenAIConfig{
			APIKey:   cfg.OpenAIAPIKey,
			BaseURL:  cfg.AIBaseURL,
			Model:    cfg.AIModel,
			Timeout:  cfg.AITimeout,
			JSONMode: cfg.AIJSONMode,
			Logger:   logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create coach client")
		}
		coach = openAICoach
	} else {
		logger.Warn().Str("provider", cfg.AIProvider).Msg("coach disabled, every answer receives fallback feedback")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	var sessionStore repository.QuizSessionStore
	if redisClient != nil {
		sessionStore = repository.NewRedisQuizSessionStore(redisClient, "crisiscoach", cfg.SessionTTL)
	} else {
		sessionStore = repository.NewMemoryQuizSessionStore(cfg.SessionTTL)
	}
	decisionLogRepo := repository.NewDecisionLogRepository(db)
	progressRepo := repository.NewUserProgressRepository(db)

	events := service.NewEventPublisher(redisClient, "crisiscoach", natsConn, logger)
	reportService := service.NewReportService(decisionLogRepo, redisClient, cfg.ReportCacheTTL, logger)
	evaluationService := service.NewEvaluationService(coach, decisionLogRepo, reportService, events, logger)
	progressService := service.NewProgressService(progressRepo, scenarios, logger)
	quizService := service.NewQuizService(sessionStore, scenarios, evaluationService, progressService, events, validate, service.QuizConfig{
		QuestionSeconds: cfg.QuestionSeconds,
	}, logger)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go service.NewCountdownWorker(quizService, time.Second, 0, logger).Run(workerCtx)

	healthChecks := map[string]handler.HealthCheckFunc{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, router.Dependencies{
		EvaluateHandler: handler.NewEvaluateHandler(evaluationService, validate, logger),
		CategoryHandler: handler.NewCategoryHandler(scenarios, progressService, logger),
		QuizHandler:     handler.NewQuizHandler(quizService, logger),
		ProgressHandler: handler.NewProgressHandler(progressService, reportService, logger),
		HealthChecks:    healthChecks,
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, stopWorker, logger)
}

func waitForShutdown(app *fiber.App, stopWorker context.CancelFunc, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
