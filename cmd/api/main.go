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
	"github.com/rs/zerolog"

	"github.com/openvbs/arbiter/internal/config"
	"github.com/openvbs/arbiter/internal/database"
	"github.com/openvbs/arbiter/internal/engine"
	"github.com/openvbs/arbiter/internal/handler"
	"github.com/openvbs/arbiter/internal/middleware"
	"github.com/openvbs/arbiter/internal/models"
	"github.com/openvbs/arbiter/internal/repository"
	"github.com/openvbs/arbiter/internal/router"
	"github.com/openvbs/arbiter/internal/service"
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

	if err := db.AutoMigrate(&models.Evaluation{}, &models.EvaluationTeam{}, &models.TaskRun{}, &models.Submission{}, &models.AuditEntry{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NatsURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Drain()

	validate := validator.New(validator.WithRequiredStructEnabled())

	evaluationRepo := repository.NewEvaluationRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	executor := engine.NewExecutor(cfg.DeadlineInterval, logger)
	boards := service.NewScoreboardRegistry()

	auditService := service.NewAuditService(auditRepo, natsConn, cfg.AuditSubject, logger)
	runService := service.NewRunService(executor, evaluationRepo, auditService, boards, validate, logger)
	submissionService := service.NewSubmissionService(executor, submissionRepo, auditService, validate, logger)
	scoreService := service.NewScoreService(executor, boards, redisClient, cfg.ScoreCacheTTL, logger)

	runHandler := handler.NewRunHandler(runService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)
	scoreHandler := handler.NewScoreHandler(scoreService, logger)
	auditHandler := handler.NewAuditHandler(auditService, logger)
	viewerHandler := handler.NewViewerHandler(executor, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RunHandler:        runHandler,
		SubmissionHandler: submissionHandler,
		ScoreHandler:      scoreHandler,
		AuditHandler:      auditHandler,
		ViewerHandler:     viewerHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	pollCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	go executor.Run(pollCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopPoller)
}

func waitForShutdown(app *fiber.App, stopPoller context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopPoller()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
