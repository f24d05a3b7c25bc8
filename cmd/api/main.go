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

	"github.com/noah-isme/ora-go-api/internal/config"
	"github.com/noah-isme/ora-go-api/internal/database"
	"github.com/noah-isme/ora-go-api/internal/events"
	"github.com/noah-isme/ora-go-api/internal/handler"
	"github.com/noah-isme/ora-go-api/internal/middleware"
	"github.com/noah-isme/ora-go-api/internal/models"
	"github.com/noah-isme/ora-go-api/internal/repository"
	"github.com/noah-isme/ora-go-api/internal/router"
	"github.com/noah-isme/ora-go-api/internal/service"
	"github.com/noah-isme/ora-go-api/pkg/ai"
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
		&models.StudentItem{},
		&models.Submission{},
		&models.Rubric{},
		&models.Criterion{},
		&models.CriterionOption{},
		&models.Assessment{},
		&models.AssessmentPart{},
		&models.PeerWorkflow{},
		&models.PeerWorkflowItem{},
		&models.AssessmentWorkflow{},
		&models.AssessmentWorkflowStep{},
		&models.AssessmentWorkflowCancellation{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

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
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	publisher := events.NewNopPublisher()
	if natsConn != nil {
		publisher = events.NewNATSPublisher(natsConn, cfg.EventSubjectBase, logger)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	rubricRepo := repository.NewRubricRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	peerRepo := repository.NewPeerRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)

	scoreService := service.NewScoreService(assessmentRepo, logger)
	workflowService := service.NewWorkflowService(workflowRepo, assessmentRepo, peerRepo, scoreService, publisher, redisClient, service.WorkflowServiceConfig{
		StaffOverride: cfg.StaffOverride,
		CacheTTL:      cfg.WorkflowCacheTTL,
	}, logger)
	assessmentService := service.NewAssessmentService(assessmentRepo, submissionRepo, rubricRepo, workflowService, publisher, validate, logger)
	submissionService := service.NewSubmissionService(submissionRepo, peerRepo, workflowService, publisher, validate, logger)
	peerService := service.NewPeerService(peerRepo, submissionRepo, assessmentRepo, rubricRepo, workflowService, publisher, validate, service.PeerServiceConfig{
		ClaimTTL:     cfg.PeerClaimTTL,
		ClaimRetries: cfg.PeerClaimRetries,
	}, logger)

	var grader ai.Grader
	if cfg.AIProvider == "openai" && cfg.OpenAIAPIKey != "" {
		openAIGrader, err := ai.NewOpenAIGrader(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.AIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create openai grader: %v", err)
		}
		grader = openAIGrader
	}
	aiGradingService := service.NewAIGradingService(grader, submissionRepo, assessmentService, validate, logger)

	consumer := events.NewConsumer(natsConn, cfg.EventSubjectBase, workflowService, logger)
	if err := consumer.Start(context.Background()); err != nil {
		log.Fatalf("failed to start event consumer: %v", err)
	}
	defer consumer.Close()

	submissionHandler := handler.NewSubmissionHandler(submissionService)
	assessmentHandler := handler.NewAssessmentHandler(assessmentService, aiGradingService)
	peerHandler := handler.NewPeerHandler(peerService)
	workflowHandler := handler.NewWorkflowHandler(workflowService)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: submissionHandler,
		AssessmentHandler: assessmentHandler,
		PeerHandler:       peerHandler,
		WorkflowHandler:   workflowHandler,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
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
