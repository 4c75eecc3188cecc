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

	"github.com/veriq-app/veriq-go-api/internal/config"
	"github.com/veriq-app/veriq-go-api/internal/database"
	"github.com/veriq-app/veriq-go-api/internal/handler"
	"github.com/veriq-app/veriq-go-api/internal/models"
	"github.com/veriq-app/veriq-go-api/internal/observability"
	"github.com/veriq-app/veriq-go-api/internal/repository"
	"github.com/veriq-app/veriq-go-api/internal/router"
	"github.com/veriq-app/veriq-go-api/internal/service"
	"github.com/veriq-app/veriq-go-api/internal/worker"
	"github.com/veriq-app/veriq-go-api/pkg/ai"
	cloud "github.com/veriq-app/veriq-go-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	observability.RegisterMetrics()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Question{},
		&models.Expert{},
		&models.QueueEntry{},
		&models.Answer{},
		&models.VeracityScore{},
		&models.PaymentTransaction{},
		&models.ExpertRanking{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		// Notifications degrade to Redis pubsub only.
		logger.Warn().Err(err).Msg("nats unavailable, assignment offers go through redis only")
		natsConn = nil
	} else {
		defer natsConn.Close()
	}

	var assessor ai.Assessor
	var extractor ai.Extractor
	if cfg.OpenAIAPIKey != "" {
		aiClient, err := ai.NewOpenAIClient(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.AIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create ai client: %v", err)
		}
		assessor = aiClient
		extractor = aiClient
	} else {
		logger.Warn().Msg("no openai api key, running with degraded scoring and keyword extraction")
	}

	var documentService service.DocumentService
	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		documentService = service.NewDocumentService(uploader, logger)
	} else {
		logger.Warn().Msg("no cloudinary credentials, document uploads disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	questionRepo := repository.NewQuestionRepository(db)
	expertRepo := repository.NewExpertRepository(db)
	queueRepo := repository.NewQueueRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	rankingRepo := repository.NewRankingRepository(db)

	notifier := service.NewNotificationSender(natsConn, redisClient, "veriq", logger)
	queueService := service.NewQueueService(questionRepo, queueRepo, expertRepo, extractor, notifier, cfg.ResponseWindow, cfg.QueueSize, logger)
	questionService := service.NewQuestionService(questionRepo, queueRepo, queueService, validate, logger)
	settlementService := service.NewSettlementService(answerRepo, questionRepo, queueRepo, txnRepo, rankingRepo, queueService, assessor, validate, cfg.ExpertShare, cfg.StuckWindow, logger)
	rankingService := service.NewRankingService(rankingRepo, answerRepo, redisClient, cfg.LeaderboardCacheTTL, logger)
	sweeper := service.NewExpirySweeper(questionRepo, queueRepo, rankingRepo, queueService, logger)

	runner := worker.NewRunner(logger)
	runner.Add(worker.JobFunc{JobName: "expiry_sweeper", Fn: sweeper.Sweep}, cfg.SweepInterval)
	runner.Add(worker.JobFunc{JobName: "stuck_settlement_retry", Fn: settlementService.RecoverStuck}, cfg.RetryInterval)
	runner.Add(worker.JobFunc{JobName: "ranking_aggregator", Fn: rankingService.Recompute}, cfg.AggregateInterval)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	runner.Start(workerCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	router.Register(app, cfg, router.Dependencies{
		QuestionHandler:    handler.NewQuestionHandler(questionService, queueService, logger),
		AnswerHandler:      handler.NewAnswerHandler(settlementService, documentService, logger),
		LeaderboardHandler: handler.NewLeaderboardHandler(rankingService, logger),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopWorkers)
}

func waitForShutdown(app *fiber.App, stopWorkers context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
