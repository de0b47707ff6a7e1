package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/pressflow/pressflow/internal/api"
	"github.com/pressflow/pressflow/internal/auth"
	"github.com/pressflow/pressflow/internal/config"
	"github.com/pressflow/pressflow/internal/database"
	"github.com/pressflow/pressflow/internal/generation"
	"github.com/pressflow/pressflow/internal/logging"
	"github.com/pressflow/pressflow/internal/metrics"
	"github.com/pressflow/pressflow/internal/scheduler"
	"github.com/pressflow/pressflow/internal/server"
	"github.com/pressflow/pressflow/internal/topics"
	"github.com/pressflow/pressflow/internal/workerpool"
	"github.com/pressflow/pressflow/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting pressflow")

	if cfg.Auth.AdminPasswordHash == "" && cfg.Auth.AdminPassword != "" {
		hash, err := auth.HashPassword(cfg.Auth.AdminPassword)
		if err != nil {
			logger.Error("failed to hash admin password", "error", err)
			os.Exit(1)
		}
		cfg.Auth.AdminPasswordHash = hash
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("connecting to database")
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := database.RunMigrations(db, "./migrations", logger); err != nil {
		logger.Warn("failed to run migrations, continuing anyway", "error", err)
	}

	ruleRepo := database.NewRuleRepository(db)
	topicRepo := database.NewTopicRepository(db)
	logRepo := database.NewExecutionLogRepository(db)

	// Outbound collaborators fall back to mocks when credentials are missing,
	// so a development instance still exercises the full pipeline.
	mock := generation.NewMockGenerator()

	var topicGen generation.TopicGenerator = mock
	var contentGen generation.ContentGenerator = mock
	openaiClient, err := generation.NewOpenAIClient(cfg.OpenAI, logger)
	if err != nil {
		logger.Warn("OpenAI unavailable, using mock generation", "error", err)
	} else {
		topicGen = openaiClient
		contentGen = openaiClient
	}

	var publisher generation.Publisher = mock
	wp, err := generation.NewWordPressPublisher(cfg.WordPress, logger)
	if err != nil {
		logger.Warn("WordPress unavailable, using mock publisher", "error", err)
	} else {
		publisher = wp
	}

	var imageFinder generation.ImageFinder
	pexels, err := generation.NewPexelsImageFinder(cfg.Images, logger)
	if err != nil {
		logger.Warn("image search unavailable, publishing without images", "error", err)
	} else {
		imageFinder = pexels
	}

	var promoter generation.SocialPromoter
	twitter, err := generation.NewTwitterPromoter(cfg.Twitter, logger)
	if err != nil {
		logger.Warn("twitter unavailable, social promotion disabled", "error", err)
	} else {
		promoter = twitter
	}

	notifier := generation.NewLogNotifier(logger)

	pool := workerpool.New(cfg.Scheduler.Workers, cfg.Scheduler.QueueSize, logger)
	defer pool.Stop()

	collector, err := metrics.NewCollector(pool.QueueDepth)
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	topicManager := topics.NewManager(topicRepo, topicGen, logger)

	engine := workflow.NewEngine(topicManager, contentGen, imageFinder, publisher,
		promoter, notifier, logRepo, cfg.Scheduler.StageTimeout, logger)
	engine.SetObserver(collector)

	sched := scheduler.New(ruleRepo, engine, topicManager, logRepo, pool, notifier,
		cfg.Scheduler, logger)
	go sched.Start(ctx)
	defer sched.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	api.SetupRoutes(mux, ruleRepo, logRepo, sched, topicManager, cfg.Auth,
		func() error { return database.HealthCheck(context.Background(), db) }, logger)

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("pressflow stopped")
}
