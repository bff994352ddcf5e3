package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"newbusiness/cleanup"
	"newbusiness/config"
	controller "newbusiness/controllers"
	"newbusiness/importer"
	"newbusiness/middleware"
	"newbusiness/models"
	"newbusiness/routes"
	"newbusiness/syncer"
	"newbusiness/utils"
	"newbusiness/webhook"
	"newbusiness/worker"
)

func main() {
	logger := log.New(os.Stdout, "NEWBUSINESS: ", log.Ldate|log.Ltime|log.Lshortfile)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if err := utils.InitLogging(cfg.Environment, cfg.SentryDSN); err != nil {
		logger.Printf("Sentry disabled: %v", err)
	}
	defer sentry.Flush(2 * time.Second)

	db, err := config.ConnectDB(cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	systemUser, err := models.EnsureSystemUser(db, cfg.SystemPassword)
	if err != nil {
		logger.Fatalf("Failed to ensure system user: %v", err)
	}

	orchestrator, err := syncer.NewOrchestrator(db, syncer.Config{
		Sources:         cfg.Integrations,
		SystemUserID:    systemUser.ID,
		UpstreamTimeout: cfg.UpstreamTimeout,
	})
	if err != nil {
		logger.Fatalf("Failed to build sync orchestrator: %v", err)
	}
	dispatcher := webhook.NewDispatcher(db, webhook.Config{Timeout: cfg.WebhookTimeout})

	app := fiber.New(fiber.Config{
		AppName:   "newbusiness",
		BodyLimit: controller.MaxImportSize + 1024*1024,
	})
	app.Use(recover.New())
	app.Use(middleware.CORS(middleware.ConfigForOrigins(cfg.AllowedOrigins)))

	routes.SetupRoutes(app, routes.Deps{
		DB:           db,
		Config:       cfg,
		Orchestrator: orchestrator,
		Notifier:     webhook.NewNotifier(db, dispatcher),
		Importer:     importer.NewImporter(db, systemUser.ID),
		Cleaner:      cleanup.NewCleaner(db),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncWorker := worker.NewSyncWorker(orchestrator, cfg, log.New(os.Stdout, "SYNC: ", log.LstdFlags))
	go syncWorker.Start(ctx)

	go func() {
		<-ctx.Done()
		logger.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Printf("Server shutdown failed: %v", err)
		}
	}()

	logger.Printf("🚀 Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
