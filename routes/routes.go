package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
	"newbusiness/cleanup"
	"newbusiness/config"
	controller "newbusiness/controllers"
	"newbusiness/importer"
	"newbusiness/middleware"
	"newbusiness/syncer"
	"newbusiness/webhook"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	DB           *gorm.DB
	Config       *config.Config
	Orchestrator *syncer.Orchestrator
	Notifier     *webhook.Notifier
	Importer     *importer.Importer
	Cleaner      *cleanup.Cleaner
}

func requestLogger() fiber.Handler {
	return logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	})
}

func SetupAuthRoutes(app *fiber.App, deps Deps) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)
	authController := controller.NewAuthController(deps.DB, authLogger, deps.Config.JWTSecret)

	auth := app.Group("/auth", requestLogger())
	auth.Post("/login", authController.Login)

	auth.Get("/me", middleware.Protected(deps.DB, deps.Config.JWTSecret), authController.GetCurrentUser)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupIntegrationRoutes(app *fiber.App, deps Deps) {
	integrationController := controller.NewIntegrationController(
		deps.DB,
		log.New(os.Stdout, "SYNC: ", log.LstdFlags),
		deps.Config,
		deps.Orchestrator,
	)

	integrations := app.Group("/api/integrations", requestLogger())

	// Inbound webhooks authenticate by signature, not by operator token
	integrations.Post("/webhook/:source",
		middleware.WebhookRateLimiter(deps.Config.WebhookRateMax, deps.Config.Redis),
		integrationController.ReceiveWebhook,
	)

	protect := middleware.Protected(deps.DB, deps.Config.JWTSecret)
	integrations.Get("/sync/progress", protect, websocket.New(integrationController.SyncProgressWS))
	integrations.Get("/sync/runs", protect, integrationController.ListSyncRuns)
	integrations.Post("/sync/:source", protect, integrationController.TriggerSync)

	log.Println("Integration routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, deps Deps) {
	advertiserController := controller.NewAdvertiserController(deps.DB, log.New(os.Stdout, "ADVERTISER: ", log.LstdFlags))
	contactController := controller.NewContactController(deps.DB, log.New(os.Stdout, "CONTACT: ", log.LstdFlags), deps.Notifier)
	webhookController := controller.NewWebhookController(deps.DB, log.New(os.Stdout, "WEBHOOK: ", log.LstdFlags), deps.Config)
	importController := controller.NewImportController(deps.DB, log.New(os.Stdout, "IMPORT: ", log.LstdFlags), deps.Importer, deps.Cleaner)
	dashboardController := controller.NewDashboardController(deps.DB, log.New(os.Stdout, "DASHBOARD: ", log.LstdFlags))

	api := app.Group("/api/v1", middleware.Protected(deps.DB, deps.Config.JWTSecret), requestLogger())

	api.Get("/dashboard/stats", dashboardController.GetDashboardStats)

	// Advertiser routes
	advertiser := api.Group("/advertisers")
	advertiser.Get("/", advertiserController.GetAdvertisers)
	advertiser.Get("/agencies", advertiserController.GetAgencies)
	advertiser.Get("/:id", advertiserController.GetAdvertiser)
	advertiser.Delete("/:id", advertiserController.DeleteAdvertiser)
	advertiser.Put("/:id/status", advertiserController.UpdateStatus)
	advertiser.Get("/:id/history", advertiserController.GetStatusHistory)
	advertiser.Get("/:id/spending", advertiserController.GetSpending)
	advertiser.Put("/:id/spending/:year/net-total", advertiserController.SetNetTotal)
	advertiser.Get("/:id/activities", advertiserController.GetActivities)
	advertiser.Post("/:id/activities", advertiserController.CreateActivity)

	// Contact routes
	contact := api.Group("/contacts")
	contact.Get("/:id", contactController.GetContact)
	contact.Put("/:id", contactController.UpdateContact)
	contact.Get("/:id/advertisers", contactController.GetRelatedAdvertisers)

	// Webhook routes
	hooks := api.Group("/webhooks", middleware.AdminOnly())
	hooks.Get("/", webhookController.GetWebhooks)
	hooks.Post("/", webhookController.CreateWebhook)
	hooks.Post("/bidirectional", webhookController.SetupBidirectional)
	hooks.Put("/:id", webhookController.UpdateWebhook)
	hooks.Delete("/:id", webhookController.DeleteWebhook)
	hooks.Get("/:id/logs", webhookController.GetWebhookLogs)

	// Import and maintenance routes
	imports := api.Group("/import")
	imports.Post("/spending", importController.ImportSpending)
	imports.Post("/sweep", importController.SweepLeadStatuses)

	maintenance := api.Group("/maintenance", middleware.AdminOnly())
	maintenance.Post("/cleanup-duplicates", importController.CleanupDuplicates)

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, deps Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		if sqlDB, err := deps.DB.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	SetupAuthRoutes(app, deps)
	SetupIntegrationRoutes(app, deps)
	SetupAPIRoutes(app, deps)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
