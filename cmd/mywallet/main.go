package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/mywallet/mywallet/app/controllers"
	"github.com/mywallet/mywallet/app/repository"
	"github.com/mywallet/mywallet/internal/pkg/archive"
	"github.com/mywallet/mywallet/internal/pkg/billing"
	"github.com/mywallet/mywallet/internal/pkg/cache"
	"github.com/mywallet/mywallet/internal/pkg/database"
	"github.com/mywallet/mywallet/internal/pkg/env"
	"github.com/mywallet/mywallet/internal/pkg/jobqueue"
	"github.com/mywallet/mywallet/internal/pkg/recurring"
	"github.com/mywallet/mywallet/internal/pkg/router"
	"github.com/mywallet/mywallet/internal/pkg/statistics"
)

func main() {
	app, manager := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("[Server] Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Errorf("[Server] Shutdown error: %v", err)
		}
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Errorf("[Server] Listen error: %v", err)
	}
	manager.Stop()
}

func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	cfg, err := billing.LoadConfig()
	if err != nil {
		log.Fatalf("[Billing] Invalid configuration: %v", err)
	}
	if cfg.AccessToken == "" {
		log.Warn("[Billing] MP_ACCESS_TOKEN not set, gateway calls will fail")
	}

	gateway := billing.NewMercadoPagoClient(cfg)
	refs := billing.NewReferenceCodec(cfg.ReferenceSecret)
	plans := billing.NewPlanRegistry(repos.Setting, gateway)
	service := billing.NewServiceFromDB(db, gateway, plans, refs)
	reconciler := billing.NewReconcilerFromDB(db, gateway, refs)
	engine := recurring.NewEngineFromDB(db)

	deps := jobqueue.Dependencies{
		Webhooks: reconciler,
		Charges:  engine,
	}
	archiver, err := archive.NewClientFromEnv(context.Background())
	switch {
	case err == nil:
		deps.Archive = archiver
	case errors.Is(err, archive.ErrDisabled):
	default:
		log.Errorf("[Archive] Payload archive disabled: %v", err)
	}

	manager := jobqueue.GetManager()
	manager.Configure(deps)
	if err := manager.Start(); err != nil {
		log.Fatalf("[JobQueue] Failed to start: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:   "mywallet",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	if specPath := findDocsPath(); specPath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: specPath,
			Path:     "v1",
		}))
	} else {
		log.Warn("[Server] OpenAPI document not found, /docs/api/v1 disabled")
	}

	// ROUTER
	router.InstallRouter(app, router.Handlers{
		Billing: controllers.NewBillingController(service, reconciler, manager, controllers.WebhookConfig{
			Secret:        cfg.WebhookSecret,
			Tolerance:     cfg.SignatureTolerance,
			AllowUnsigned: env.IsDev(),
		}),
		Subscriptions:  controllers.NewSubscriptionController(engine),
		Queue:          controllers.NewQueueController(manager.GetQueue()),
		Statistics:     controllers.NewStatisticsController(statistics.NewService(statistics.NewGormSource(db, repos.User))),
		Profiles:       repos.Profile,
		InternalAPIKey: env.GetEnv("INTERNAL_API_KEY", ""),
		LimiterStorage: router.NewLimiterStorage(),
	})

	return app, manager
}

func findDocsPath() string {
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/mywallet to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		candidate := path + "public/docs/v1/openapi.yml"
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
