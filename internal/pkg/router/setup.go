package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mywallet/mywallet/app/controllers"
	"github.com/mywallet/mywallet/internal/pkg/middleware"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Handlers bundles the controllers and guards the routes are built from.
type Handlers struct {
	Billing        *controllers.BillingController
	Subscriptions  *controllers.SubscriptionController
	Queue          *controllers.QueueController
	Statistics     *controllers.StatisticsController
	Profiles       middleware.ProfileChecker
	InternalAPIKey string
	// LimiterStorage backs the rate limiters. Nil keeps counters in memory.
	LimiterStorage fiber.Storage
}

func InstallRouter(app *fiber.App, h Handlers) {
	// Identity must be resolved before any guarded group runs.
	app.Use(middleware.UserContextMiddleware)

	setup(app, NewWebhookRouter(h), NewApiRouter(h))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
