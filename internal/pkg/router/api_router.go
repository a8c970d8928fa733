package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mywallet/mywallet/internal/pkg/middleware"
)

type ApiRouter struct {
	h Handlers
}

func NewApiRouter(h Handlers) *ApiRouter {
	return &ApiRouter{h: h}
}

func (r ApiRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	limit := newLimiter(r.h.LimiterStorage, "api", 120, time.Minute)

	if bc := r.h.Billing; bc != nil {
		// Per route guards: a "/subscription" group middleware would also
		// match "/subscriptions".
		sub := app.Group("/subscription")
		sub.Get("/plans", limit, bc.HandlePlans)
		sub.Post("/subscribe", limit, middleware.RequireUser, bc.HandleSubscribe)
		sub.Get("/status", limit, middleware.RequireUser, bc.HandleStatus)
		sub.Post("/cancel", limit, middleware.RequireUser, bc.HandleCancel)
		sub.Post("/pause", limit, middleware.RequireUser, bc.HandlePause)
		sub.Post("/resume", limit, middleware.RequireUser, bc.HandleResume)
		sub.Get("/history", limit, middleware.RequireUser, bc.HandleHistory)
	}

	if sc := r.h.Subscriptions; sc != nil {
		subs := app.Group("/subscriptions", limit, middleware.RequireProfile(r.h.Profiles))
		subs.Get("/", sc.HandleList)
		subs.Post("/", sc.HandleCreate)
		// static paths before /:id
		subs.Get("/summary", sc.HandleSummary)
		subs.Get("/upcoming", sc.HandleUpcoming)
		subs.Get("/alerts", sc.HandleAlerts)
		subs.Post("/generate", sc.HandleGenerate)
		subs.Get("/:id", sc.HandleGet)
		subs.Put("/:id", sc.HandleUpdate)
		subs.Post("/:id/cancel", sc.HandleCancel)
		subs.Post("/:id/pay", sc.HandlePay)
	}

	internal := app.Group("/internal", middleware.APIKeyAuthMiddleware(r.h.InternalAPIKey))
	if qc := r.h.Queue; qc != nil {
		internal.Get("/queue", qc.HandleQueueStats)
	}
	if st := r.h.Statistics; st != nil {
		internal.Get("/statistics", st.HandleStatistics)
	}
}
