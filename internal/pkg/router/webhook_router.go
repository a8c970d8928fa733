package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// WebhookRouter serves inbound gateway notifications. Authentication is the
// signature check inside the controller.
type WebhookRouter struct {
	h Handlers
}

func NewWebhookRouter(h Handlers) *WebhookRouter {
	return &WebhookRouter{h: h}
}

func (r WebhookRouter) InstallRouter(app *fiber.App) {
	if r.h.Billing == nil {
		return
	}
	hooks := app.Group("/webhooks", newLimiter(r.h.LimiterStorage, "webhooks", 300, time.Minute))
	hooks.Post("/payment-gateway", r.h.Billing.HandleWebhook)
}
