package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/mywallet/mywallet/app/models"
	"github.com/mywallet/mywallet/internal/pkg/billing"
	"github.com/mywallet/mywallet/internal/pkg/usercontext"
)

// GatewaySubscriptions is the user facing plan purchase API.
type GatewaySubscriptions interface {
	Plans(ctx context.Context) []billing.PlanView
	Subscribe(ctx context.Context, userID, planType, cardTokenID string) (*billing.SubscribeResult, error)
	Status(ctx context.Context, userID string) (*billing.StatusView, error)
	Cancel(ctx context.Context, userID string) (*billing.StatusView, error)
	Pause(ctx context.Context, userID string) (*billing.GatewaySubscription, error)
	Resume(ctx context.Context, userID string) (*billing.GatewaySubscription, error)
	History(ctx context.Context, userID string) ([]models.PaymentHistory, error)
}

// WebhookJournal persists webhook deliveries.
type WebhookJournal interface {
	RecordWebhookEvent(ctx context.Context, in billing.WebhookEventInput) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error
}

// WebhookDispatcher hands journaled events to background processing.
type WebhookDispatcher interface {
	DispatchWebhook(webhookEventID uint, eventType, resourceID string)
	ArchivePayload(provider, eventID string, receivedAt time.Time, body []byte)
}

// WebhookConfig controls signature enforcement on the webhook endpoint.
// AllowUnsigned only takes effect while no secret is configured.
type WebhookConfig struct {
	Secret        string
	Tolerance     time.Duration
	AllowUnsigned bool
}

type BillingController struct {
	service    GatewaySubscriptions
	journal    WebhookJournal
	dispatcher WebhookDispatcher
	webhook    WebhookConfig
	now        func() time.Time
}

func NewBillingController(service GatewaySubscriptions, journal WebhookJournal, dispatcher WebhookDispatcher, cfg WebhookConfig) *BillingController {
	return &BillingController{
		service:    service,
		journal:    journal,
		dispatcher: dispatcher,
		webhook:    cfg,
		now:        time.Now,
	}
}

type subscribeRequest struct {
	PlanType    string `json:"planType" validate:"required"`
	CardTokenID string `json:"cardTokenId"`
}

// HandlePlans lists the plan catalog.
func (bc *BillingController) HandlePlans(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"plans": bc.service.Plans(c.UserContext())})
}

// HandleSubscribe starts a plan purchase for the caller.
func (bc *BillingController) HandleSubscribe(c *fiber.Ctx) error {
	var req subscribeRequest
	if handled, err := parseAndValidate(c, &req); handled {
		return err
	}
	result, err := bc.service.Subscribe(c.UserContext(), usercontext.GetUserID(c), req.PlanType, req.CardTokenID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (bc *BillingController) HandleStatus(c *fiber.Ctx) error {
	status, err := bc.service.Status(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(status)
}

func (bc *BillingController) HandleCancel(c *fiber.Ctx) error {
	status, err := bc.service.Cancel(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(status)
}

func (bc *BillingController) HandlePause(c *fiber.Ctx) error {
	sub, err := bc.service.Pause(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

func (bc *BillingController) HandleResume(c *fiber.Ctx) error {
	sub, err := bc.service.Resume(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

// HandleHistory returns the caller's gateway payments, newest first.
func (bc *BillingController) HandleHistory(c *fiber.Ctx) error {
	payments, err := bc.service.History(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"payments": payments})
}

// HandleWebhook receives gateway notifications. Accepted deliveries are
// journaled and processed in the background, so the sender always gets an
// immediate 200 once the event is stored.
func (bc *BillingController) HandleWebhook(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)
	notification, err := billing.ParseNotification(body)
	if err != nil {
		log.Warnf("[Webhook] Invalid payload: %v", err)
		return jsonError(c, fiber.StatusBadRequest, codeInvalidPayload, "invalid webhook payload")
	}

	kind := firstNonEmpty(notification.Kind(), c.Query("type"), c.Query("topic"))
	resourceID := firstNonEmpty(notification.ResourceID(), c.Query("data.id"), c.Query("id"))
	requestID := firstHeaderValue(c, "x-request-id")

	signatureValid, err := bc.verifySignature(c, requestID, resourceID)
	if err != nil {
		log.Warnf("[Webhook] Rejected delivery %s: %v", requestID, err)
		return jsonError(c, fiber.StatusUnauthorized, codeInvalidSignature, "invalid webhook signature")
	}

	created, event, err := bc.journal.RecordWebhookEvent(c.UserContext(), billing.WebhookEventInput{
		Provider:        models.BillingProviderMercadoPago,
		ProviderEventID: requestID,
		EventType:       kind,
		Action:          notification.Action,
		ResourceID:      resourceID,
		PayloadJSON:     string(body),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		log.Errorf("[Webhook] Failed to record event: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, codeInternal, "failed to record webhook event")
	}
	if !created {
		log.Infof("[Webhook] Duplicate delivery %s ignored", event.ProviderEventID)
		return c.JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	eventType, known := billing.ParseEventType(kind)
	if !known || resourceID == "" {
		log.Infof("[Webhook] Ignoring event %d type=%q resource=%q", event.ID, kind, resourceID)
		if markErr := bc.journal.MarkWebhookProcessed(c.UserContext(), event.ID, nil); markErr != nil {
			log.Errorf("[Webhook] Failed to mark event %d processed: %v", event.ID, markErr)
		}
		return c.JSON(fiber.Map{"ok": true, "ignored": true})
	}

	bc.dispatcher.ArchivePayload(event.Provider, event.ProviderEventID, event.CreatedAt, body)
	bc.dispatcher.DispatchWebhook(event.ID, string(eventType), resourceID)
	return c.JSON(fiber.Map{"ok": true})
}

func (bc *BillingController) verifySignature(c *fiber.Ctx, requestID, resourceID string) (bool, error) {
	if strings.TrimSpace(bc.webhook.Secret) == "" && bc.webhook.AllowUnsigned {
		log.Warn("[Webhook] No webhook secret configured, accepting unsigned delivery")
		return false, nil
	}
	header := c.Get("x-signature")
	if header == "" {
		return false, errors.New("missing x-signature header")
	}
	err := billing.VerifyWebhookSignature(bc.webhook.Secret, header, requestID, resourceID, bc.now(), bc.webhook.Tolerance)
	if err != nil {
		return false, err
	}
	return true, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
