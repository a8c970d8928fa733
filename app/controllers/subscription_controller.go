package controllers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mywallet/mywallet/app/models"
	"github.com/mywallet/mywallet/internal/pkg/recurring"
	"github.com/mywallet/mywallet/internal/pkg/usercontext"
)

const defaultUpcomingDays = 30

// RecurringEngine manages the caller's recurring subscriptions.
type RecurringEngine interface {
	Create(ctx context.Context, owner recurring.Owner, in recurring.CreateInput) (*models.Subscription, error)
	Update(ctx context.Context, owner recurring.Owner, id string, in recurring.UpdateInput) (*models.Subscription, error)
	Cancel(ctx context.Context, owner recurring.Owner, id string) (*models.Subscription, error)
	Get(ctx context.Context, owner recurring.Owner, id string) (*models.Subscription, error)
	List(ctx context.Context, owner recurring.Owner, filter recurring.ListFilter) ([]models.Subscription, error)
	MarkPaid(ctx context.Context, owner recurring.Owner, id string, paymentDate time.Time) (*recurring.PaymentResult, error)
	GeneratePendingCharges(ctx context.Context, owner recurring.Owner) (recurring.GenerateResult, error)
	Summary(ctx context.Context, owner recurring.Owner) (*recurring.Summary, error)
	Upcoming(ctx context.Context, owner recurring.Owner, horizonDays int) ([]recurring.UpcomingCharge, error)
	Alerts(ctx context.Context, owner recurring.Owner) ([]recurring.Alert, error)
}

type SubscriptionController struct {
	engine RecurringEngine
}

func NewSubscriptionController(engine RecurringEngine) *SubscriptionController {
	return &SubscriptionController{engine: engine}
}

type createSubscriptionRequest struct {
	recurring.CreateInput
	Frequency string `json:"frequency"`
	StartDate string `json:"start_date"`
}

type updateSubscriptionRequest struct {
	recurring.UpdateInput
	Frequency *string `json:"frequency"`
}

type payRequest struct {
	PaymentDate string `json:"payment_date"`
}

func ownerOf(c *fiber.Ctx) recurring.Owner {
	return recurring.Owner{
		UserID:    usercontext.GetUserID(c),
		ProfileID: usercontext.GetProfileID(c),
	}
}

func parseFrequency(value string) (models.Frequency, error) {
	f, ok := recurring.ParseFrequency(value)
	if !ok {
		return "", fmt.Errorf("%w: %q", recurring.ErrInvalidFrequency, value)
	}
	return f, nil
}

// HandleList returns the caller's subscriptions, optionally filtered by ?status=.
func (sc *SubscriptionController) HandleList(c *fiber.Ctx) error {
	subs, err := sc.engine.List(c.UserContext(), ownerOf(c), recurring.ListFilter{Status: c.Query("status")})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"subscriptions": subs})
}

func (sc *SubscriptionController) HandleCreate(c *fiber.Ctx) error {
	var req createSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c, err)
	}
	in := req.CreateInput

	freq, err := parseFrequency(req.Frequency)
	if err != nil {
		return respondError(c, err)
	}
	in.Frequency = freq

	if req.StartDate != "" {
		start, err := recurring.ParseDate(req.StartDate)
		if err != nil {
			return respondError(c, &recurring.ValidationError{Field: "start_date", Message: "must be a YYYY-MM-DD date"})
		}
		in.StartDate = start
	}

	sub, err := sc.engine.Create(c.UserContext(), ownerOf(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

func (sc *SubscriptionController) HandleGet(c *fiber.Ctx) error {
	sub, err := sc.engine.Get(c.UserContext(), ownerOf(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

func (sc *SubscriptionController) HandleUpdate(c *fiber.Ctx) error {
	var req updateSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c, err)
	}
	in := req.UpdateInput
	if req.Frequency != nil {
		freq, err := parseFrequency(*req.Frequency)
		if err != nil {
			return respondError(c, err)
		}
		in.Frequency = &freq
	}

	sub, err := sc.engine.Update(c.UserContext(), ownerOf(c), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

func (sc *SubscriptionController) HandleCancel(c *fiber.Ctx) error {
	sub, err := sc.engine.Cancel(c.UserContext(), ownerOf(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sub)
}

// HandlePay records a payment. The body is optional; payment_date defaults
// to today.
func (sc *SubscriptionController) HandlePay(c *fiber.Ctx) error {
	var req payRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return bodyError(c, err)
		}
	}

	var paymentDate time.Time
	if req.PaymentDate != "" {
		d, err := recurring.ParseDate(req.PaymentDate)
		if err != nil {
			return respondError(c, &recurring.ValidationError{Field: "payment_date", Message: "must be a YYYY-MM-DD date"})
		}
		paymentDate = d
	}

	result, err := sc.engine.MarkPaid(c.UserContext(), ownerOf(c), c.Params("id"), paymentDate)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (sc *SubscriptionController) HandleSummary(c *fiber.Ctx) error {
	summary, err := sc.engine.Summary(c.UserContext(), ownerOf(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

// HandleUpcoming lists charges due within ?days= (default 30).
func (sc *SubscriptionController) HandleUpcoming(c *fiber.Ctx) error {
	days := defaultUpcomingDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return respondError(c, &recurring.ValidationError{Field: "days", Message: "must be an integer"})
		}
		days = n
	}

	charges, err := sc.engine.Upcoming(c.UserContext(), ownerOf(c), days)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"days": days, "charges": charges})
}

func (sc *SubscriptionController) HandleAlerts(c *fiber.Ctx) error {
	alerts, err := sc.engine.Alerts(c.UserContext(), ownerOf(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"alerts": alerts})
}

// HandleGenerate books pending charges for the caller's due subscriptions.
func (sc *SubscriptionController) HandleGenerate(c *fiber.Ctx) error {
	result, err := sc.engine.GeneratePendingCharges(c.UserContext(), ownerOf(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
