package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mywallet/mywallet/app/models"
)

const (
	SubscribeTypePreference   = "preference"
	SubscribeTypeSubscription = "subscription"

	defaultHistoryLimit = 50
)

// Service exposes the user facing plan purchase flows.
type Service struct {
	repo    Repository
	gateway Gateway
	plans   PlanResolver
	refs    *ReferenceCodec
	now     func() time.Time
}

// NewService creates a billing service from injected collaborators.
func NewService(repo Repository, gateway Gateway, plans PlanResolver, refs *ReferenceCodec) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		plans:   plans,
		refs:    refs,
		now:     time.Now,
	}
}

// NewServiceFromDB wires the service with the GORM repository.
func NewServiceFromDB(db *gorm.DB, gateway Gateway, plans PlanResolver, refs *ReferenceCodec) *Service {
	return NewService(NewRepository(db), gateway, plans, refs)
}

// PlanView is a catalog entry as shown to users.
type PlanView struct {
	ID             string            `json:"id"`
	DisplayName    string            `json:"displayName"`
	Description    string            `json:"description"`
	Price          decimal.Decimal   `json:"price"`
	Frequency      *BillingFrequency `json:"billingFrequency"`
	ExternalPlanID *string           `json:"externalPlanId"`
}

// SubscribeResult is returned by Subscribe. Preferences carry an InitPoint
// the payer is redirected to; subscriptions carry the gateway status.
type SubscribeResult struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	InitPoint string `json:"initPoint,omitempty"`
	Status    string `json:"status,omitempty"`
}

// StatusView is the user's plan state plus the live gateway status when a
// gateway subscription exists.
type StatusView struct {
	Plan                  string     `json:"plan"`
	SubscriptionStatus    string     `json:"subscriptionStatus"`
	SubscriptionID        *string    `json:"subscriptionId"`
	SubscriptionExpiresAt *time.Time `json:"subscriptionExpiresAt"`
	Active                bool       `json:"active"`
	GatewayStatus         string     `json:"gatewayStatus,omitempty"`
	NextPaymentDate       *time.Time `json:"nextPaymentDate,omitempty"`
}

type cachedPlanIDs interface {
	CachedExternalPlanID(planKey string) string
}

// Plans lists the catalog. Gateway plan ids are included when known.
func (s *Service) Plans(ctx context.Context) []PlanView {
	out := make([]PlanView, 0, len(catalog))
	for _, p := range Catalog() {
		view := PlanView{
			ID:          p.Key,
			DisplayName: p.DisplayName,
			Description: p.Description,
			Price:       p.Price,
			Frequency:   p.Frequency,
		}
		if c, ok := s.plans.(cachedPlanIDs); ok && p.Recurring() {
			if id := c.CachedExternalPlanID(p.Key); id != "" {
				view.ExternalPlanID = &id
			}
		}
		out = append(out, view)
	}
	return out
}

// Subscribe starts a purchase of planType for the user. Lifetime plans become
// a one-time checkout; recurring plans need cardTokenID.
func (s *Service) Subscribe(ctx context.Context, userID, planType, cardTokenID string) (*SubscribeResult, error) {
	plan, ok := LookupPlan(planType)
	if !ok {
		return nil, &ValidationError{Field: "planType", Message: fmt.Sprintf("unknown plan %q", planType)}
	}
	user, err := s.repo.GetUser(userID)
	if err != nil {
		return nil, err
	}
	payer := Payer{UserID: user.ID, Name: user.Name, Email: user.Email}

	if !plan.Recurring() {
		pref, err := s.CreateOneTimeCharge(ctx, plan, payer)
		if err != nil {
			return nil, err
		}
		return &SubscribeResult{Type: SubscribeTypePreference, ID: pref.ID, InitPoint: pref.InitPoint}, nil
	}

	sub, err := s.CreateRecurringCharge(ctx, plan, payer, cardTokenID)
	if err != nil {
		return nil, err
	}
	return &SubscribeResult{Type: SubscribeTypeSubscription, ID: sub.ID, Status: sub.Status}, nil
}

// CreateOneTimeCharge creates a checkout preference correlated to the payer
// and plan through a signed reference.
func (s *Service) CreateOneTimeCharge(ctx context.Context, plan Plan, payer Payer) (*Preference, error) {
	ref, err := s.refs.Encode(Reference{UserID: payer.UserID, PlanKey: plan.Key})
	if err != nil {
		return nil, err
	}
	pref, err := s.gateway.CreatePreference(ctx, PreferenceRequest{Plan: plan, Payer: payer, Reference: ref})
	if err != nil {
		return nil, err
	}
	log.Infof("[Billing] Created preference %s for user %s plan %s", pref.ID, payer.UserID, plan.Key)
	return pref, nil
}

// CreateRecurringCharge authorizes a gateway subscription on the plan's
// gateway plan, creating that plan first if needed.
func (s *Service) CreateRecurringCharge(ctx context.Context, plan Plan, payer Payer, cardTokenID string) (*GatewaySubscription, error) {
	if strings.TrimSpace(cardTokenID) == "" {
		return nil, &ValidationError{Field: "cardTokenId", Message: "a card token is required for recurring plans"}
	}
	externalPlanID, err := s.plans.ResolveExternalPlanID(ctx, plan.Key)
	if err != nil {
		return nil, err
	}
	ref, err := s.refs.Encode(Reference{UserID: payer.UserID, PlanKey: plan.Key})
	if err != nil {
		return nil, err
	}

	sub, err := s.gateway.CreateSubscription(ctx, SubscriptionRequest{
		Plan:           plan,
		ExternalPlanID: externalPlanID,
		Payer:          payer,
		CardTokenID:    cardTokenID,
		Reference:      ref,
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Billing] Created gateway subscription %s (%s) for user %s plan %s", sub.ID, sub.Status, payer.UserID, plan.Key)
	return sub, nil
}

// Status reports the user's plan. Gateway lookup failures are logged and the
// local state is returned alone.
func (s *Service) Status(ctx context.Context, userID string) (*StatusView, error) {
	user, err := s.repo.GetUser(userID)
	if err != nil {
		return nil, err
	}
	view := &StatusView{
		Plan:                  user.Plan,
		SubscriptionStatus:    user.SubscriptionStatus,
		SubscriptionID:        user.SubscriptionID,
		SubscriptionExpiresAt: user.SubscriptionExpiresAt,
		Active:                user.HasPaidPlan(s.now()),
	}

	if id := user.GatewaySubscriptionID(); id != "" {
		sub, err := s.gateway.GetSubscription(ctx, id)
		if err != nil {
			log.Warnf("[Billing] Gateway status for subscription %s unavailable: %v", id, err)
		} else {
			view.GatewayStatus = sub.Status
			view.NextPaymentDate = sub.NextPaymentDate
		}
	}
	return view, nil
}

// Cancel cancels the user's gateway subscription. The local status follows
// through the subscription webhook; the paid period stays valid until it
// expires.
func (s *Service) Cancel(ctx context.Context, userID string) (*StatusView, error) {
	user, err := s.activeGatewaySubscription(userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.gateway.CancelSubscription(ctx, *user.SubscriptionID); err != nil {
		return nil, err
	}
	log.Infof("[Billing] User %s cancelled gateway subscription %s", user.ID, *user.SubscriptionID)
	return s.Status(ctx, userID)
}

// Pause suspends billing at the gateway. Local state follows via webhook.
func (s *Service) Pause(ctx context.Context, userID string) (*GatewaySubscription, error) {
	user, err := s.activeGatewaySubscription(userID)
	if err != nil {
		return nil, err
	}
	return s.gateway.PauseSubscription(ctx, *user.SubscriptionID)
}

// Resume reactivates a paused gateway subscription.
func (s *Service) Resume(ctx context.Context, userID string) (*GatewaySubscription, error) {
	user, err := s.activeGatewaySubscription(userID)
	if err != nil {
		return nil, err
	}
	return s.gateway.ResumeSubscription(ctx, *user.SubscriptionID)
}

func (s *Service) activeGatewaySubscription(userID string) (*models.User, error) {
	user, err := s.repo.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user.GatewaySubscriptionID() == "" {
		return nil, &ValidationError{Field: "subscription", Message: "user has no gateway subscription"}
	}
	if user.SubscriptionStatus == models.SubscriptionStatusCancelled {
		return nil, &ValidationError{Field: "subscription", Message: "subscription is already cancelled"}
	}
	return user, nil
}

// History lists the user's recorded payments, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]models.PaymentHistory, error) {
	if _, err := s.repo.GetUser(userID); err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(userID, defaultHistoryLimit)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []models.PaymentHistory{}
	}
	return payments, nil
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	var gwErr *GatewayError
	return errors.Is(err, ErrNotFound) || (errors.As(err, &gwErr) && gwErr.NotFound())
}
