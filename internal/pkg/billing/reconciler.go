package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mywallet/mywallet/app/models"
)

const (
	paymentMethodCheckout     = "checkout"
	paymentMethodSubscription = "subscription"
)

// Reconciler applies gateway notifications to local user and payment state.
// Every handler is idempotent on the external payment id.
type Reconciler struct {
	repo    Repository
	gateway Gateway
	refs    *ReferenceCodec
	now     func() time.Time
}

func NewReconciler(repo Repository, gateway Gateway, refs *ReferenceCodec) *Reconciler {
	return &Reconciler{repo: repo, gateway: gateway, refs: refs, now: time.Now}
}

// NewReconcilerFromDB wires the reconciler with the GORM repository.
func NewReconcilerFromDB(db *gorm.DB, gateway Gateway, refs *ReferenceCodec) *Reconciler {
	return NewReconciler(NewRepository(db), gateway, refs)
}

// RecordWebhookEvent persists webhook payloads idempotently. Deliveries
// without an event id are keyed by the payload hash.
func (r *Reconciler) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	payload := datatypes.JSON(in.PayloadJSON)
	if !json.Valid(payload) {
		quoted, _ := json.Marshal(in.PayloadJSON)
		payload = datatypes.JSON(quoted)
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		Action:          strings.TrimSpace(in.Action),
		ResourceID:      strings.TrimSpace(in.ResourceID),
		Payload:         payload,
		SignatureValid:  in.SignatureValid,
	}
	return r.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (r *Reconciler) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return r.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// Process handles a journaled notification and records the outcome. Errors
// are logged and stored on the event, never returned: the gateway's own
// redelivery is the retry mechanism.
func (r *Reconciler) Process(ctx context.Context, webhookEventID uint, eventType, resourceID string) {
	err := r.Handle(ctx, eventType, resourceID)
	if err != nil {
		log.Errorf("[Reconciler] Event %d (%s %s) dropped: %v", webhookEventID, eventType, resourceID, err)
	}
	if webhookEventID == 0 {
		return
	}
	if markErr := r.MarkWebhookProcessed(ctx, webhookEventID, err); markErr != nil {
		log.Errorf("[Reconciler] Failed to mark event %d processed: %v", webhookEventID, markErr)
	}
}

// Handle dispatches one notification by type. Unknown types are ignored.
func (r *Reconciler) Handle(ctx context.Context, eventType, resourceID string) error {
	kind, ok := ParseEventType(eventType)
	if !ok {
		log.Infof("[Reconciler] Ignoring unsupported event type %q", eventType)
		return nil
	}
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return fmt.Errorf("%s notification without data.id", kind)
	}

	switch kind {
	case EventPayment:
		return r.handlePayment(ctx, resourceID)
	case EventSubscriptionPreapproval:
		return r.handleSubscription(ctx, resourceID)
	case EventSubscriptionAuthorizedPayment:
		return r.handleRecurringPayment(ctx, resourceID)
	}
	return nil
}

func (r *Reconciler) handlePayment(ctx context.Context, paymentID string) error {
	payment, err := r.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("fetch payment %s: %w", paymentID, err)
	}
	ref, err := r.refs.Decode(payment.ExternalReference)
	if err != nil {
		return fmt.Errorf("payment %s reference %q: %w", paymentID, payment.ExternalReference, err)
	}

	externalID := payment.ID.String()
	if externalID == "" {
		externalID = paymentID
	}
	exists, err := r.repo.PaymentExists(externalID)
	if err != nil {
		return err
	}
	if exists {
		log.Infof("[Reconciler] Payment %s already recorded", externalID)
		return nil
	}
	if !payment.Approved() {
		log.Infof("[Reconciler] Payment %s is %s, nothing to apply", externalID, payment.Status)
		return nil
	}

	plan, _ := LookupPlan(ref.PlanKey)
	now := r.now()
	record := &models.PaymentHistory{
		UserID:            ref.UserID,
		Amount:            payment.TransactionAmount,
		Status:            models.PaymentStatusApproved,
		Method:            paymentMethod(payment.PaymentMethodID, paymentMethodCheckout),
		PlanType:          plan.Key,
		ExternalPaymentID: externalID,
		ExternalData:      datatypes.JSON(payment.Raw),
		PaidAt:            paidAt(payment.DateApproved, now),
	}

	return r.applyPayment(record, func(user *models.User) {
		user.Plan = plan.Key
		user.SubscriptionStatus = models.SubscriptionStatusActive
		user.SubscriptionExpiresAt = plan.ExpiresAt(now)
	}, func(tx Repository) (*models.User, error) {
		return tx.GetUser(ref.UserID)
	})
}

func (r *Reconciler) handleSubscription(ctx context.Context, subscriptionID string) error {
	sub, err := r.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", subscriptionID, err)
	}
	ref, err := r.refs.Decode(sub.ExternalReference)
	if err != nil {
		return fmt.Errorf("subscription %s reference %q: %w", subscriptionID, sub.ExternalReference, err)
	}
	status, ok := MapSubscriptionStatus(sub.Status)
	if !ok {
		log.Infof("[Reconciler] Subscription %s has unmapped status %q", subscriptionID, sub.Status)
		return nil
	}

	return r.repo.Transaction(func(tx Repository) error {
		user, err := tx.GetUser(ref.UserID)
		if err != nil {
			return fmt.Errorf("user %s: %w", ref.UserID, err)
		}
		if user.Plan == models.PlanLifetime {
			log.Infof("[Reconciler] User %s holds a lifetime plan, subscription %s %s ignored", user.ID, subscriptionID, sub.Status)
			return nil
		}

		id := sub.ID
		if id == "" {
			id = subscriptionID
		}
		user.SubscriptionID = &id
		user.SubscriptionStatus = status
		if status == models.SubscriptionStatusActive {
			plan, _ := LookupPlan(ref.PlanKey)
			user.Plan = plan.Key
			now := r.now()
			if user.SubscriptionExpiresAt == nil || user.SubscriptionExpiresAt.Before(now) {
				user.SubscriptionExpiresAt = plan.ExpiresAt(now)
			}
		}
		if err := tx.SaveUserSubscription(user); err != nil {
			return err
		}
		log.Infof("[Reconciler] User %s subscription %s is now %s", user.ID, id, status)
		return nil
	})
}

func (r *Reconciler) handleRecurringPayment(ctx context.Context, authorizedPaymentID string) error {
	ap, err := r.gateway.GetAuthorizedPayment(ctx, authorizedPaymentID)
	if err != nil {
		return fmt.Errorf("fetch authorized payment %s: %w", authorizedPaymentID, err)
	}
	if ap.ID == "" {
		ap.ID = FlexibleID(authorizedPaymentID)
	}
	if strings.TrimSpace(ap.PreapprovalID) == "" {
		return fmt.Errorf("authorized payment %s has no subscription id", authorizedPaymentID)
	}

	externalID := ap.ExternalPaymentID()
	exists, err := r.repo.PaymentExists(externalID)
	if err != nil {
		return err
	}
	if exists {
		log.Infof("[Reconciler] Recurring payment %s already recorded", externalID)
		return nil
	}
	if !ap.Approved() {
		log.Infof("[Reconciler] Recurring payment %s is %s, nothing to apply", externalID, ap.Status)
		return nil
	}

	ownerID, planKey, err := r.recurringPaymentOwner(ap)
	if err != nil {
		return err
	}
	plan, _ := LookupPlan(planKey)
	now := r.now()
	record := &models.PaymentHistory{
		UserID:            ownerID,
		Amount:            ap.TransactionAmount,
		Status:            models.PaymentStatusApproved,
		Method:            paymentMethodSubscription,
		PlanType:          plan.Key,
		ExternalPaymentID: externalID,
		ExternalData:      datatypes.JSON(ap.Raw),
		PaidAt:            now,
	}

	subscriptionID := ap.PreapprovalID
	return r.applyPayment(record, func(user *models.User) {
		user.Plan = plan.Key
		user.SubscriptionStatus = models.SubscriptionStatusActive
		user.SubscriptionExpiresAt = plan.ExpiresAt(now)
		if user.GatewaySubscriptionID() == "" {
			user.SubscriptionID = &subscriptionID
		}
	}, func(tx Repository) (*models.User, error) {
		return tx.GetUser(ownerID)
	})
}

// recurringPaymentOwner resolves the user and plan a recurring charge belongs
// to. The stored subscription id is tried first; a charge notified before its
// subscription falls back to the signed reference.
func (r *Reconciler) recurringPaymentOwner(ap *AuthorizedPayment) (string, string, error) {
	owner, err := r.repo.FindUserBySubscriptionID(ap.PreapprovalID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return "", "", fmt.Errorf("owner of subscription %s: %w", ap.PreapprovalID, err)
		}
		owner = nil
	} else {
		if plan, ok := LookupPlan(owner.Plan); ok && plan.Recurring() {
			return owner.ID, plan.Key, nil
		}
	}

	ref, refErr := r.refs.Decode(ap.ExternalReference)
	if refErr != nil {
		if owner == nil {
			return "", "", fmt.Errorf("owner of subscription %s: %w", ap.PreapprovalID, err)
		}
		return "", "", fmt.Errorf("plan of subscription %s unknown: %w", ap.PreapprovalID, refErr)
	}
	if owner == nil {
		log.Infof("[Reconciler] Subscription %s not linked yet, charging user %s from reference", ap.PreapprovalID, ref.UserID)
		return ref.UserID, ref.PlanKey, nil
	}
	return owner.ID, ref.PlanKey, nil
}

// applyPayment inserts record and updates the user in one transaction. A
// concurrent delivery that already stored the record turns into a no-op.
func (r *Reconciler) applyPayment(record *models.PaymentHistory, mutate func(*models.User), load func(Repository) (*models.User, error)) error {
	if len(record.ExternalData) == 0 {
		record.ExternalData = datatypes.JSON("{}")
	}
	err := r.repo.Transaction(func(tx Repository) error {
		user, err := load(tx)
		if err != nil {
			return fmt.Errorf("user %s: %w", record.UserID, err)
		}
		if err := tx.CreatePayment(record); err != nil {
			return err
		}
		mutate(user)
		return tx.SaveUserSubscription(user)
	})
	if errors.Is(err, ErrIdempotencyConflict) {
		log.Infof("[Reconciler] Payment %s recorded concurrently", record.ExternalPaymentID)
		return nil
	}
	if err != nil {
		return err
	}
	log.Infof("[Reconciler] Payment %s applied: user %s plan %s", record.ExternalPaymentID, record.UserID, record.PlanType)
	return nil
}

func paymentMethod(method, fallback string) string {
	if m := strings.TrimSpace(method); m != "" {
		return m
	}
	return fallback
}

func paidAt(approved *time.Time, fallback time.Time) time.Time {
	if approved != nil && !approved.IsZero() {
		return *approved
	}
	return fallback
}
