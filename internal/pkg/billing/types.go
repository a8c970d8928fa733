package billing

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EventType is a gateway notification kind the reconciler understands.
type EventType string

const (
	EventPayment                       EventType = "payment"
	EventSubscriptionPreapproval       EventType = "subscription_preapproval"
	EventSubscriptionAuthorizedPayment EventType = "subscription_authorized_payment"
)

// ParseEventType maps the notification "type" (or legacy "topic") to a known
// event. ok is false for anything else.
func ParseEventType(raw string) (EventType, bool) {
	switch EventType(strings.ToLower(strings.TrimSpace(raw))) {
	case EventPayment:
		return EventPayment, true
	case EventSubscriptionPreapproval, "preapproval":
		return EventSubscriptionPreapproval, true
	case EventSubscriptionAuthorizedPayment, "authorized_payment":
		return EventSubscriptionAuthorizedPayment, true
	default:
		return "", false
	}
}

// FlexibleID accepts ids sent either as JSON numbers or strings.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string {
	return string(id)
}

// Notification is the webhook body posted by the gateway.
type Notification struct {
	ID          FlexibleID `json:"id"`
	Type        string     `json:"type"`
	Topic       string     `json:"topic,omitempty"`
	Action      string     `json:"action"`
	LiveMode    bool       `json:"live_mode"`
	DateCreated string     `json:"date_created"`
	Data        struct {
		ID FlexibleID `json:"id"`
	} `json:"data"`
}

// ParseNotification decodes a webhook body. An empty body yields an empty
// notification so query parameters can fill it in.
func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	if len(bytes.TrimSpace(body)) == 0 {
		return &n, nil
	}
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Kind returns the event type from "type", falling back to "topic".
func (n *Notification) Kind() string {
	if n.Type != "" {
		return n.Type
	}
	return n.Topic
}

// ResourceID is the id of the object the notification refers to.
func (n *Notification) ResourceID() string {
	return strings.TrimSpace(n.Data.ID.String())
}

// Payer identifies the buyer sent along with a charge.
type Payer struct {
	UserID string
	Name   string
	Email  string
}

// SplitName returns the first token of Name and the remainder.
func (p Payer) SplitName() (first, last string) {
	fields := strings.Fields(p.Name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

// Preference is a created one-time checkout.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// GatewaySubscription is the gateway's recurring authorization (preapproval).
type GatewaySubscription struct {
	ID                string         `json:"id"`
	Status            string         `json:"status"`
	Reason            string         `json:"reason"`
	ExternalReference string         `json:"external_reference"`
	PayerID           FlexibleID     `json:"payer_id"`
	PayerEmail        string         `json:"payer_email"`
	PreapprovalPlanID string         `json:"preapproval_plan_id"`
	InitPoint         string         `json:"init_point"`
	NextPaymentDate   *time.Time     `json:"next_payment_date,omitempty"`
	AutoRecurring     *AutoRecurring `json:"auto_recurring,omitempty"`
}

// AutoRecurring describes the billing cadence of a plan or subscription.
type AutoRecurring struct {
	Frequency         int             `json:"frequency"`
	FrequencyType     string          `json:"frequency_type"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	StartDate         *time.Time      `json:"start_date,omitempty"`
}

const (
	PaymentStatusApproved = "approved"

	GatewayStatusAuthorized = "authorized"
	GatewayStatusPending    = "pending"
	GatewayStatusPaused     = "paused"
	GatewayStatusCancelled  = "cancelled"
)

// Payment is a gateway payment.
type Payment struct {
	ID                FlexibleID      `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	PaymentMethodID   string          `json:"payment_method_id"`
	PaymentTypeID     string          `json:"payment_type_id"`
	DateApproved      *time.Time      `json:"date_approved,omitempty"`
	Raw               json.RawMessage `json:"-"`
}

// Approved reports whether the gateway captured the payment.
func (p *Payment) Approved() bool {
	return strings.EqualFold(p.Status, PaymentStatusApproved)
}

// AuthorizedPayment is one charge of a gateway subscription.
type AuthorizedPayment struct {
	ID                FlexibleID      `json:"id"`
	PreapprovalID     string          `json:"preapproval_id"`
	Status            string          `json:"status"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	Payment           *struct {
		ID     FlexibleID `json:"id"`
		Status string     `json:"status"`
	} `json:"payment,omitempty"`
	Raw json.RawMessage `json:"-"`
}

// Approved reports whether the underlying payment was captured.
func (a *AuthorizedPayment) Approved() bool {
	return a.Payment != nil && strings.EqualFold(a.Payment.Status, PaymentStatusApproved)
}

// ExternalPaymentID is the dedup key recorded for this charge.
func (a *AuthorizedPayment) ExternalPaymentID() string {
	if a.Payment != nil && a.Payment.ID != "" {
		return a.Payment.ID.String()
	}
	return "authorized_payment:" + a.ID.String()
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Action          string
	ResourceID      string
	PayloadJSON     string
	SignatureValid  bool
}
