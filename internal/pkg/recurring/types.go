package recurring

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mywallet/mywallet/app/models"
)

// Owner scopes every engine operation to a user profile.
type Owner struct {
	UserID    string
	ProfileID string
}

// CreateInput describes a new recurring subscription. AlertDaysBefore
// defaults to 3 when nil.
type CreateInput struct {
	Name            string           `json:"name" validate:"required,max=150"`
	Description     string           `json:"description" validate:"max=2000"`
	Amount          decimal.Decimal  `json:"amount"`
	Frequency       models.Frequency `json:"frequency"`
	Category        string           `json:"category" validate:"omitempty,max=50"`
	StartDate       time.Time        `json:"start_date"`
	CardID          *string          `json:"card_id"`
	BankAccountID   *string          `json:"bank_account_id"`
	AutoGenerate    bool             `json:"auto_generate"`
	AlertDaysBefore *int             `json:"alert_days_before" validate:"omitempty,min=0,max=60"`
}

// UpdateInput is a partial update. Nil fields are left untouched; an empty
// CardID or BankAccountID unlinks the payment method.
type UpdateInput struct {
	Name            *string           `json:"name" validate:"omitempty,min=1,max=150"`
	Description     *string           `json:"description" validate:"omitempty,max=2000"`
	Amount          *decimal.Decimal  `json:"amount"`
	Frequency       *models.Frequency `json:"frequency"`
	Category        *string           `json:"category" validate:"omitempty,max=50"`
	CardID          *string           `json:"card_id"`
	BankAccountID   *string           `json:"bank_account_id"`
	AutoGenerate    *bool             `json:"auto_generate"`
	AlertDaysBefore *int              `json:"alert_days_before" validate:"omitempty,min=0,max=60"`
}

// ListFilter narrows List results. An empty Status returns every subscription.
type ListFilter struct {
	Status string
}

// ChargeEntry identifies a ledger entry generated for a subscription.
type ChargeEntry struct {
	ID     string
	Card   bool
	Status string
}

// Paid reports whether the entry is already settled.
func (c *ChargeEntry) Paid() bool {
	if c.Card {
		return c.Status == models.CardTransactionStatusPaid
	}
	return c.Status == models.ManualTransactionStatusCompleted
}

// GenerateResult summarises a pending-charge run.
type GenerateResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (r *GenerateResult) add(o GenerateResult) {
	r.Created += o.Created
	r.Skipped += o.Skipped
	r.Failed += o.Failed
}

// PaymentResult is returned by MarkPaid.
type PaymentResult struct {
	Subscription *models.Subscription `json:"subscription"`
	EntryID      string               `json:"entry_id"`
	PaymentDate  time.Time            `json:"payment_date"`
}

// CategoryTotal aggregates active subscriptions of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Monthly  decimal.Decimal `json:"monthly"`
	Annual   decimal.Decimal `json:"annual"`
}

// Summary aggregates the recurring spend of a profile.
type Summary struct {
	ActiveCount    int             `json:"active_count"`
	CancelledCount int             `json:"cancelled_count"`
	TotalMonthly   decimal.Decimal `json:"total_monthly"`
	TotalAnnual    decimal.Decimal `json:"total_annual"`
	ByCategory     []CategoryTotal `json:"by_category"`
}

// UpcomingCharge is a subscription due within the requested horizon.
type UpcomingCharge struct {
	SubscriptionID string           `json:"subscription_id"`
	Name           string           `json:"name"`
	Amount         decimal.Decimal  `json:"amount"`
	Frequency      models.Frequency `json:"frequency"`
	DueDate        time.Time        `json:"due_date"`
	DaysUntil      int              `json:"days_until"`
	HasCard        bool             `json:"has_card"`
}

const (
	AlertUpcomingCharge = "UPCOMING_CHARGE"
	AlertNoCardAssigned = "NO_CARD_ASSIGNED"

	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
	SeverityLow    = "LOW"
)

// Alert is a derived notification about a subscription.
type Alert struct {
	Type           string     `json:"type"`
	Severity       string     `json:"severity"`
	SubscriptionID string     `json:"subscription_id"`
	Name           string     `json:"name"`
	Message        string     `json:"message"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	DaysUntil      *int       `json:"days_until,omitempty"`
}

func severityRank(s string) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}
