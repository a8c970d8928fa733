package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Frequency is the billing cadence of a recurring subscription.
type Frequency string

const (
	FrequencyWeekly     Frequency = "WEEKLY"
	FrequencyMonthly    Frequency = "MONTHLY"
	FrequencyQuarterly  Frequency = "QUARTERLY"
	FrequencySemiAnnual Frequency = "SEMI_ANNUAL"
	FrequencyYearly     Frequency = "YEARLY"
)

// Valid reports whether f is one of the known cadences.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencySemiAnnual, FrequencyYearly:
		return true
	default:
		return false
	}
}

const (
	RecurringStatusActive    = "ACTIVE"
	RecurringStatusCancelled = "CANCELLED"
)

// Subscription is a user-defined recurring expense (streaming, software,
// rent...). It is unrelated to the user's own plan at the payment gateway.
type Subscription struct {
	ID              string          `gorm:"type:char(36);primaryKey" json:"id"`
	UserID          string          `gorm:"type:char(36);not null;index:idx_subscriptions_due,priority:1" json:"user_id"`
	ProfileID       string          `gorm:"type:char(36);not null;index:idx_subscriptions_due,priority:2" json:"profile_id"`
	CardID          *string         `gorm:"type:char(36);index" json:"card_id,omitempty"`
	BankAccountID   *string         `gorm:"type:char(36)" json:"bank_account_id,omitempty"`
	Name            string          `gorm:"type:varchar(150);not null" json:"name"`
	Description     string          `gorm:"type:text" json:"description,omitempty"`
	Amount          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Frequency       Frequency       `gorm:"type:varchar(20);not null;default:'MONTHLY'" json:"frequency"`
	Category        string          `gorm:"type:varchar(50);not null;default:'OTHER'" json:"category"`
	Status          string          `gorm:"type:varchar(20);not null;default:'ACTIVE';index:idx_subscriptions_due,priority:3" json:"status"`
	StartDate       time.Time       `gorm:"type:date;not null" json:"start_date"`
	NextBillingDate time.Time       `gorm:"type:date;not null;index:idx_subscriptions_due,priority:4" json:"next_billing_date"`
	EndDate         *time.Time      `gorm:"type:date;default:null" json:"end_date,omitempty"`
	AutoGenerate    bool            `gorm:"not null;default:false" json:"auto_generate"`
	AlertDaysBefore int             `gorm:"not null;default:3" json:"alert_days_before"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (s *Subscription) IsActive() bool {
	return s.Status == RecurringStatusActive
}

// HasCard reports whether a card is linked to the subscription.
func (s *Subscription) HasCard() bool {
	return s.CardID != nil && *s.CardID != ""
}

// HasBankAccount reports whether a debit account is linked to the subscription.
func (s *Subscription) HasBankAccount() bool {
	return s.BankAccountID != nil && *s.BankAccountID != ""
}
