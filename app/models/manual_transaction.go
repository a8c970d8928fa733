package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ManualTransactionStatusPending   = "PENDING"
	ManualTransactionStatusCompleted = "COMPLETED"
)

// ManualTransaction is a ledger entry not tied to a card, optionally debited
// from a bank account.
type ManualTransaction struct {
	ID             string          `gorm:"type:char(36);primaryKey" json:"id"`
	UserID         string          `gorm:"type:char(36);not null;index:idx_manual_tx_owner,priority:1" json:"user_id"`
	ProfileID      string          `gorm:"type:char(36);not null;index:idx_manual_tx_owner,priority:2" json:"profile_id"`
	BankAccountID  *string         `gorm:"type:char(36);index" json:"bank_account_id,omitempty"`
	SubscriptionID *string         `gorm:"type:char(36);index:ux_manual_tx_subscription_date,unique,priority:1" json:"subscription_id,omitempty"`
	Description    string          `gorm:"type:varchar(255);not null" json:"description"`
	Amount         decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Category       string          `gorm:"type:varchar(50);not null" json:"category"`
	Type           string          `gorm:"type:varchar(20);not null;default:'EXPENSE'" json:"type"`
	Status         string          `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	Date           time.Time       `gorm:"type:date;not null;index:ux_manual_tx_subscription_date,unique,priority:2" json:"date"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *ManualTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
