package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	CardTransactionStatusPending = "PENDING"
	CardTransactionStatusPaid    = "PAID"
)

const TransactionTypeExpense = "EXPENSE"

// CardTransaction is a ledger entry booked against a credit card. Entries
// generated from a subscription carry its id; (SubscriptionID, Date) is unique.
type CardTransaction struct {
	ID             string          `gorm:"type:char(36);primaryKey" json:"id"`
	UserID         string          `gorm:"type:char(36);not null;index:idx_card_tx_owner,priority:1" json:"user_id"`
	ProfileID      string          `gorm:"type:char(36);not null;index:idx_card_tx_owner,priority:2" json:"profile_id"`
	CardID         string          `gorm:"type:char(36);not null;index" json:"card_id"`
	SubscriptionID *string         `gorm:"type:char(36);index:ux_card_tx_subscription_date,unique,priority:1" json:"subscription_id,omitempty"`
	Description    string          `gorm:"type:varchar(255);not null" json:"description"`
	Amount         decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Category       string          `gorm:"type:varchar(50);not null" json:"category"`
	Type           string          `gorm:"type:varchar(20);not null;default:'EXPENSE'" json:"type"`
	Status         string          `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	Date           time.Time       `gorm:"type:date;not null;index:ux_card_tx_subscription_date,unique,priority:2" json:"date"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *CardTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
