package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BankAccount holds a running balance. Balance changes go through the ledger
// package so they happen in the same transaction as the originating entry.
type BankAccount struct {
	ID        string          `gorm:"type:char(36);primaryKey" json:"id"`
	UserID    string          `gorm:"type:char(36);not null;index:idx_bank_accounts_owner,priority:1" json:"user_id"`
	ProfileID string          `gorm:"type:char(36);not null;index:idx_bank_accounts_owner,priority:2" json:"profile_id"`
	Name      string          `gorm:"type:varchar(100);not null" json:"name"`
	Balance   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"balance"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b *BankAccount) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
