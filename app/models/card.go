package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Card is a credit card owned by a user profile. AvailableLimit shrinks as
// charges are booked against it.
type Card struct {
	ID             string          `gorm:"type:char(36);primaryKey" json:"id"`
	UserID         string          `gorm:"type:char(36);not null;index:idx_cards_owner,priority:1" json:"user_id"`
	ProfileID      string          `gorm:"type:char(36);not null;index:idx_cards_owner,priority:2" json:"profile_id"`
	BankAccountID  *string         `gorm:"type:char(36)" json:"bank_account_id,omitempty"`
	Name           string          `gorm:"type:varchar(100);not null" json:"name"`
	Limit          decimal.Decimal `gorm:"column:credit_limit;type:decimal(15,2);not null;default:0" json:"limit"`
	AvailableLimit decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"available_limit"`
	ClosingDay     int             `gorm:"not null;default:1" json:"closing_day"`
	DueDay         int             `gorm:"not null;default:10" json:"due_day"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// BelongsTo reports whether the card is owned by the given user and profile.
func (c *Card) BelongsTo(userID, profileID string) bool {
	return c != nil && c.UserID == userID && c.ProfileID == profileID
}
