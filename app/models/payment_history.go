package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PaymentStatusApproved = "APPROVED"
	PaymentStatusPending  = "PENDING"
	PaymentStatusRejected = "REJECTED"
	PaymentStatusRefunded = "REFUNDED"
)

// PaymentHistory records a gateway payment applied to a user. ExternalPaymentID
// is unique and acts as the dedup key for webhook processing.
type PaymentHistory struct {
	ID                string          `gorm:"type:char(36);primaryKey" json:"id"`
	UserID            string          `gorm:"type:char(36);not null;index" json:"user_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Status            string          `gorm:"type:varchar(20);not null" json:"status"`
	Method            string          `gorm:"type:varchar(50)" json:"method"`
	PlanType          string          `gorm:"type:varchar(20);not null" json:"plan_type"`
	ExternalPaymentID string          `gorm:"type:varchar(191);not null;uniqueIndex" json:"external_payment_id"`
	ExternalData      datatypes.JSON  `json:"external_data,omitempty"`
	PaidAt            time.Time       `gorm:"type:timestamp;not null" json:"paid_at"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (p *PaymentHistory) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
