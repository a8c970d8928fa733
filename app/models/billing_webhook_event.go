package models

import (
	"time"

	"gorm.io/datatypes"
)

const BillingProviderMercadoPago = "mercadopago"

// BillingWebhookEvent journals gateway webhook deliveries with deduplication
// metadata for idempotent processing.
type BillingWebhookEvent struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Provider        string         `gorm:"type:varchar(20);not null;index:ux_billing_webhook_events_provider_event,unique,priority:1" json:"provider"`
	ProviderEventID string         `gorm:"type:varchar(191);not null;index:ux_billing_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string         `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Action          string         `gorm:"type:varchar(100)" json:"action"`
	ResourceID      string         `gorm:"type:varchar(191);index" json:"resource_id"`
	Payload         datatypes.JSON `gorm:"not null" json:"payload"`
	SignatureValid  bool           `gorm:"default:false" json:"signature_valid"`
	ProcessedAt     *time.Time     `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string         `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
