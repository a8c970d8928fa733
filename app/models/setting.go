package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Setting categories
const (
	SettingCategoryGeneral        = "general"
	SettingCategoryPaymentGateway = "payment-gateway"
)

// Setting represents a persisted key/value system setting
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:191;not null;uniqueIndex" json:"key" validate:"required,min=1,max=191"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null;default:'string'" json:"type" validate:"required,oneof=string boolean integer float"`
	Category  string    `gorm:"size:50;not null;default:'general';index" json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate validates the setting
func (s *Setting) Validate() error {
	return validator.New().Struct(s)
}

// PlanExternalIDKey returns the settings key caching the gateway plan id for a plan.
func PlanExternalIDKey(planKey string) string {
	return fmt.Sprintf("PLAN_%s_ID", strings.ToUpper(strings.TrimSpace(planKey)))
}
