package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plans a user can hold. FREE is assigned at signup; the others are only set
// by the webhook reconciler or an admin grant.
const (
	PlanFree     = "FREE"
	PlanMonthly  = "MONTHLY"
	PlanAnnual   = "ANNUAL"
	PlanLifetime = "LIFETIME"
)

const (
	SubscriptionStatusActive    = "ACTIVE"
	SubscriptionStatusInactive  = "INACTIVE"
	SubscriptionStatusCancelled = "CANCELLED"
)

type User struct {
	ID                    string         `gorm:"type:char(36);primaryKey" json:"id"`
	Name                  string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=2,max=150"`
	Email                 string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,max=200"`
	Plan                  string         `gorm:"type:varchar(20);not null;default:'FREE'" json:"plan" validate:"oneof=FREE MONTHLY ANNUAL LIFETIME"`
	SubscriptionStatus    string         `gorm:"type:varchar(20);not null;default:'INACTIVE'" json:"subscription_status" validate:"oneof=ACTIVE INACTIVE CANCELLED"`
	SubscriptionID        *string        `gorm:"type:varchar(191);index" json:"subscription_id,omitempty"`
	SubscriptionExpiresAt *time.Time     `gorm:"type:timestamp;default:null" json:"subscription_expires_at,omitempty"`
	CreatedAt             time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Plan == "" {
		u.Plan = PlanFree
	}
	if u.SubscriptionStatus == "" {
		u.SubscriptionStatus = SubscriptionStatusInactive
	}
	return nil
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// NewUser builds a signup-state user on the free plan.
func NewUser(name, email string) (*User, error) {
	u := &User{
		Name:               strings.TrimSpace(name),
		Email:              strings.ToLower(strings.TrimSpace(email)),
		Plan:               PlanFree,
		SubscriptionStatus: SubscriptionStatusInactive,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// HasPaidPlan reports whether the user currently holds a non-free plan that
// has not expired. Lifetime plans never expire.
func (u *User) HasPaidPlan(now time.Time) bool {
	if u.Plan == PlanFree || u.Plan == "" {
		return false
	}
	if u.SubscriptionStatus != SubscriptionStatusActive {
		return false
	}
	if u.SubscriptionExpiresAt == nil {
		return true
	}
	return u.SubscriptionExpiresAt.After(now)
}

// GatewaySubscriptionID returns the stored gateway subscription id or "".
func (u *User) GatewaySubscriptionID() string {
	if u.SubscriptionID == nil {
		return ""
	}
	return *u.SubscriptionID
}
