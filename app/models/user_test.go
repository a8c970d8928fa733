package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	u, err := NewUser("Maria Silva", " Maria@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", u.Email)
	assert.Equal(t, PlanFree, u.Plan)
	assert.Equal(t, SubscriptionStatusInactive, u.SubscriptionStatus)

	_, err = NewUser("M", "not-an-email")
	assert.Error(t, err)
}

func TestUserHasPaidPlan(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name string
		user User
		want bool
	}{
		{"free", User{Plan: PlanFree, SubscriptionStatus: SubscriptionStatusActive}, false},
		{"lifetime", User{Plan: PlanLifetime, SubscriptionStatus: SubscriptionStatusActive}, true},
		{"monthly valid", User{Plan: PlanMonthly, SubscriptionStatus: SubscriptionStatusActive, SubscriptionExpiresAt: &future}, true},
		{"monthly expired", User{Plan: PlanMonthly, SubscriptionStatus: SubscriptionStatusActive, SubscriptionExpiresAt: &past}, false},
		{"cancelled", User{Plan: PlanAnnual, SubscriptionStatus: SubscriptionStatusCancelled, SubscriptionExpiresAt: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.HasPaidPlan(now))
		})
	}
}

func TestFrequencyValid(t *testing.T) {
	for _, f := range []Frequency{FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencySemiAnnual, FrequencyYearly} {
		assert.True(t, f.Valid(), string(f))
	}
	assert.False(t, Frequency("DAILY").Valid())
}
