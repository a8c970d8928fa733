package recurring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mywallet/mywallet/app/models"
)

func seed(repo *memoryRepository, sub models.Subscription) {
	sub.UserID = testOwner.UserID
	sub.ProfileID = testOwner.ProfileID
	if sub.Status == "" {
		sub.Status = models.RecurringStatusActive
	}
	repo.subs[sub.ID] = sub
}

func TestEngine_Alerts_UpcomingHigh(t *testing.T) {
	today := date(2024, 6, 10)
	repo := newMemoryRepository()
	seed(repo, models.Subscription{
		ID: "s1", Name: "Netflix", Amount: dec("29.90"), Frequency: models.FrequencyMonthly,
		NextBillingDate: today.AddDate(0, 0, 1), AlertDaysBefore: 3, CardID: strPtr("card-1"),
	})

	alerts, err := newTestEngine(repo, today).Alerts(context.Background(), testOwner)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertUpcomingCharge, alerts[0].Type)
	assert.Equal(t, SeverityHigh, alerts[0].Severity)
	assert.Equal(t, 1, *alerts[0].DaysUntil)
	assert.Contains(t, alerts[0].Message, "Netflix")
}

func TestEngine_Alerts_Ordering(t *testing.T) {
	today := date(2024, 6, 10)
	repo := newMemoryRepository()
	seed(repo, models.Subscription{
		ID: "medium", Name: "Gym", Amount: dec("99"), Frequency: models.FrequencyMonthly,
		NextBillingDate: today.AddDate(0, 0, 3), AlertDaysBefore: 5, CardID: strPtr("c"),
	})
	seed(repo, models.Subscription{
		ID: "nocard", Name: "Rent", Amount: dec("1500"), Frequency: models.FrequencyMonthly,
		NextBillingDate: today.AddDate(0, 0, 20), AlertDaysBefore: 3, AutoGenerate: true,
	})
	seed(repo, models.Subscription{
		ID: "today", Name: "Music", Amount: dec("21.90"), Frequency: models.FrequencyMonthly,
		NextBillingDate: today, AlertDaysBefore: 0, CardID: strPtr("c"),
	})
	seed(repo, models.Subscription{
		ID: "outside", Name: "Cloud", Amount: dec("10"), Frequency: models.FrequencyMonthly,
		NextBillingDate: today.AddDate(0, 0, 4), AlertDaysBefore: 3, CardID: strPtr("c"),
	})
	seed(repo, models.Subscription{
		ID: "cancelled", Name: "Old", Amount: dec("10"), Frequency: models.FrequencyMonthly,
		NextBillingDate: today, AlertDaysBefore: 3, Status: models.RecurringStatusCancelled, AutoGenerate: true,
	})

	alerts, err := newTestEngine(repo, today).Alerts(context.Background(), testOwner)
	require.NoError(t, err)
	require.Len(t, alerts, 3)

	assert.Equal(t, "today", alerts[0].SubscriptionID)
	assert.Equal(t, SeverityHigh, alerts[0].Severity)
	assert.Equal(t, "medium", alerts[1].SubscriptionID)
	assert.Equal(t, SeverityMedium, alerts[1].Severity)
	assert.Equal(t, "nocard", alerts[2].SubscriptionID)
	assert.Equal(t, AlertNoCardAssigned, alerts[2].Type)
	assert.Equal(t, SeverityLow, alerts[2].Severity)
	assert.Nil(t, alerts[2].DueDate)
}

func TestEngine_Upcoming(t *testing.T) {
	today := date(2024, 6, 10)
	repo := newMemoryRepository()
	seed(repo, models.Subscription{ID: "late", Name: "Late", Amount: dec("1"), NextBillingDate: today.AddDate(0, 0, 6)})
	seed(repo, models.Subscription{ID: "soon", Name: "Soon", Amount: dec("1"), NextBillingDate: today.AddDate(0, 0, 2)})
	seed(repo, models.Subscription{ID: "far", Name: "Far", Amount: dec("1"), NextBillingDate: today.AddDate(0, 1, 0)})
	seed(repo, models.Subscription{ID: "overdue", Name: "Overdue", Amount: dec("1"), NextBillingDate: today.AddDate(0, 0, -2)})

	engine := newTestEngine(repo, today)
	upcoming, err := engine.Upcoming(context.Background(), testOwner, 7)
	require.NoError(t, err)

	ids := make([]string, 0, len(upcoming))
	for _, u := range upcoming {
		ids = append(ids, u.SubscriptionID)
	}
	assert.Equal(t, []string{"overdue", "soon", "late"}, ids)
	assert.Equal(t, -2, upcoming[0].DaysUntil)

	_, err = engine.Upcoming(context.Background(), testOwner, -1)
	assert.Error(t, err)
}

func TestEngine_Summary(t *testing.T) {
	repo := newMemoryRepository()
	seed(repo, models.Subscription{ID: "a", Category: "STREAMING", Amount: dec("29.90"), Frequency: models.FrequencyMonthly})
	seed(repo, models.Subscription{ID: "b", Category: "STREAMING", Amount: dec("120"), Frequency: models.FrequencyYearly})
	seed(repo, models.Subscription{ID: "c", Category: "SOFTWARE", Amount: dec("300"), Frequency: models.FrequencyQuarterly})
	seed(repo, models.Subscription{ID: "d", Category: "SOFTWARE", Amount: dec("999"), Frequency: models.FrequencyMonthly, Status: models.RecurringStatusCancelled})

	summary, err := newTestEngine(repo, time.Now()).Summary(context.Background(), testOwner)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.ActiveCount)
	assert.Equal(t, 1, summary.CancelledCount)
	assert.Equal(t, "139.9", summary.TotalMonthly.String())
	assert.Equal(t, "1678.8", summary.TotalAnnual.String())

	require.Len(t, summary.ByCategory, 2)
	assert.Equal(t, "SOFTWARE", summary.ByCategory[0].Category)
	assert.Equal(t, "100", summary.ByCategory[0].Monthly.String())
	assert.Equal(t, "STREAMING", summary.ByCategory[1].Category)
	assert.Equal(t, 2, summary.ByCategory[1].Count)
	assert.Equal(t, "39.9", summary.ByCategory[1].Monthly.String())
}
