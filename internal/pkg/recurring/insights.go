package recurring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mywallet/mywallet/app/models"
)

// Summary rolls the owner's active subscriptions up into monthly and annual
// totals, overall and per category.
func (e *Engine) Summary(ctx context.Context, owner Owner) (*Summary, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	subs, err := e.repo.ListSubscriptions(owner, "")
	if err != nil {
		return nil, err
	}

	out := &Summary{TotalMonthly: decimal.Zero, TotalAnnual: decimal.Zero, ByCategory: []CategoryTotal{}}
	byCategory := map[string]*CategoryTotal{}
	for i := range subs {
		sub := &subs[i]
		if !sub.IsActive() {
			out.CancelledCount++
			continue
		}
		out.ActiveCount++

		monthly := MonthlyEquivalent(sub.Amount, sub.Frequency)
		annual := AnnualEquivalent(sub.Amount, sub.Frequency)
		out.TotalMonthly = out.TotalMonthly.Add(monthly)
		out.TotalAnnual = out.TotalAnnual.Add(annual)

		ct, ok := byCategory[sub.Category]
		if !ok {
			ct = &CategoryTotal{Category: sub.Category, Monthly: decimal.Zero, Annual: decimal.Zero}
			byCategory[sub.Category] = ct
		}
		ct.Count++
		ct.Monthly = ct.Monthly.Add(monthly)
		ct.Annual = ct.Annual.Add(annual)
	}

	for _, ct := range byCategory {
		ct.Monthly = ct.Monthly.Round(2)
		ct.Annual = ct.Annual.Round(2)
		out.ByCategory = append(out.ByCategory, *ct)
	}
	sort.Slice(out.ByCategory, func(i, j int) bool {
		a, b := out.ByCategory[i], out.ByCategory[j]
		if !a.Monthly.Equal(b.Monthly) {
			return a.Monthly.GreaterThan(b.Monthly)
		}
		return a.Category < b.Category
	})
	out.TotalMonthly = out.TotalMonthly.Round(2)
	out.TotalAnnual = out.TotalAnnual.Round(2)
	return out, nil
}

// Upcoming lists active subscriptions due on or before today+horizonDays,
// overdue ones included, ordered by due date.
func (e *Engine) Upcoming(ctx context.Context, owner Owner, horizonDays int) ([]UpcomingCharge, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if horizonDays < 0 {
		return nil, invalid("days", "must not be negative")
	}
	subs, err := e.repo.ListSubscriptions(owner, models.RecurringStatusActive)
	if err != nil {
		return nil, err
	}

	today := e.today()
	out := []UpcomingCharge{}
	for i := range subs {
		sub := &subs[i]
		due := DateOnly(sub.NextBillingDate)
		days := DaysBetween(today, due)
		if days > horizonDays {
			continue
		}
		out = append(out, UpcomingCharge{
			SubscriptionID: sub.ID,
			Name:           sub.Name,
			Amount:         sub.Amount,
			Frequency:      sub.Frequency,
			DueDate:        due,
			DaysUntil:      days,
			HasCard:        sub.HasCard(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out, nil
}

// Alerts derives notifications for the owner's active subscriptions, most
// severe first.
func (e *Engine) Alerts(ctx context.Context, owner Owner) ([]Alert, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	subs, err := e.repo.ListSubscriptions(owner, models.RecurringStatusActive)
	if err != nil {
		return nil, err
	}
	return buildAlerts(subs, e.today()), nil
}

func buildAlerts(subs []models.Subscription, today time.Time) []Alert {
	out := []Alert{}
	for i := range subs {
		sub := &subs[i]
		if !sub.IsActive() {
			continue
		}

		due := DateOnly(sub.NextBillingDate)
		days := DaysBetween(today, due)
		if days >= 0 && days <= sub.AlertDaysBefore {
			severity := SeverityMedium
			if days <= 1 {
				severity = SeverityHigh
			}
			d, n := due, days
			out = append(out, Alert{
				Type:           AlertUpcomingCharge,
				Severity:       severity,
				SubscriptionID: sub.ID,
				Name:           sub.Name,
				Message:        upcomingMessage(sub, days),
				DueDate:        &d,
				DaysUntil:      &n,
			})
		}

		if sub.AutoGenerate && !sub.HasCard() {
			out = append(out, Alert{
				Type:           AlertNoCardAssigned,
				Severity:       SeverityLow,
				SubscriptionID: sub.ID,
				Name:           sub.Name,
				Message:        fmt.Sprintf("%s gera cobranças automáticas sem cartão vinculado", sub.Name),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return severityRank(out[i].Severity) < severityRank(out[j].Severity)
	})
	return out
}

func upcomingMessage(sub *models.Subscription, days int) string {
	amount := sub.Amount.StringFixed(2)
	switch days {
	case 0:
		return fmt.Sprintf("%s (R$ %s) vence hoje", sub.Name, amount)
	case 1:
		return fmt.Sprintf("%s (R$ %s) vence amanhã", sub.Name, amount)
	default:
		return fmt.Sprintf("%s (R$ %s) vence em %d dias", sub.Name, amount, days)
	}
}
