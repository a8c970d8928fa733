package recurring

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mywallet/mywallet/app/models"
)

const dateLayout = "2006-01-02"

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD or RFC3339 value into a calendar date.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(t), nil
}

// ParseFrequency maps user input to a Frequency. ok is false for unknown values.
func ParseFrequency(value string) (models.Frequency, bool) {
	f := models.Frequency(strings.ToUpper(strings.TrimSpace(value)))
	return f, f.Valid()
}

// Advance moves date forward by one billing cycle. Month based cadences clamp
// to the last day of the target month, so Jan 31 + 1 month is Feb 28/29.
// Unknown frequencies advance monthly.
func Advance(date time.Time, f models.Frequency) time.Time {
	return AdvanceN(date, f, 1)
}

// AdvanceN moves date forward by n billing cycles in one step.
func AdvanceN(date time.Time, f models.Frequency, n int) time.Time {
	date = DateOnly(date)
	months := cycleMonths(f)
	if months == 0 {
		return date.AddDate(0, 0, 7*n)
	}
	return addMonths(date, months*n)
}

// AdvanceFrom moves prev forward by one billing cycle, keeping month based
// cadences on the day of month of anchor. A date clamped by a short month
// returns to the anchor day on the next cycle, so stepping from the anchor n
// times matches AdvanceN(anchor, f, n). When prev is not on the anchor's
// schedule (a weekly date after a frequency change) its own day is kept.
func AdvanceFrom(prev, anchor time.Time, f models.Frequency) time.Time {
	prev = DateOnly(prev)
	months := cycleMonths(f)
	if months == 0 {
		return prev.AddDate(0, 0, 7)
	}
	day := anchor.Day()
	if clampDay(day, prev) != prev.Day() {
		day = prev.Day()
	}
	return addMonthsOnDay(prev, months, day)
}

// cycleMonths is the length of one cycle in months, 0 for weekly.
func cycleMonths(f models.Frequency) int {
	switch f {
	case models.FrequencyWeekly:
		return 0
	case models.FrequencyQuarterly:
		return 3
	case models.FrequencySemiAnnual:
		return 6
	case models.FrequencyYearly:
		return 12
	default:
		return 1
	}
}

func addMonths(date time.Time, months int) time.Time {
	return addMonthsOnDay(date, months, date.Day())
}

func addMonthsOnDay(date time.Time, months, day int) time.Time {
	y, m, _ := date.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	return time.Date(first.Year(), first.Month(), clampDay(day, first), 0, 0, 0, 0, time.UTC)
}

// clampDay limits day to the length of the month containing t.
func clampDay(day int, t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first); day > last {
		return last
	}
	return day
}

func daysIn(monthStart time.Time) int {
	return monthStart.AddDate(0, 1, -1).Day()
}

// DaysBetween returns the whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}

// MonthlyEquivalent converts an amount charged at frequency f into its
// average monthly cost.
func MonthlyEquivalent(amount decimal.Decimal, f models.Frequency) decimal.Decimal {
	switch f {
	case models.FrequencyWeekly:
		return amount.Mul(decimal.NewFromInt(52)).Div(decimal.NewFromInt(12))
	case models.FrequencyQuarterly:
		return amount.Div(decimal.NewFromInt(3))
	case models.FrequencySemiAnnual:
		return amount.Div(decimal.NewFromInt(6))
	case models.FrequencyYearly:
		return amount.Div(decimal.NewFromInt(12))
	default:
		return amount
	}
}

// AnnualEquivalent converts an amount charged at frequency f into its yearly cost.
func AnnualEquivalent(amount decimal.Decimal, f models.Frequency) decimal.Decimal {
	switch f {
	case models.FrequencyWeekly:
		return amount.Mul(decimal.NewFromInt(52))
	case models.FrequencyQuarterly:
		return amount.Mul(decimal.NewFromInt(4))
	case models.FrequencySemiAnnual:
		return amount.Mul(decimal.NewFromInt(2))
	case models.FrequencyYearly:
		return amount
	default:
		return amount.Mul(decimal.NewFromInt(12))
	}
}
