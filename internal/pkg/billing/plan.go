package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mywallet/mywallet/app/models"
)

const (
	FrequencyUnitMonths = "months"
	FrequencyUnitDays   = "days"
)

// BillingFrequency is the cadence of a recurring plan in the gateway's terms.
type BillingFrequency struct {
	Count int    `json:"count"`
	Unit  string `json:"unit"`
}

// Plan is a paid tier users can buy. Lifetime plans have no Frequency.
type Plan struct {
	Key         string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Description string            `json:"description"`
	Price       decimal.Decimal   `json:"price"`
	Frequency   *BillingFrequency `json:"billing_frequency"`
}

// Recurring reports whether the plan is billed through a gateway subscription.
func (p Plan) Recurring() bool {
	return p.Frequency != nil
}

// ExpiresAt returns the end of one billing period starting at from, or nil
// for plans that never expire.
func (p Plan) ExpiresAt(from time.Time) *time.Time {
	if p.Frequency == nil {
		return nil
	}
	var t time.Time
	switch p.Frequency.Unit {
	case FrequencyUnitDays:
		t = from.AddDate(0, 0, p.Frequency.Count)
	default:
		t = from.AddDate(0, p.Frequency.Count, 0)
	}
	return &t
}

var catalog = []Plan{
	{
		Key:         models.PlanMonthly,
		DisplayName: "MyWallet Premium Mensal",
		Description: "Acesso premium ao MyWallet com cobrança mensal",
		Price:       decimal.RequireFromString("19.90"),
		Frequency:   &BillingFrequency{Count: 1, Unit: FrequencyUnitMonths},
	},
	{
		Key:         models.PlanAnnual,
		DisplayName: "MyWallet Premium Anual",
		Description: "Acesso premium ao MyWallet com cobrança anual",
		Price:       decimal.RequireFromString("199.90"),
		Frequency:   &BillingFrequency{Count: 12, Unit: FrequencyUnitMonths},
	},
	{
		Key:         models.PlanLifetime,
		DisplayName: "MyWallet Premium Vitalício",
		Description: "Acesso premium vitalício ao MyWallet com pagamento único",
		Price:       decimal.RequireFromString("497.00"),
	},
}

// Catalog returns the purchasable plans in display order.
func Catalog() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// LookupPlan finds a plan by key, case-insensitively.
func LookupPlan(key string) (Plan, bool) {
	k := normalizePlanKey(key)
	for _, p := range catalog {
		if p.Key == k {
			return p, true
		}
	}
	return Plan{}, false
}

func normalizePlanKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
