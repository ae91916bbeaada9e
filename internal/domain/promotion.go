package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PromotionType distinguishes single-use from repeatable promotions.
type PromotionType string

const (
	PromotionOneTime   PromotionType = "one-time"
	PromotionRecurring PromotionType = "recurring"
)

// Promotion grants bonus points on qualifying purchases.
type Promotion struct {
	ID          int64
	Name        string
	Description string
	Type        PromotionType
	StartTime   time.Time
	EndTime     time.Time
	MinSpending *decimal.Decimal
	Rate        *decimal.Decimal
	Points      int64
}

// ActiveAt reports whether now falls in the half-open window [StartTime, EndTime).
func (p *Promotion) ActiveAt(now time.Time) bool {
	return !now.Before(p.StartTime) && now.Before(p.EndTime)
}

// MeetsMinimum reports whether spent satisfies the optional spending threshold.
func (p *Promotion) MeetsMinimum(spent decimal.Decimal) bool {
	if p.MinSpending == nil {
		return true
	}
	return spent.GreaterThanOrEqual(*p.MinSpending)
}

// Bonus returns the points this promotion adds to a purchase of spent.
func (p *Promotion) Bonus(spent decimal.Decimal) int64 {
	bonus := p.Points
	if p.Rate != nil && !p.Rate.IsZero() {
		bonus += spent.Mul(*p.Rate).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	}
	return bonus
}
