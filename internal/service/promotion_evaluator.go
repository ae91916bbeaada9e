package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/points-ledger/internal/domain"
	apperrors "github.com/spec-kit/points-ledger/pkg/util/errorutil"
)

// PromotionResult lists the promotions that apply to a purchase and the points they add.
type PromotionResult struct {
	Eligible    []domain.Promotion
	BonusPoints int64
}

// EligibleIDs returns the ids of eligible promotions in evaluation order.
func (r PromotionResult) EligibleIDs() []int64 {
	ids := make([]int64, 0, len(r.Eligible))
	for _, p := range r.Eligible {
		ids = append(ids, p.ID)
	}
	return ids
}

// OneTimeIDs returns the eligible one-time promotion ids, which must be recorded as used.
func (r PromotionResult) OneTimeIDs() []int64 {
	var ids []int64
	for _, p := range r.Eligible {
		if p.Type == domain.PromotionOneTime {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// PromotionEvaluator decides which requested promotions apply to a purchase.
type PromotionEvaluator struct{}

// Evaluate checks requested against the resolved promotions and the user's
// consumed one-time set. Missing, already used and inactive promotions are
// errors. Promotions whose minimum spend is unmet are skipped.
func (PromotionEvaluator) Evaluate(
	spent decimal.Decimal,
	requested []int64,
	resolved []domain.Promotion,
	usedOneTime map[int64]struct{},
	now time.Time,
) (PromotionResult, error) {
	byID := make(map[int64]domain.Promotion, len(resolved))
	for _, p := range resolved {
		byID[p.ID] = p
	}

	ids := dedupeIDs(requested)
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return PromotionResult{}, apperrors.NewValidationError(
				fmt.Sprintf("promotion %d not found", id),
				map[string]interface{}{"promotionId": id},
			)
		}
	}

	var result PromotionResult
	for _, id := range ids {
		p := byID[id]
		if p.Type == domain.PromotionOneTime {
			if _, used := usedOneTime[id]; used {
				return PromotionResult{}, apperrors.NewValidationError(
					fmt.Sprintf("promotion %q has already been used", p.Name),
					map[string]interface{}{"promotionId": id},
				)
			}
		}
		if !p.ActiveAt(now) {
			return PromotionResult{}, apperrors.NewValidationError(
				fmt.Sprintf("promotion %q is not active", p.Name),
				map[string]interface{}{"promotionId": id},
			)
		}
		if !p.MeetsMinimum(spent) {
			continue
		}
		result.Eligible = append(result.Eligible, p)
		result.BonusPoints += p.Bonus(spent)
	}
	return result, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
