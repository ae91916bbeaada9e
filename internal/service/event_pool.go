package service

import (
	"fmt"

	"github.com/spec-kit/points-ledger/internal/domain"
	apperrors "github.com/spec-kit/points-ledger/pkg/util/errorutil"
)

// AwardPlan is a validated event award ready to commit.
type AwardPlan struct {
	EventID  int64
	Targets  []domain.EventMember
	PerGuest int64
	Total    int64
}

// EventPointsPool checks awards against an event's remaining pool.
// The store's conditional pool update enforces the same bound at commit.
type EventPointsPool struct{}

// PlanAward resolves the guests to award and checks the pool covers them.
// An empty subject awards every guest.
func (EventPointsPool) PlanAward(event *domain.Event, subject string, perGuest int64) (*AwardPlan, error) {
	if perGuest <= 0 {
		return nil, apperrors.NewValidationError("amount must be a positive integer", map[string]interface{}{"amount": perGuest})
	}

	var targets []domain.EventMember
	if subject != "" {
		guest, ok := event.Guest(subject)
		if !ok {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("user %s is not on the guest list", subject),
				map[string]interface{}{"utorid": subject},
			)
		}
		targets = []domain.EventMember{guest}
	} else {
		if len(event.Guests) == 0 {
			return nil, apperrors.NewValidationError("event has no guests to award", nil)
		}
		targets = append(targets, event.Guests...)
	}

	total := perGuest * int64(len(targets))
	if total/int64(len(targets)) != perGuest {
		return nil, apperrors.NewValidationError("award total overflows", nil)
	}
	if event.PointsRemain < total {
		return nil, poolExhausted(event.PointsRemain, total)
	}
	return &AwardPlan{EventID: event.ID, Targets: targets, PerGuest: perGuest, Total: total}, nil
}

func poolExhausted(remain, requested int64) error {
	return apperrors.NewValidationError(
		"remaining event points are less than the requested award",
		map[string]interface{}{"pointsRemain": remain, "requested": requested},
	)
}
