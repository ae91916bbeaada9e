package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates ledger entry kinds.
type TransactionType string

const (
	TransactionPurchase   TransactionType = "purchase"
	TransactionAdjustment TransactionType = "adjustment"
	TransactionTransfer   TransactionType = "transfer"
	TransactionRedemption TransactionType = "redemption"
	TransactionEvent      TransactionType = "event"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionPurchase, TransactionAdjustment, TransactionTransfer, TransactionRedemption, TransactionEvent:
		return true
	}
	return false
}

// DollarsPerPoint is the base purchase earning rate: one point per $0.25 spent.
var DollarsPerPoint = decimal.RequireFromString("0.25")

// RedemptionStatus is the state of a redemption request.
type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionProcessed RedemptionStatus = "processed"
)

// ErrRedemptionProcessed is returned when processing an already processed redemption.
var ErrRedemptionProcessed = errors.New("redemption already processed")

// Redemption tracks the one-shot Pending -> Processed transition.
type Redemption struct {
	Status      RedemptionStatus
	ProcessedBy string
	ProcessedAt *time.Time
}

// Pending reports whether the redemption still awaits processing.
func (r Redemption) Pending() bool {
	return r.Status != RedemptionProcessed
}

// Process moves a pending redemption to processed.
func (r *Redemption) Process(by string, at time.Time) error {
	if !r.Pending() {
		return ErrRedemptionProcessed
	}
	r.Status = RedemptionProcessed
	r.ProcessedBy = by
	r.ProcessedAt = &at
	return nil
}

// Transaction is an append-only ledger entry. Only Suspicious and the
// redemption state change after creation.
type Transaction struct {
	ID        int64
	UserID    int64
	Utorid    string
	Type      TransactionType
	CreatedBy string
	CreatedAt time.Time
	Remark    string

	// purchase
	Spent        decimal.Decimal
	Earned       int64
	PromotionIDs []int64

	// adjustment, transfer, event; redemption stores the redeemed amount here
	Amount    int64
	RelatedID *int64

	Redemption *Redemption

	Suspicious bool
}

// PointsChange is the historical signed delta this entry represents once
// applied. Pending redemptions represent nothing.
func (t *Transaction) PointsChange() int64 {
	switch t.Type {
	case TransactionPurchase:
		return t.Earned
	case TransactionAdjustment, TransactionTransfer, TransactionEvent:
		return t.Amount
	case TransactionRedemption:
		if t.Redemption != nil && !t.Redemption.Pending() {
			return -t.Amount
		}
	}
	return 0
}

// AppliedPoints is the delta currently reflected in the owner's balance.
func (t *Transaction) AppliedPoints() int64 {
	if t.Suspicious {
		return 0
	}
	return t.PointsChange()
}

// Flaggable reports whether the suspicious flag may be toggled on this entry.
func (t *Transaction) Flaggable() bool {
	return t.Type != TransactionRedemption
}

// Clone returns a deep copy.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	if t.PromotionIDs != nil {
		cp.PromotionIDs = append([]int64(nil), t.PromotionIDs...)
	}
	if t.RelatedID != nil {
		id := *t.RelatedID
		cp.RelatedID = &id
	}
	if t.Redemption != nil {
		r := *t.Redemption
		if t.Redemption.ProcessedAt != nil {
			at := *t.Redemption.ProcessedAt
			r.ProcessedAt = &at
		}
		cp.Redemption = &r
	}
	return &cp
}
