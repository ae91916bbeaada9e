package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/points-ledger/internal/domain"
	"github.com/spec-kit/points-ledger/internal/service"
)

// CreateTransactionRequest payload for POST /transactions.
type CreateTransactionRequest struct {
	Utorid       string           `json:"utorid" validate:"required"`
	Type         string           `json:"type" validate:"required,oneof=purchase adjustment"`
	Spent        *decimal.Decimal `json:"spent"`
	PromotionIDs []int64          `json:"promotionIds" validate:"omitempty,dive,gt=0"`
	Amount       *int64           `json:"amount"`
	RelatedID    *int64           `json:"relatedId"`
	Remark       string           `json:"remark"`
}

// UserTransactionRequest payload for transfers and redemptions.
type UserTransactionRequest struct {
	Type   string `json:"type" validate:"required"`
	Amount *int64 `json:"amount" validate:"required"`
	Remark string `json:"remark"`
}

// EventTransactionRequest payload for POST /events/:eventId/transactions.
type EventTransactionRequest struct {
	Type   string `json:"type" validate:"omitempty,eq=event"`
	Utorid string `json:"utorid"`
	Amount *int64 `json:"amount" validate:"required"`
}

// SuspiciousRequest payload for PATCH /transactions/:transactionId/suspicious.
type SuspiciousRequest struct {
	Suspicious *bool `json:"suspicious" validate:"required"`
}

// ProcessedRequest payload for PATCH /transactions/:transactionId/processed.
type ProcessedRequest struct {
	Processed *bool `json:"processed" validate:"required"`
}

// PurchaseResponse is the purchase view. Earned is the amount applied to the balance.
type PurchaseResponse struct {
	ID           int64       `json:"id"`
	Utorid       string      `json:"utorid"`
	Type         string      `json:"type"`
	Spent        json.Number `json:"spent"`
	Earned       int64       `json:"earned"`
	Remark       string      `json:"remark"`
	PromotionIDs []int64     `json:"promotionIds"`
	CreatedBy    string      `json:"createdBy"`
}

// AdjustmentResponse is the adjustment view.
type AdjustmentResponse struct {
	ID           int64   `json:"id"`
	Utorid       string  `json:"utorid"`
	Amount       int64   `json:"amount"`
	Type         string  `json:"type"`
	RelatedID    int64   `json:"relatedId"`
	Remark       string  `json:"remark"`
	PromotionIDs []int64 `json:"promotionIds"`
	CreatedBy    string  `json:"createdBy"`
}

// TransferResponse is the sender-side transfer view.
type TransferResponse struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Type      string    `json:"type"`
	Sent      int64     `json:"sent"`
	Remark    string    `json:"remark"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// RedemptionResponse is the redemption view before and after processing.
type RedemptionResponse struct {
	ID          int64   `json:"id"`
	Utorid      string  `json:"utorid"`
	Type        string  `json:"type"`
	ProcessedBy *string `json:"processedBy"`
	Amount      int64   `json:"amount"`
	Redeemed    *int64  `json:"redeemed,omitempty"`
	Remark      string  `json:"remark"`
	CreatedBy   string  `json:"createdBy"`
}

// EventAwardResponse is one guest's event award.
type EventAwardResponse struct {
	ID        int64  `json:"id"`
	Recipient string `json:"recipient"`
	Awarded   int64  `json:"awarded"`
	Type      string `json:"type"`
	RelatedID int64  `json:"relatedId"`
	CreatedBy string `json:"createdBy"`
}

// TransactionResponse is the full transaction record.
type TransactionResponse struct {
	ID           int64        `json:"id"`
	Utorid       string       `json:"utorid"`
	Type         string       `json:"type"`
	Spent        *json.Number `json:"spent,omitempty"`
	Earned       *int64       `json:"earned,omitempty"`
	Amount       int64        `json:"amount"`
	RelatedID    *int64       `json:"relatedId"`
	PromotionIDs []int64      `json:"promotionIds"`
	ProcessedBy  *string      `json:"processedBy,omitempty"`
	Redeemed     *int64       `json:"redeemed,omitempty"`
	Suspicious   bool         `json:"suspicious"`
	Remark       string       `json:"remark"`
	CreatedBy    string       `json:"createdBy"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// NewPurchaseResponse builds the purchase view.
func NewPurchaseResponse(t *domain.Transaction) PurchaseResponse {
	return PurchaseResponse{
		ID:           t.ID,
		Utorid:       t.Utorid,
		Type:         string(t.Type),
		Spent:        json.Number(t.Spent.String()),
		Earned:       t.AppliedPoints(),
		Remark:       t.Remark,
		PromotionIDs: promotionIDs(t),
		CreatedBy:    t.CreatedBy,
	}
}

// NewAdjustmentResponse builds the adjustment view.
func NewAdjustmentResponse(t *domain.Transaction) AdjustmentResponse {
	resp := AdjustmentResponse{
		ID:           t.ID,
		Utorid:       t.Utorid,
		Amount:       t.Amount,
		Type:         string(t.Type),
		Remark:       t.Remark,
		PromotionIDs: promotionIDs(t),
		CreatedBy:    t.CreatedBy,
	}
	if t.RelatedID != nil {
		resp.RelatedID = *t.RelatedID
	}
	return resp
}

// NewTransferResponse builds the sender-side transfer view.
func NewTransferResponse(r *service.TransferResult) TransferResponse {
	return TransferResponse{
		ID:        r.Sent.ID,
		Sender:    r.Sender,
		Recipient: r.Recipient,
		Type:      string(r.Sent.Type),
		Sent:      -r.Sent.Amount,
		Remark:    r.Sent.Remark,
		CreatedBy: r.Sent.CreatedBy,
		CreatedAt: r.Sent.CreatedAt,
	}
}

// NewRedemptionResponse builds the redemption view.
func NewRedemptionResponse(t *domain.Transaction) RedemptionResponse {
	resp := RedemptionResponse{
		ID:        t.ID,
		Utorid:    t.Utorid,
		Type:      string(t.Type),
		Amount:    t.Amount,
		Remark:    t.Remark,
		CreatedBy: t.CreatedBy,
	}
	if t.Redemption != nil && !t.Redemption.Pending() {
		by := t.Redemption.ProcessedBy
		redeemed := t.Amount
		resp.ProcessedBy = &by
		resp.Redeemed = &redeemed
	}
	return resp
}

// NewEventAwardResponses builds one view per awarded guest. A single-guest
// award is identified by the event id.
func NewEventAwardResponses(r *service.EventAwardResult) []EventAwardResponse {
	out := make([]EventAwardResponse, 0, len(r.Transactions))
	for _, t := range r.Transactions {
		id := t.ID
		if r.Single {
			id = r.EventID
		}
		out = append(out, EventAwardResponse{
			ID:        id,
			Recipient: t.Utorid,
			Awarded:   t.Amount,
			Type:      string(t.Type),
			RelatedID: r.EventID,
			CreatedBy: t.CreatedBy,
		})
	}
	return out
}

// NewTransactionResponse builds the full record view.
func NewTransactionResponse(t *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:           t.ID,
		Utorid:       t.Utorid,
		Type:         string(t.Type),
		Amount:       t.Amount,
		RelatedID:    t.RelatedID,
		PromotionIDs: promotionIDs(t),
		Suspicious:   t.Suspicious,
		Remark:       t.Remark,
		CreatedBy:    t.CreatedBy,
		CreatedAt:    t.CreatedAt,
	}
	switch t.Type {
	case domain.TransactionPurchase:
		spent := json.Number(t.Spent.String())
		earned := t.Earned
		resp.Spent = &spent
		resp.Earned = &earned
		resp.Amount = t.Earned
	case domain.TransactionRedemption:
		if t.Redemption != nil && !t.Redemption.Pending() {
			by := t.Redemption.ProcessedBy
			redeemed := t.Amount
			resp.ProcessedBy = &by
			resp.Redeemed = &redeemed
		}
	}
	return resp
}

func promotionIDs(t *domain.Transaction) []int64 {
	if t.PromotionIDs == nil {
		return []int64{}
	}
	return t.PromotionIDs
}
