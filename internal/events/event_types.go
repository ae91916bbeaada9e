package events

import (
	"time"

	"github.com/spec-kit/points-ledger/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTransactionCreated           EventType = "transaction_created"
	EventRedemptionProcessed          EventType = "redemption_processed"
	EventTransactionSuspiciousChanged EventType = "transaction_suspicious_changed"
	EventEventPointsAwarded           EventType = "event_points_awarded"
)

// LedgerEventTypes lists every event the ledger publishes.
func LedgerEventTypes() []EventType {
	return []EventType{
		EventTransactionCreated,
		EventRedemptionProcessed,
		EventTransactionSuspiciousChanged,
		EventEventPointsAwarded,
	}
}

// Event represents a committed ledger change.
type Event struct {
	ID            string      `json:"id"`
	Type          EventType   `json:"type"`
	TransactionID int64       `json:"transaction_id,omitempty"`
	Actor         string      `json:"actor"`
	Timestamp     time.Time   `json:"timestamp"`
	Payload       interface{} `json:"payload"`
}

// TransactionCreatedPayload payload.
type TransactionCreatedPayload struct {
	Type    domain.TransactionType `json:"type"`
	Utorid  string                 `json:"utorid"`
	Applied int64                  `json:"applied"`
	Balance int64                  `json:"balance"`
}

// RedemptionProcessedPayload payload.
type RedemptionProcessedPayload struct {
	Utorid   string `json:"utorid"`
	Redeemed int64  `json:"redeemed"`
	Balance  int64  `json:"balance"`
}

// SuspiciousChangedPayload payload.
type SuspiciousChangedPayload struct {
	Utorid     string `json:"utorid"`
	Suspicious bool   `json:"suspicious"`
	Delta      int64  `json:"delta"`
	Balance    int64  `json:"balance"`
}

// EventPointsAwardedPayload payload.
type EventPointsAwardedPayload struct {
	EventID      int64    `json:"event_id"`
	Recipients   []string `json:"recipients"`
	PerGuest     int64    `json:"per_guest"`
	PointsRemain int64    `json:"points_remain"`
}
