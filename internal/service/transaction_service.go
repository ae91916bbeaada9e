package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/points-ledger/internal/domain"
	"github.com/spec-kit/points-ledger/internal/events"
	"github.com/spec-kit/points-ledger/internal/repository"
	apperrors "github.com/spec-kit/points-ledger/pkg/util/errorutil"
)

// TransactionService creates and reconciles ledger transactions. Every
// operation validates against a read of the store first and then commits
// in a single LedgerStore unit of work.
type TransactionService struct {
	store      repository.LedgerStore
	promotions PromotionEvaluator
	pool       EventPointsPool
	dispatcher events.Dispatcher
	now        func() time.Time
}

// TransactionDependencies bundles collaborators for the transaction service.
type TransactionDependencies struct {
	Store      repository.LedgerStore
	Dispatcher events.Dispatcher
	Clock      func() time.Time
}

// NewTransactionService constructs the service.
func NewTransactionService(deps TransactionDependencies) *TransactionService {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &TransactionService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		now:        now,
	}
}

// PurchaseInput describes a purchase recorded by a cashier.
type PurchaseInput struct {
	Utorid       string
	Spent        decimal.Decimal
	PromotionIDs []int64
	Remark       string
}

// AdjustmentInput describes a manager correction. Amount and RelatedID are required.
type AdjustmentInput struct {
	Utorid    string
	Amount    *int64
	RelatedID *int64
	Remark    string
}

// TransferInput describes points sent by the caller to another user.
type TransferInput struct {
	RecipientID int64
	Amount      int64
	Remark      string
}

// RedemptionInput describes a redemption request by the caller.
type RedemptionInput struct {
	Amount int64
	Remark string
}

// EventAwardInput awards Amount to one guest, or to every guest when Utorid is empty.
type EventAwardInput struct {
	EventID int64
	Utorid  string
	Amount  int64
}

// TransferResult holds both rows written by a transfer.
type TransferResult struct {
	Sender    string
	Recipient string
	Sent      *domain.Transaction
	Received  *domain.Transaction
}

// EventAwardResult lists the rows written by an event award.
type EventAwardResult struct {
	EventID      int64
	Single       bool
	Transactions []*domain.Transaction
	PointsRemain int64
}

// CreatePurchase records a purchase for a user and credits the points it earns.
// A suspicious actor's purchase is stored flagged and credits nothing.
func (s *TransactionService) CreatePurchase(ctx context.Context, actor *domain.User, in PurchaseInput) (*domain.Transaction, error) {
	if err := requireRole(actor, domain.RoleCashier); err != nil {
		return nil, err
	}
	if !in.Spent.IsPositive() {
		return nil, apperrors.NewValidationError("spent must be a positive amount", map[string]any{"spent": in.Spent.String()})
	}
	if !in.Spent.Round(2).Equal(in.Spent) {
		return nil, apperrors.NewValidationError("spent must have at most two decimal places", map[string]any{"spent": in.Spent.String()})
	}

	subject, err := s.findUserByUtorid(ctx, in.Utorid)
	if err != nil {
		return nil, err
	}

	var promos PromotionResult
	if len(in.PromotionIDs) > 0 {
		resolved, err := s.store.GetPromotions(ctx, dedupeIDs(in.PromotionIDs))
		if err != nil {
			return nil, err
		}
		used, err := s.store.UsedOneTimePromotions(ctx, subject.ID)
		if err != nil {
			return nil, err
		}
		promos, err = s.promotions.Evaluate(in.Spent, in.PromotionIDs, resolved, used, s.now())
		if err != nil {
			return nil, err
		}
	}

	tx := &domain.Transaction{
		UserID:       subject.ID,
		Utorid:       subject.Utorid,
		Type:         domain.TransactionPurchase,
		CreatedBy:    actor.Utorid,
		Remark:       in.Remark,
		Spent:        in.Spent,
		Earned:       BaseEarned(in.Spent) + promos.BonusPoints,
		PromotionIDs: promos.EligibleIDs(),
		Suspicious:   actor.Suspicious,
	}

	balance := subject.Points
	err = s.store.Atomically(ctx, func(ctx context.Context, ltx repository.LedgerTx) error {
		if err := ltx.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		if applied := tx.AppliedPoints(); applied != 0 {
			var err error
			if balance, err = applyDelta(ctx, ltx, subject.ID, applied); err != nil {
				return err
			}
		}
		if oneTime := promos.OneTimeIDs(); len(oneTime) > 0 {
			if err := ltx.RecordPromotionUsage(ctx, subject.ID, tx.ID, oneTime); err != nil {
				if errors.Is(err, repository.ErrPromotionAlreadyUsed) {
					return apperrors.NewConflict("one-time promotion was used concurrently", map[string]any{"promotionIds": oneTime})
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishCreated(ctx, tx, balance)
	return tx, nil
}

// CreateAdjustment applies a signed manager correction tied to an existing transaction.
func (s *TransactionService) CreateAdjustment(ctx context.Context, actor *domain.User, in AdjustmentInput) (*domain.Transaction, error) {
	if err := requireRole(actor, domain.RoleManager); err != nil {
		return nil, err
	}
	if in.Amount == nil {
		return nil, apperrors.NewValidationError("amount is required", nil)
	}
	if in.RelatedID == nil {
		return nil, apperrors.NewValidationError("relatedId is required", nil)
	}

	subject, err := s.findUserByUtorid(ctx, in.Utorid)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetTransaction(ctx, *in.RelatedID); err != nil {
		return nil, notFound(err, "transaction", *in.RelatedID)
	}
	if subject.Points+*in.Amount < 0 {
		return nil, apperrors.NewInsufficientBalance(subject.Points, -*in.Amount)
	}

	relatedID := *in.RelatedID
	tx := &domain.Transaction{
		UserID:    subject.ID,
		Utorid:    subject.Utorid,
		Type:      domain.TransactionAdjustment,
		CreatedBy: actor.Utorid,
		Remark:    in.Remark,
		Amount:    *in.Amount,
		RelatedID: &relatedID,
	}

	balance := subject.Points
	err = s.store.Atomically(ctx, func(ctx context.Context, ltx repository.LedgerTx) error {
		if tx.Amount != 0 {
			var err error
			if balance, err = applyDelta(ctx, ltx, subject.ID, tx.Amount); err != nil {
				return err
			}
		}
		return ltx.InsertTransaction(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.publishCreated(ctx, tx, balance)
	return tx, nil
}

// CreateTransfer moves points from sender to a recipient, writing one row for each side.
func (s *TransactionService) CreateTransfer(ctx context.Context, sender *domain.User, in TransferInput) (*TransferResult, error) {
	if sender == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if in.Amount <= 0 {
		return nil, apperrors.NewValidationError("amount must be a positive integer", map[string]any{"amount": in.Amount})
	}
	recipient, err := s.store.GetUserByID(ctx, in.RecipientID)
	if err != nil {
		return nil, notFound(err, "user", in.RecipientID)
	}
	if recipient.ID == sender.ID {
		return nil, apperrors.NewValidationError("cannot transfer points to yourself", nil)
	}
	if !sender.Verified {
		return nil, apperrors.NewForbidden("sender must be verified")
	}
	if sender.Points < in.Amount {
		return nil, apperrors.NewInsufficientBalance(sender.Points, in.Amount)
	}

	senderID, recipientID := sender.ID, recipient.ID
	sent := &domain.Transaction{
		UserID:    sender.ID,
		Utorid:    sender.Utorid,
		Type:      domain.TransactionTransfer,
		CreatedBy: sender.Utorid,
		Remark:    in.Remark,
		Amount:    -in.Amount,
		RelatedID: &recipientID,
	}
	received := &domain.Transaction{
		UserID:    recipient.ID,
		Utorid:    recipient.Utorid,
		Type:      domain.TransactionTransfer,
		CreatedBy: sender.Utorid,
		Remark:    in.Remark,
		Amount:    in.Amount,
		RelatedID: &senderID,
	}

	balances := make(map[int64]int64, 2)
	err = s.store.Atomically(ctx, func(ctx context.Context, ltx repository.LedgerTx) error {
		// Lock rows in ascending id order so opposing transfers cannot deadlock.
		deltas := []struct {
			userID int64
			delta  int64
		}{{sender.ID, -in.Amount}, {recipient.ID, in.Amount}}
		sort.Slice(deltas, func(i, j int) bool { return deltas[i].userID < deltas[j].userID })
		for _, d := range deltas {
			balance, err := applyDelta(ctx, ltx, d.userID, d.delta)
			if err != nil {
				return err
			}
			balances[d.userID] = balance
		}
		if err := ltx.InsertTransaction(ctx, sent); err != nil {
			return err
		}
		return ltx.InsertTransaction(ctx, received)
	})
	if err != nil {
		return nil, err
	}

	s.publishCreated(ctx, sent, balances[sender.ID])
	s.publishCreated(ctx, received, balances[recipient.ID])
	return &TransferResult{
		Sender:    sender.Utorid,
		Recipient: recipient.Utorid,
		Sent:      sent,
		Received:  received,
	}, nil
}

// CreateRedemption records a pending redemption. Points are only debited when it is processed.
func (s *TransactionService) CreateRedemption(ctx context.Context, user *domain.User, in RedemptionInput) (*domain.Transaction, error) {
	if user == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if in.Amount <= 0 {
		return nil, apperrors.NewValidationError("amount must be a positive integer", map[string]any{"amount": in.Amount})
	}
	if !user.Verified {
		return nil, apperrors.NewForbidden("user must be verified")
	}
	if user.Points < in.Amount {
		return nil, apperrors.NewInsufficientBalance(user.Points, in.Amount)
	}

	tx := &domain.Transaction{
		UserID:     user.ID,
		Utorid:     user.Utorid,
		Type:       domain.TransactionRedemption,
		CreatedBy:  user.Utorid,
		Remark:     in.Remark,
		Amount:     in.Amount,
		Redemption: &domain.Redemption{Status: domain.RedemptionPending},
	}
	err := s.store.Atomically(ctx, func(ctx context.Context, ltx repository.LedgerTx) error {
		return ltx.InsertTransaction(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.publishCreated(ctx, tx, user.Points)
	return tx, nil
}

// ProcessRedemption debits a pending redemption and marks it processed by actor.
func (s *TransactionService) ProcessRedemption(ctx context.Context, actor *domain.User, transactionID int64) (*domain.Transaction, error) {
	if err := requireRole(actor, domain.RoleCashier); err != nil {
		return nil, err
	}
	current, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, notFound(err, "transaction", transactionID)
	}
	if current.Type != domain.TransactionRedemption {
		return nil, apperrors.NewValidationError("transaction is not a redemption", map[string]any{"type": current.Type})
	}
	if current.Redemption != nil && !current.Redemption.Pending() {
		return nil, redemptionProcessed(transactionID)
	}

	var (
		processed *domain.Transaction
		balance   int64
	)
	err = s.store.Atomically(ctx, func(ctx context.Context, ltx repository.LedgerTx) error {
		locked, err := ltx.LockTransaction(ctx, transactionID)
		if err != nil {
			return notFound(err, "transaction", transactionID)
		}
		if locked.Redemption == nil {
			locked.Redemption = &domain.Redemption{Status: domain.RedemptionPending}
		}
		at := s.now()
		if err := locked.Redemption.Process(actor.Utorid, at); err != nil {
			return redemptionProcessed(transactionID)
		}
		if balance, err = applyDelta(ctx, ltx, locked.UserID, -locked.Amount); err != nil {
			return err
		}
		if err := ltx.MarkRedemptionProcessed(ctx, transactionID, actor.Utorid, at); err != nil {
			if errors.Is(err, repository.ErrAlreadyProcessed) {
				return redemptionProcessed(transactionID)
			}
			return err
		}
		processed = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:          events.EventRedemptionProcessed,
		TransactionID: processed.ID,
		Actor:         actor.Utorid,
		Payload: events.RedemptionProcessedPayload{
			Utorid:   processed.Utorid,
			Redeemed: processed.Amount,
			Balance:  balance,
		},
	})
	return processed, nil
}

// CreateEventAward credits event guests from the event's pool.
func (s *TransactionService) CreateEventAward(ctx context.Context, actor *domain.User, in EventAwardInput) (*EventAwardResult, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	event, err := s.store.GetEvent(ctx, in.EventID)
	if err != nil {
		return nil, notFound(err, "event", in.EventID)
	}
	if !actor.Role.AtLeast(domain.RoleManager) && !event.IsOrganizer(actor.ID) {
		return nil, apperrors.NewForbidden("only managers or event organizers may award points")
	}
	plan, err := s.pool.PlanAward(event, in.Utorid, in.Amount)
	if err != nil {
		return nil, err
	}

	result := &EventAwardResult{EventID: event.ID, Single: in.Utorid != ""}
	err = s.store.Atomically(ctx, func(ctx context.Context, ltx repository.LedgerTx) error {
		result.Transactions = result.Transactions[:0]
		remain, err := ltx.AdjustPool(ctx, plan.EventID, plan.Total)
		if err != nil {
			if errors.Is(err, repository.ErrPoolExhausted) {
				return poolExhausted(remain, plan.Total)
			}
			return notFound(err, "event", plan.EventID)
		}
		result.PointsRemain = remain

		eventID := plan.EventID
		for _, guest := range plan.Targets {
			if _, err := applyDelta(ctx, ltx, guest.UserID, plan.PerGuest); err != nil {
				return err
			}
			tx := &domain.Transaction{
				UserID:    guest.UserID,
				Utorid:    guest.Utorid,
				Type:      domain.TransactionEvent,
				CreatedBy: actor.Utorid,
				Amount:    plan.PerGuest,
				RelatedID: &eventID,
			}
			if err := ltx.InsertTransaction(ctx, tx); err != nil {
				return err
			}
			result.Transactions = append(result.Transactions, tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recipients := make([]string, 0, len(result.Transactions))
	for _, tx := range result.Transactions {
		recipients = append(recipients, tx.Utorid)
	}
	s.publishEvent(ctx, events.Event{
		Type:  events.EventEventPointsAwarded,
		Actor: actor.Utorid,
		Payload: events.EventPointsAwardedPayload{
			EventID:      event.ID,
			Recipients:   recipients,
			PerGuest:     plan.PerGuest,
			PointsRemain: result.PointsRemain,
		},
	})
	return result, nil
}

// SetSuspicious flags or clears a transaction, reversing or restoring its
// recorded points change. Setting the current value is a no-op.
func (s *TransactionService) SetSuspicious(ctx context.Context, actor *domain.User, transactionID int64, suspicious bool) (*domain.Transaction, error) {
	if err := requireRole(actor, domain.RoleManager); err != nil {
		return nil, err
	}
	current, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, notFound(err, "transaction", transactionID)
	}
	if !current.Flaggable() {
		return nil, apperrors.NewValidationError("redemptions cannot be flagged suspicious", map[string]any{"transactionId": transactionID})
	}
	if current.Suspicious == suspicious {
		return current, nil
	}

	var (
		updated *domain.Transaction
		changed bool
		delta   int64
		balance int64
	)
	err = s.store.Atomically(ctx, func(ctx context.Context, ltx repository.LedgerTx) error {
		locked, err := ltx.LockTransaction(ctx, transactionID)
		if err != nil {
			return notFound(err, "transaction", transactionID)
		}
		updated = locked
		if locked.Suspicious == suspicious {
			return nil
		}
		delta = locked.PointsChange()
		if suspicious {
			delta = -delta
		}
		if balance, err = applyDelta(ctx, ltx, locked.UserID, delta); err != nil {
			return err
		}
		if err := ltx.SetSuspicious(ctx, transactionID, suspicious); err != nil {
			return err
		}
		locked.Suspicious = suspicious
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publishEvent(ctx, events.Event{
			Type:          events.EventTransactionSuspiciousChanged,
			TransactionID: updated.ID,
			Actor:         actor.Utorid,
			Payload: events.SuspiciousChangedPayload{
				Utorid:     updated.Utorid,
				Suspicious: suspicious,
				Delta:      delta,
				Balance:    balance,
			},
		})
	}
	return updated, nil
}

// GetTransaction returns a single transaction for managers.
func (s *TransactionService) GetTransaction(ctx context.Context, actor *domain.User, transactionID int64) (*domain.Transaction, error) {
	if err := requireRole(actor, domain.RoleManager); err != nil {
		return nil, err
	}
	tx, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, notFound(err, "transaction", transactionID)
	}
	return tx, nil
}

// BaseEarned is one point per $0.25 spent, rounded to the nearest point.
func BaseEarned(spent decimal.Decimal) int64 {
	return spent.Div(domain.DollarsPerPoint).Round(0).IntPart()
}

// applyDelta changes a balance inside a unit of work and returns the new balance.
func applyDelta(ctx context.Context, ltx repository.LedgerTx, userID, delta int64) (int64, error) {
	balance, err := ltx.AdjustBalance(ctx, userID, delta)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientPoints) {
			return 0, apperrors.NewInsufficientBalance(balance, -delta)
		}
		return 0, notFound(err, "user", userID)
	}
	return balance, nil
}

func (s *TransactionService) findUserByUtorid(ctx context.Context, utorid string) (*domain.User, error) {
	if utorid == "" {
		return nil, apperrors.NewValidationError("utorid is required", nil)
	}
	user, err := s.store.GetUserByUtorid(ctx, utorid)
	if err != nil {
		return nil, notFound(err, "user", utorid)
	}
	return user, nil
}

func (s *TransactionService) publishCreated(ctx context.Context, tx *domain.Transaction, balance int64) {
	s.publishEvent(ctx, events.Event{
		Type:          events.EventTransactionCreated,
		TransactionID: tx.ID,
		Actor:         tx.CreatedBy,
		Payload: events.TransactionCreatedPayload{
			Type:    tx.Type,
			Utorid:  tx.Utorid,
			Applied: tx.AppliedPoints(),
			Balance: balance,
		},
	})
}

func (s *TransactionService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func requireRole(actor *domain.User, min domain.Role) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if !actor.Role.AtLeast(min) {
		return apperrors.NewForbidden(fmt.Sprintf("%s role or higher required", min))
	}
	return nil
}

// notFound turns a missing row into a NotFound error and passes other errors through.
func notFound(err error, resource string, id any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return err
}

func redemptionProcessed(id int64) error {
	return apperrors.NewConflict("redemption has already been processed", map[string]any{"transactionId": id})
}
