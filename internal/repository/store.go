package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/points-ledger/internal/domain"
)

var (
	// ErrInsufficientPoints is returned when a balance change would drive points below zero.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrPoolExhausted is returned when an event pool cannot cover an award.
	ErrPoolExhausted = errors.New("event points pool exhausted")
	// ErrAlreadyProcessed is returned when a redemption was processed before.
	ErrAlreadyProcessed = errors.New("redemption already processed")
	// ErrPromotionAlreadyUsed is returned when a one-time promotion usage already exists.
	ErrPromotionAlreadyUsed = errors.New("promotion already used")
	// ErrDuplicate is returned when a unique key such as utorid is taken.
	ErrDuplicate = errors.New("duplicate record")
)

// LedgerReader exposes the reads the transaction engine validates against.
// Missing rows are reported as pgx.ErrNoRows.
type LedgerReader interface {
	GetUserByUtorid(ctx context.Context, utorid string) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error)
	GetPromotions(ctx context.Context, ids []int64) ([]domain.Promotion, error)
	UsedOneTimePromotions(ctx context.Context, userID int64) (map[int64]struct{}, error)
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
}

// LedgerStore is the only path through which balances and event pools change.
type LedgerStore interface {
	LedgerReader
	// Atomically runs fn as one unit of work. Any error rolls back every write made through tx.
	Atomically(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx holds the atomic primitives available inside a unit of work.
type LedgerTx interface {
	// AdjustBalance adds delta to the user's points and returns the new balance.
	AdjustBalance(ctx context.Context, userID, delta int64) (int64, error)
	// AdjustPool moves amount from the event's remaining pool to its awarded total.
	AdjustPool(ctx context.Context, eventID, amount int64) (remain int64, err error)
	InsertTransaction(ctx context.Context, t *domain.Transaction) error
	// LockTransaction reads a transaction and holds it until the unit of work ends.
	LockTransaction(ctx context.Context, id int64) (*domain.Transaction, error)
	SetSuspicious(ctx context.Context, id int64, suspicious bool) error
	MarkRedemptionProcessed(ctx context.Context, id int64, by string, at time.Time) error
	RecordPromotionUsage(ctx context.Context, userID, transactionID int64, promotionIDs []int64) error
}

// UserRepository serves the identity collaborator.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUtorid(ctx context.Context, utorid string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// PasswordResetRepository manages password reset token persistence.
type PasswordResetRepository interface {
	Create(ctx context.Context, reset *domain.PasswordReset) error
	GetByToken(ctx context.Context, token string) (*domain.PasswordReset, error)
	MarkUsed(ctx context.Context, id string) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
