package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/points-ledger/internal/domain"
)

type postgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger returns a LedgerStore backed by Postgres.
func NewPostgresLedger(pool *pgxpool.Pool) LedgerStore {
	return &postgresLedger{pool: pool}
}

func (s *postgresLedger) Atomically(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(ctx, &postgresLedgerTx{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func (s *postgresLedger) GetUserByUtorid(ctx context.Context, utorid string) (*domain.User, error) {
	return getUser(ctx, s.pool, "utorid", utorid)
}

func (s *postgresLedger) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return getUser(ctx, s.pool, "id", id)
}

func (s *postgresLedger) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	return getTransaction(ctx, s.pool, id, false)
}

func (s *postgresLedger) GetPromotions(ctx context.Context, ids []int64) ([]domain.Promotion, error) {
	return getPromotions(ctx, s.pool, ids)
}

func (s *postgresLedger) UsedOneTimePromotions(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	return usedPromotions(ctx, s.pool, userID)
}

func (s *postgresLedger) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	return getEvent(ctx, s.pool, id)
}

type postgresLedgerTx struct {
	q querier
}

func (t *postgresLedgerTx) AdjustBalance(ctx context.Context, userID, delta int64) (int64, error) {
	const query = `
        UPDATE users SET points = points + $2
        WHERE id=$1 AND points + $2 >= 0
        RETURNING points`
	var points int64
	err := t.q.QueryRow(ctx, query, userID, delta).Scan(&points)
	if err == nil {
		return points, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	// Distinguish a missing user from a rejected debit.
	if err := t.q.QueryRow(ctx, `SELECT points FROM users WHERE id=$1`, userID).Scan(&points); err != nil {
		return 0, err
	}
	return points, ErrInsufficientPoints
}

func (t *postgresLedgerTx) AdjustPool(ctx context.Context, eventID, amount int64) (int64, error) {
	return adjustEventPool(ctx, t.q, eventID, amount)
}

func (t *postgresLedgerTx) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	return insertTransaction(ctx, t.q, tx)
}

func (t *postgresLedgerTx) LockTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	return getTransaction(ctx, t.q, id, true)
}

func (t *postgresLedgerTx) SetSuspicious(ctx context.Context, id int64, suspicious bool) error {
	cmd, err := t.q.Exec(ctx, `UPDATE transactions SET suspicious=$2 WHERE id=$1`, id, suspicious)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (t *postgresLedgerTx) MarkRedemptionProcessed(ctx context.Context, id int64, by string, at time.Time) error {
	return markRedemptionProcessed(ctx, t.q, id, by, at)
}

func (t *postgresLedgerTx) RecordPromotionUsage(ctx context.Context, userID, transactionID int64, promotionIDs []int64) error {
	return recordPromotionUsage(ctx, t.q, userID, transactionID, promotionIDs)
}
