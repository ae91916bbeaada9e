package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/points-ledger/internal/domain"
)

const transactionColumns = `
        id, user_id, utorid, type, spent::text, earned, amount, related_id, promotion_ids,
        redemption_status, processed_by, processed_at, suspicious, remark, created_by, created_at`

func insertTransaction(ctx context.Context, q querier, t *domain.Transaction) error {
	const query = `
        INSERT INTO transactions (user_id, utorid, type, spent, earned, amount, related_id, promotion_ids,
            redemption_status, processed_by, processed_at, suspicious, remark, created_by)
        VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING id, created_at`

	var spent *string
	if t.Type == domain.TransactionPurchase {
		s := t.Spent.String()
		spent = &s
	}

	var (
		status      *string
		processedBy *string
		processedAt *time.Time
	)
	if t.Redemption != nil {
		s := string(t.Redemption.Status)
		status = &s
		if t.Redemption.ProcessedBy != "" {
			by := t.Redemption.ProcessedBy
			processedBy = &by
		}
		processedAt = t.Redemption.ProcessedAt
	}

	promos := t.PromotionIDs
	if promos == nil {
		promos = []int64{}
	}

	return q.QueryRow(ctx, query,
		t.UserID,
		t.Utorid,
		string(t.Type),
		spent,
		t.Earned,
		t.Amount,
		t.RelatedID,
		promos,
		status,
		processedBy,
		processedAt,
		t.Suspicious,
		t.Remark,
		t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt)
}

func getTransaction(ctx context.Context, q querier, id int64, forUpdate bool) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanTransaction(q.QueryRow(ctx, query, id))
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t           domain.Transaction
		typ         string
		spent       *string
		status      *string
		processedBy *string
		processedAt *time.Time
	)
	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Utorid,
		&typ,
		&spent,
		&t.Earned,
		&t.Amount,
		&t.RelatedID,
		&t.PromotionIDs,
		&status,
		&processedBy,
		&processedAt,
		&t.Suspicious,
		&t.Remark,
		&t.CreatedBy,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}
	t.Type = domain.TransactionType(typ)
	if spent != nil {
		d, err := decimal.NewFromString(*spent)
		if err != nil {
			return nil, fmt.Errorf("parse spent of transaction %d: %w", t.ID, err)
		}
		t.Spent = d
	}
	if status != nil {
		t.Redemption = &domain.Redemption{
			Status:      domain.RedemptionStatus(*status),
			ProcessedAt: processedAt,
		}
		if processedBy != nil {
			t.Redemption.ProcessedBy = *processedBy
		}
	}
	return &t, nil
}

func markRedemptionProcessed(ctx context.Context, q querier, id int64, by string, at time.Time) error {
	const query = `
        UPDATE transactions
        SET redemption_status='processed', processed_by=$2, processed_at=$3
        WHERE id=$1 AND type='redemption' AND redemption_status='pending'`

	cmd, err := q.Exec(ctx, query, id, by, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	var status *string
	if err := q.QueryRow(ctx, `SELECT redemption_status FROM transactions WHERE id=$1`, id).Scan(&status); err != nil {
		return err
	}
	if status != nil && domain.RedemptionStatus(*status) == domain.RedemptionProcessed {
		return ErrAlreadyProcessed
	}
	return errors.New("transaction is not a pending redemption")
}
