package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/points-ledger/internal/domain"
)

// getPromotions returns the promotions matching ids. Unknown ids are omitted.
func getPromotions(ctx context.Context, q querier, ids []int64) ([]domain.Promotion, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `
        SELECT id, name, description, type, start_time, end_time, min_spending::text, rate::text, points
        FROM promotions WHERE id = ANY($1) ORDER BY id`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var promotions []domain.Promotion
	for rows.Next() {
		var (
			p           domain.Promotion
			typ         string
			minSpending *string
			rate        *string
		)
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&typ,
			&p.StartTime,
			&p.EndTime,
			&minSpending,
			&rate,
			&p.Points,
		); err != nil {
			return nil, err
		}
		p.Type = domain.PromotionType(typ)
		if p.MinSpending, err = parseOptionalDecimal(minSpending); err != nil {
			return nil, fmt.Errorf("promotion %d min_spending: %w", p.ID, err)
		}
		if p.Rate, err = parseOptionalDecimal(rate); err != nil {
			return nil, fmt.Errorf("promotion %d rate: %w", p.ID, err)
		}
		promotions = append(promotions, p)
	}
	return promotions, rows.Err()
}

func usedPromotions(ctx context.Context, q querier, userID int64) (map[int64]struct{}, error) {
	rows, err := q.Query(ctx, `SELECT promotion_id FROM promotion_usages WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	used := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		used[id] = struct{}{}
	}
	return used, nil
}

func recordPromotionUsage(ctx context.Context, q querier, userID, transactionID int64, promotionIDs []int64) error {
	const query = `
        INSERT INTO promotion_usages (user_id, promotion_id, transaction_id)
        VALUES ($1, $2, $3)`
	for _, id := range promotionIDs {
		if _, err := q.Exec(ctx, query, userID, id, transactionID); err != nil {
			if isUniqueViolation(err) {
				return ErrPromotionAlreadyUsed
			}
			return err
		}
	}
	return nil
}

func parseOptionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
