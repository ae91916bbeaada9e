package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/points-ledger/internal/domain"
)

func getEvent(ctx context.Context, q querier, id int64) (*domain.Event, error) {
	const query = `
        SELECT id, name, start_time, end_time, points, points_remain, points_awarded
        FROM events WHERE id=$1`

	var e domain.Event
	if err := q.QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.Name,
		&e.StartTime,
		&e.EndTime,
		&e.Points,
		&e.PointsRemain,
		&e.PointsAwarded,
	); err != nil {
		return nil, err
	}

	var err error
	if e.Guests, err = eventMembers(ctx, q, "event_guests", id); err != nil {
		return nil, err
	}
	if e.Organizers, err = eventMembers(ctx, q, "event_organizers", id); err != nil {
		return nil, err
	}
	return &e, nil
}

// eventMembers lists a membership table ordered by user id.
func eventMembers(ctx context.Context, q querier, table string, eventID int64) ([]domain.EventMember, error) {
	query := `
        SELECT m.user_id, u.utorid
        FROM ` + table + ` m JOIN users u ON u.id = m.user_id
        WHERE m.event_id=$1 ORDER BY m.user_id`

	rows, err := q.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.EventMember, error) {
		var m domain.EventMember
		err := row.Scan(&m.UserID, &m.Utorid)
		return m, err
	})
}

func adjustEventPool(ctx context.Context, q querier, eventID, amount int64) (int64, error) {
	const query = `
        UPDATE events
        SET points_remain = points_remain - $2, points_awarded = points_awarded + $2
        WHERE id=$1 AND points_remain >= $2
        RETURNING points_remain`

	var remain int64
	err := q.QueryRow(ctx, query, eventID, amount).Scan(&remain)
	if err == nil {
		return remain, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	if err := q.QueryRow(ctx, `SELECT points_remain FROM events WHERE id=$1`, eventID).Scan(&remain); err != nil {
		return 0, err
	}
	return remain, ErrPoolExhausted
}
