package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/points-ledger/internal/domain"
)

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (utorid, name, email, password_hash, role, points, verified, suspicious)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		user.Utorid,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Points,
		user.Verified,
		user.Suspicious,
	).Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return getUser(ctx, r.pool, "id", id)
}

func (r *userRepository) GetByUtorid(ctx context.Context, utorid string) (*domain.User, error) {
	return getUser(ctx, r.pool, "utorid", utorid)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	const query = `UPDATE users SET password_hash=$1 WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// getUser looks a user up by a trusted column name.
func getUser(ctx context.Context, q querier, column string, value any) (*domain.User, error) {
	query := fmt.Sprintf(`
        SELECT id, utorid, name, email, password_hash, role, points, verified, suspicious, created_at
        FROM users WHERE %s=$1`, column)

	var (
		user domain.User
		role string
	)
	if err := q.QueryRow(ctx, query, value).Scan(
		&user.ID,
		&user.Utorid,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.Points,
		&user.Verified,
		&user.Suspicious,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = domain.Role(role)
	return &user, nil
}
