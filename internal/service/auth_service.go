package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/points-ledger/internal/auth"
	"github.com/spec-kit/points-ledger/internal/config"
	"github.com/spec-kit/points-ledger/internal/domain"
	"github.com/spec-kit/points-ledger/internal/ratelimit"
	"github.com/spec-kit/points-ledger/internal/repository"
	apperrors "github.com/spec-kit/points-ledger/pkg/util/errorutil"
)

// AuthService coordinates login and password reset flows.
type AuthService struct {
	users      repository.UserRepository
	resets     repository.PasswordResetRepository
	limiter    ratelimit.Limiter
	tokenMgr   *auth.TokenManager
	bcryptCost int
	resetTTL   time.Duration
	now        func() time.Time
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	PasswordResetRepo repository.PasswordResetRepository
	Limiter           ratelimit.Limiter
	TokenManager      *auth.TokenManager
	Clock             func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	tokens := deps.TokenManager
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:      deps.UserRepo,
		resets:     deps.PasswordResetRepo,
		limiter:    deps.Limiter,
		tokenMgr:   tokens,
		bcryptCost: cfg.Auth.BcryptCost,
		resetTTL:   time.Duration(cfg.Auth.PasswordResetTTLMinutes) * time.Minute,
		now:        now,
	}
}

// Login authenticates a user by utorid and password.
func (s *AuthService) Login(ctx context.Context, utorid, password string) (string, time.Time, error) {
	if strings.TrimSpace(utorid) == "" || password == "" {
		return "", time.Time{}, apperrors.NewValidationError("utorid and password are required", nil)
	}
	user, err := s.users.GetByUtorid(ctx, utorid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return "", time.Time{}, err
	}
	if user.PasswordHash == "" {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.tokenMgr.GenerateToken(user)
}

// RequestPasswordReset issues a reset token for utorid. Repeated requests for
// the same utorid inside the limiter window are rejected.
func (s *AuthService) RequestPasswordReset(ctx context.Context, utorid string) (*domain.PasswordReset, error) {
	if strings.TrimSpace(utorid) == "" {
		return nil, apperrors.NewValidationError("utorid is required", nil)
	}
	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, utorid)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperrors.NewTooManyRequests("too many reset requests, try again later")
		}
	}

	if _, err := s.users.GetByUtorid(ctx, utorid); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"utorid": utorid})
		}
		return nil, err
	}

	reset := &domain.PasswordReset{
		Utorid:    utorid,
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return nil, err
	}
	return reset, nil
}

// ConfirmPasswordReset validates the reset token and updates password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, utorid, newPassword string) error {
	if strings.TrimSpace(utorid) == "" || newPassword == "" {
		return apperrors.NewValidationError("utorid and password are required", nil)
	}
	if !auth.StrongPassword(newPassword) {
		return apperrors.NewValidationError(
			"password must be 8-20 characters and include upper case, lower case, a digit and a special character", nil)
	}

	reset, err := s.resets.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("reset token", nil)
		}
		return err
	}
	if reset.UsedAt != nil {
		return apperrors.NewNotFound("reset token", nil)
	}
	if reset.Utorid != utorid {
		return apperrors.NewUnauthorized("reset token does not belong to this utorid")
	}
	if reset.Expired(s.now()) {
		return apperrors.NewGone("reset token expired")
	}

	user, err := s.users.GetByUtorid(ctx, utorid)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	return s.resets.MarkUsed(ctx, reset.ID)
}

// TokenManager exposes the token issuer for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
