// Command createsu bootstraps a verified superuser account.
//
//	createsu <utorid> <email> <password>
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/spec-kit/points-ledger/internal/auth"
	"github.com/spec-kit/points-ledger/internal/config"
	"github.com/spec-kit/points-ledger/internal/domain"
	"github.com/spec-kit/points-ledger/internal/observability"
	"github.com/spec-kit/points-ledger/internal/persistence"
	"github.com/spec-kit/points-ledger/internal/repository"
	"github.com/spec-kit/points-ledger/migrations"
)

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintln(os.Stderr, "usage: createsu <utorid> <email> <password>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Postgres.DSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool(), migrations.FS, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	user, err := createSuperuser(ctx, repository.NewUserRepository(pg.Pool()), os.Args[1], os.Args[2], os.Args[3], cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal("failed to create superuser", zap.Error(err))
	}
	logger.Info("superuser created", zap.Int64("id", user.ID), zap.String("utorid", user.Utorid))
}

func createSuperuser(ctx context.Context, users repository.UserRepository, utorid, email, password string, cost int) (*domain.User, error) {
	if utorid == "" || email == "" || password == "" {
		return nil, errors.New("utorid, email and password are required")
	}
	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Utorid:       utorid,
		Email:        email,
		Name:         "Super User",
		PasswordHash: hash,
		Role:         domain.RoleSuperuser,
		Verified:     true,
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("utorid or email %s already exists", utorid)
		}
		return nil, err
	}
	return user, nil
}
