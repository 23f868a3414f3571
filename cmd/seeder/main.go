//cmd/seeder/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/unclebandit/practicehub-backend/internal/auth"
	"github.com/unclebandit/practicehub-backend/internal/config"
	"github.com/unclebandit/practicehub-backend/internal/db"
	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/logger"
	"github.com/unclebandit/practicehub-backend/internal/model"
	"github.com/unclebandit/practicehub-backend/internal/repository"
)

type userStore interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
}

type practiceStore interface {
	NameExists(ctx context.Context, name string, excludeID int64) (bool, error)
	Create(ctx context.Context, p *model.Practice) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "practicehub-seeder", Console: true})
	ctx := context.Background()

	conn, err := db.Open(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		logg.Error(ctx, "migrations failed", err)
		os.Exit(1)
	}

	store := repository.NewStore(conn)
	if err := seed(ctx, store.Users, store.Practices, cfg.Seed, logg); err != nil {
		logg.Error(ctx, "seeding failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "database seeding completed")
}

// seed creates the initial super admin and practice unless they exist.
func seed(ctx context.Context, users userStore, practices practiceStore, cfg config.SeedConfig, logg *logger.Logger) error {
	if cfg.AdminPassword == "" {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be set")
	}

	_, err := users.GetByUsername(ctx, cfg.AdminUsername)
	switch {
	case err == nil:
		logg.Info(logg.WithField(ctx, "username", cfg.AdminUsername), "super admin already present")
	case appErrors.Is(err, appErrors.CodeNotFound):
		hash, err := auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			return err
		}
		admin := &model.User{
			Username:     cfg.AdminUsername,
			Email:        cfg.AdminEmail,
			FullName:     "Support",
			PasswordHash: hash,
			Role:         model.RoleSuperAdmin,
			IsActive:     true,
			IsApproved:   true,
		}
		if err := users.Create(ctx, admin); err != nil {
			return fmt.Errorf("create super admin: %w", err)
		}
		logg.Info(logg.WithField(ctx, "username", admin.Username), "super admin created")
	default:
		return fmt.Errorf("look up super admin: %w", err)
	}

	if cfg.PracticeName == "" {
		return nil
	}
	exists, err := practices.NameExists(ctx, cfg.PracticeName, 0)
	if err != nil {
		return fmt.Errorf("look up practice: %w", err)
	}
	if exists {
		return nil
	}
	p := &model.Practice{Name: cfg.PracticeName, IsActive: true}
	if err := practices.Create(ctx, p); err != nil {
		return fmt.Errorf("create practice: %w", err)
	}
	logg.Info(logg.WithField(ctx, "practice", p.Name), "practice created")
	return nil
}
