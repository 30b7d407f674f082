package daemon

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bizdir/bizdir/internal/auth"
	"github.com/bizdir/bizdir/internal/config"
	"github.com/bizdir/bizdir/internal/db/models"
	"github.com/bizdir/bizdir/internal/uniuri"
)

// seed creates the initial administrator when the user table is empty.
func seed(cfg *config.Config, db *gorm.DB) error {
	ctx := context.Background()
	store := auth.NewStore(db)

	count, err := store.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}

	if count > 0 {
		return nil
	}

	username := cfg.Auth.SeedAdmin.Username
	if username == "" {
		username = "admin"
	}

	password := cfg.Auth.SeedAdmin.Password
	generated := password == ""

	if generated {
		if password, err = uniuri.New(); err != nil {
			return fmt.Errorf("failed to generate admin password: %w", err)
		}
	}

	admin, err := store.CreateUser(ctx, auth.NewUser{
		Username: username,
		Password: password,
		Role:     models.RoleAdmin,
		Active:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	event := log.Warn().Uint64("user_id", admin.ID).Str("username", admin.Username)
	if generated {
		event = event.Str("password", password)
	}

	event.Msg("created initial admin user, change the password after the first login")

	return nil
}
