package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"careflow/internal/auth"
	"careflow/pkg/sentinel"
)

// Store is the subset of the user store seeding needs.
type Store interface {
	Create(ctx context.Context, u auth.User) error
	FindByEmail(ctx context.Context, email string) (auth.User, error)
}

// EnsureSeedUser creates a login user when one does not exist yet. Meant for
// development and demo environments; production users come from provisioning.
func EnsureSeedUser(ctx context.Context, store Store, email, password string, logger *slog.Logger) error {
	if email == "" || password == "" {
		return nil
	}

	if _, err := store.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("lookup seed user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	err = store.Create(ctx, auth.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, sentinel.ErrConflict) {
		return fmt.Errorf("create seed user: %w", err)
	}

	logger.InfoContext(ctx, "seed user ensured", "email", email)
	return nil
}
