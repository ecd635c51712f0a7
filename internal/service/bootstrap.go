package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/traceveil/forensics-portal/internal/auth"
	"github.com/traceveil/forensics-portal/internal/domain"
	"github.com/traceveil/forensics-portal/internal/store"
)

// EnsureAdmin creates the bootstrap admin account on first start. An
// existing account with the same email is left untouched, including its
// password. Reports whether a new account was created.
func EnsureAdmin(ctx context.Context, st *store.Store, email, password string) (bool, error) {
	email = domain.NormalizeEmail(email)

	existing, err := st.Users.FindByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to check for admin account: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash admin password: %w", err)
	}

	err = st.Users.Create(ctx, &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    "Admin",
		LastName:     "User",
		Role:         domain.RoleAdmin,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to create admin account: %w", err)
	}
	return true, nil
}
