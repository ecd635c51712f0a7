// Package store defines the persistence contract the authentication core is
// written against. Two interchangeable backends exist: a flat-file JSON store
// and a Postgres store.
package store

import (
	"context"
	"errors"

	"github.com/traceveil/forensics-portal/internal/domain"
)

var (
	ErrEmailExists    = errors.New("email already exists")
	ErrNotFound       = errors.New("record not found")
	ErrNoResetRequest = errors.New("no reset request for this email")
	ErrCodeUsed       = errors.New("reset code already used")
	ErrCodeExpired    = errors.New("reset code expired")
)

// Users persists identity records. Lookups are case-insensitive on email;
// callers pass addresses through domain.NormalizeEmail first.
type Users interface {
	Create(ctx context.Context, u *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
	// SetPassword writes a new password hash and re-asserts the given role on
	// the same record, so no reset path can smuggle in a role change.
	SetPassword(ctx context.Context, id, passwordHash, role string) error
}

type Customers interface {
	Create(ctx context.Context, c *domain.CustomerProfile) error
	FindByUserID(ctx context.Context, userID string) (*domain.CustomerProfile, error)
}

// ResetCodes keeps at most one code per normalized email.
type ResetCodes interface {
	// Upsert stores a code, replacing any previous code for the same email.
	Upsert(ctx context.Context, code *domain.ResetCode) error
	Find(ctx context.Context, email string) (*domain.ResetCode, error)
	// Consume atomically marks the active code used and returns it. Exactly
	// one of two concurrent Consume calls succeeds; the loser gets
	// ErrCodeUsed. Expired codes return ErrCodeExpired, absent ones
	// ErrNoResetRequest.
	Consume(ctx context.Context, email string) (*domain.ResetCode, error)
}

type AuditFilter struct {
	Action string
	Limit  int
	Offset int
}

// Audit is the append-only authentication activity log.
type Audit interface {
	Append(ctx context.Context, e *domain.AuditEntry) error
	List(ctx context.Context, f AuditFilter) ([]domain.AuditEntry, int, error)
}

// Store bundles the four collections a backend provides.
type Store struct {
	Users      Users
	Customers  Customers
	ResetCodes ResetCodes
	Audit      Audit
}
