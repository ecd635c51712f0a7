package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/traceveil/forensics-portal/internal/domain"
	"github.com/traceveil/forensics-portal/internal/store"
)

type resetCodeRepository struct {
	pool *pgxpool.Pool
}

const resetCols = `email, code_hash, original_email, expires_at, used, created_at`

func (r *resetCodeRepository) Upsert(ctx context.Context, code *domain.ResetCode) error {
	const q = `
		INSERT INTO reset_codes (email, code_hash, original_email, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, false, $5)
		ON CONFLICT (email) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
			original_email = EXCLUDED.original_email,
			expires_at = EXCLUDED.expires_at,
			used = false,
			created_at = EXCLUDED.created_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, code.Email, code.CodeHash, code.OriginalEmail, code.ExpiresAt, code.CreatedAt)
	return err
}

func (r *resetCodeRepository) Find(ctx context.Context, email string) (*domain.ResetCode, error) {
	const q = `SELECT ` + resetCols + ` FROM reset_codes WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var c domain.ResetCode
	err := r.pool.QueryRow(ctx, q, email).Scan(
		&c.Email, &c.CodeHash, &c.OriginalEmail, &c.ExpiresAt, &c.Used, &c.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Consume flips the used flag in one statement so concurrent confirms cannot
// both succeed. A miss is classified afterwards to pick the right error.
func (r *resetCodeRepository) Consume(ctx context.Context, email string) (*domain.ResetCode, error) {
	const q = `
		UPDATE reset_codes
		SET used = true
		WHERE email = $1
		  AND NOT used
		  AND expires_at > now()
		RETURNING ` + resetCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var c domain.ResetCode
	err := r.pool.QueryRow(ctx, q, email).Scan(
		&c.Email, &c.CodeHash, &c.OriginalEmail, &c.ExpiresAt, &c.Used, &c.CreatedAt,
	)
	if err == nil {
		return &c, nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}

	existing, ferr := r.Find(ctx, email)
	if ferr != nil {
		return nil, ferr
	}
	switch {
	case existing == nil:
		return nil, store.ErrNoResetRequest
	case existing.Used:
		return nil, store.ErrCodeUsed
	default:
		return nil, store.ErrCodeExpired
	}
}
