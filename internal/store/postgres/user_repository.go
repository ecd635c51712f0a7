package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/traceveil/forensics-portal/internal/domain"
	"github.com/traceveil/forensics-portal/internal/store"
)

type userRepository struct {
	pool *pgxpool.Pool
}

const userCols = `id, email, password_hash, first_name, last_name, phone, company, role,
	is_active, google_id, is_google_account, email_verified, avatar, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &u.Company,
		&u.Role, &u.IsActive, &u.GoogleID, &u.IsGoogleAccount, &u.EmailVerified, &u.Avatar,
		&u.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	const q = `
		INSERT INTO users (id, email, password_hash, first_name, last_name, phone, company, role,
			is_active, google_id, is_google_account, email_verified, avatar, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Company, u.Role,
		u.IsActive, u.GoogleID, u.IsGoogleAccount, u.EmailVerified, u.Avatar, u.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return store.ErrEmailExists
	}
	return err
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *userRepository) FindByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	if googleID == "" {
		return nil, nil
	}

	const q = `SELECT ` + userCols + ` FROM users WHERE google_id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, googleID))
}

func (r *userRepository) Update(ctx context.Context, u *domain.User) error {
	const q = `
		UPDATE users
		SET email = $2,
			password_hash = $3,
			first_name = $4,
			last_name = $5,
			phone = $6,
			company = $7,
			role = $8,
			is_active = $9,
			google_id = $10,
			is_google_account = $11,
			email_verified = $12,
			avatar = $13
		WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Company, u.Role,
		u.IsActive, u.GoogleID, u.IsGoogleAccount, u.EmailVerified, u.Avatar,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *userRepository) SetPassword(ctx context.Context, id, passwordHash, role string) error {
	const q = `UPDATE users SET password_hash = $2, role = $3 WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id, passwordHash, role)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

type customerRepository struct {
	pool *pgxpool.Pool
}

func (r *customerRepository) Create(ctx context.Context, c *domain.CustomerProfile) error {
	const q = `
		INSERT INTO customer_profiles (id, user_id, company_name, billing_address, billing_city,
			billing_state, billing_postal_code, billing_country, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q,
		c.ID, c.UserID, c.CompanyName, c.BillingAddress, c.BillingCity,
		c.BillingState, c.BillingPostalCode, c.BillingCountry, c.CreatedAt,
	)
	return err
}

func (r *customerRepository) FindByUserID(ctx context.Context, userID string) (*domain.CustomerProfile, error) {
	const q = `
		SELECT id, user_id, company_name, billing_address, billing_city,
			billing_state, billing_postal_code, billing_country, created_at
		FROM customer_profiles
		WHERE user_id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var c domain.CustomerProfile
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&c.ID, &c.UserID, &c.CompanyName, &c.BillingAddress, &c.BillingCity,
		&c.BillingState, &c.BillingPostalCode, &c.BillingCountry, &c.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
