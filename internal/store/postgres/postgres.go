// Package postgres implements the store interfaces on a pgx connection pool.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/traceveil/forensics-portal/internal/store"
)

// New wires the four collections onto one pool.
func New(pool *pgxpool.Pool) *store.Store {
	return &store.Store{
		Users:      &userRepository{pool: pool},
		Customers:  &customerRepository{pool: pool},
		ResetCodes: &resetCodeRepository{pool: pool},
		Audit:      &auditRepository{pool: pool},
	}
}
