package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/traceveil/forensics-portal/internal/domain"
	"github.com/traceveil/forensics-portal/internal/store"
)

type auditRepository struct {
	pool *pgxpool.Pool
}

func (r *auditRepository) Append(ctx context.Context, e *domain.AuditEntry) error {
	const q = `
		INSERT INTO activity_log (id, actor_id, actor_email, action, details, ip, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	id := e.ID
	if id == "" {
		id = uuid.New().String()
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, q, id, e.ActorID, e.ActorEmail, e.Action, e.Details, e.IP, ts)
	return err
}

func (r *auditRepository) List(ctx context.Context, f store.AuditFilter) ([]domain.AuditEntry, int, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM activity_log WHERE ($1 = '' OR action = $1)`, f.Action,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	const q = `
		SELECT id, actor_id, actor_email, action, details, ip, timestamp
		FROM activity_log
		WHERE ($1 = '' OR action = $1)
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, q, f.Action, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorEmail, &e.Action, &e.Details, &e.IP, &e.Timestamp); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}

	return entries, total, rows.Err()
}
