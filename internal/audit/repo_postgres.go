package audit

import (
	"context"
	"database/sql"

	"banking-portal/pkg/utils"
)

// Schema for PostgresRepo. Rows are insert-only.
var Schema = []string{`
CREATE TABLE IF NOT EXISTS security_events (
	id          UUID PRIMARY KEY,
	type        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	action      TEXT NOT NULL DEFAULT '',
	user_id     BIGINT,
	username    TEXT NOT NULL DEFAULT '',
	ip_address  TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	details     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS security_events_created_at_idx ON security_events (created_at DESC)`,
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	return utils.ApplySchema(ctx, r.db, Schema...)
}

// Append writes all events in one transaction so a lockout and the failure
// that caused it land together.
func (r *PostgresRepo) Append(ctx context.Context, events ...Event) error {
	const q = `
INSERT INTO security_events (id, type, severity, action, user_id, username, ip_address, user_agent, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, e := range events {
			var userID sql.NullInt64
			if e.UserID != 0 {
				userID = sql.NullInt64{Int64: e.UserID, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, q,
				e.ID,
				string(e.Type),
				string(e.Severity),
				string(e.Action),
				userID,
				e.Username,
				e.IPAddress,
				e.UserAgent,
				e.Details,
				e.CreatedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresRepo) Recent(ctx context.Context, limit int, violations bool) ([]Event, error) {
	const q = `
SELECT id, type, severity, action, user_id, username, ip_address, user_agent, details, created_at
FROM security_events
WHERE ($2 = FALSE AND action = '') OR ($2 = TRUE AND action <> '')
ORDER BY created_at DESC
LIMIT $1
`
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, q, limit, violations)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e      Event
			userID sql.NullInt64
		)
		if err := rows.Scan(
			&e.ID,
			&e.Type,
			&e.Severity,
			&e.Action,
			&userID,
			&e.Username,
			&e.IPAddress,
			&e.UserAgent,
			&e.Details,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.UserID = userID.Int64
		out = append(out, e)
	}
	return out, rows.Err()
}
