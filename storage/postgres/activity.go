package postgres

import (
	"context"
	"fmt"

	"github.com/MrEthical07/sessionauth/internal/audit"
)

// ActivityRepository appends activity records to the activitylog table.
type ActivityRepository struct {
	db DBTX
}

// NewActivityRepository returns a repository over db.
func NewActivityRepository(db DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append inserts rec as one row.
func (r *ActivityRepository) Append(ctx context.Context, rec audit.Record) error {
	query :=
		`INSERT INTO activitylog (logged_at, username, code, detail, origin)
		 VALUES ($1, $2, $3, $4, $5)
		 `

	_, err := r.db.ExecContext(ctx, query, rec.Timestamp.UTC(), rec.Username, rec.Code, rec.Detail, rec.Origin)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Recent returns the latest limit records for username, newest first.
func (r *ActivityRepository) Recent(ctx context.Context, username string, limit int) ([]audit.Record, error) {
	query :=
		`SELECT logged_at, username, code, detail, origin FROM activitylog
		 WHERE username = $1
		 ORDER BY logged_at DESC
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var rec audit.Record
		if err := rows.Scan(&rec.Timestamp, &rec.Username, &rec.Code, &rec.Detail, &rec.Origin); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
