package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"legalcase/internal/repository"
)

// EventLogPostgres is a PostgreSQL implementation of
// repository.EventLogRepository. The event_logs table is append-only: no
// UPDATE or DELETE statement exists in this file on purpose.
type EventLogPostgres struct {
	db *sql.DB
}

// NewEventLogPostgres creates a new EventLogPostgres repository.
func NewEventLogPostgres(db *sql.DB) *EventLogPostgres {
	return &EventLogPostgres{db: db}
}

var _ repository.EventLogRepository = (*EventLogPostgres)(nil)

const eventLogColumns = `id, case_id, event_id, event_type, occurred_at, event_data, created_by, created_at`

// Append inserts one event log row.
func (r *EventLogPostgres) Append(ctx context.Context, e *repository.EventLogEntry) error {
	const q = `
		INSERT INTO event_logs (id, case_id, event_id, event_type, occurred_at, event_data, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.CaseID, e.EventID, e.EventType, e.OccurredAt, e.EventData, e.CreatedBy,
	)
	return err
}

// ListByCase returns all entries for a case in ascending occurrence order.
func (r *EventLogPostgres) ListByCase(ctx context.Context, caseID string) ([]repository.EventLogEntry, error) {
	const q = `SELECT ` + eventLogColumns + ` FROM event_logs WHERE case_id = $1 ORDER BY occurred_at ASC, id ASC`
	return r.list(ctx, q, caseID)
}

// ListByCaseAndType filters entries by type, preserving occurrence order.
func (r *EventLogPostgres) ListByCaseAndType(ctx context.Context, caseID, eventType string) ([]repository.EventLogEntry, error) {
	const q = `SELECT ` + eventLogColumns + ` FROM event_logs
		WHERE case_id = $1 AND event_type = $2 ORDER BY occurred_at ASC, id ASC`
	return r.list(ctx, q, caseID, eventType)
}

// LastOccurrence returns the most recent occurrence time for the given type,
// or nil when the case has never logged that event.
func (r *EventLogPostgres) LastOccurrence(ctx context.Context, caseID, eventType string) (*time.Time, error) {
	const q = `SELECT occurred_at FROM event_logs
		WHERE case_id = $1 AND event_type = $2 ORDER BY occurred_at DESC LIMIT 1`
	var at time.Time
	err := r.db.QueryRowContext(ctx, q, caseID, eventType).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}

func (r *EventLogPostgres) list(ctx context.Context, q string, args ...any) ([]repository.EventLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]repository.EventLogEntry, 0)
	for rows.Next() {
		var e repository.EventLogEntry
		if err := rows.Scan(
			&e.ID, &e.CaseID, &e.EventID, &e.EventType, &e.OccurredAt, &e.EventData, &e.CreatedBy, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
