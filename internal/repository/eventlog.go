package repository

import (
	"context"
	"time"
)

// EventLogEntry is the persisted projection of a domain event. Rows are
// append-only: they are never updated and never physically deleted, since the
// log is the permanent audit trail and the source for form-value replay.
type EventLogEntry struct {
	ID         string    `json:"id"`
	CaseID     string    `json:"case_id"`
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	EventData  string    `json:"event_data"`
	CreatedBy  string    `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventLogRepository defines the append-only event log store.
type EventLogRepository interface {
	// Append inserts one entry. Failures must surface to the caller: a lost
	// event breaks the audit and replay contract.
	Append(ctx context.Context, e *EventLogEntry) error

	// ListByCase returns all entries for the case in ascending occurrence
	// order.
	ListByCase(ctx context.Context, caseID string) ([]EventLogEntry, error)

	// ListByCaseAndType filters by event type, preserving occurrence order.
	ListByCaseAndType(ctx context.Context, caseID, eventType string) ([]EventLogEntry, error)

	// LastOccurrence returns the occurrence time of the most recent entry of
	// the given type for the case, or nil when none exists.
	LastOccurrence(ctx context.Context, caseID, eventType string) (*time.Time, error)
}
