package repository

import (
	"context"

	"legalcase/internal/model"
)

// CaseRepository defines data access for case aggregates using SQL queries
// only. No business logic here — strictly persistence operations.
type CaseRepository interface {
	// Create inserts the case row and its initial document collection.
	Create(ctx context.Context, c *model.Case) error

	// Save persists the case row and reconciles the document collection in
	// one transaction: documents are upserted by id and rows no longer owned
	// by the aggregate are deleted. One Save covers a whole logical
	// operation (single read-modify-write).
	Save(ctx context.Context, c *model.Case) error

	// FindByID returns the case with its full document collection.
	// Returns sql.ErrNoRows when the case does not exist.
	FindByID(ctx context.Context, id string) (*model.Case, error)

	// ExistsByID reports whether the case row exists.
	ExistsByID(ctx context.Context, id string) (bool, error)

	// Delete removes the case; document rows cascade.
	Delete(ctx context.Context, id string) error

	// ListByProfileID returns a page of cases owned by the profile.
	ListByProfileID(ctx context.Context, profileID string, pq PageQuery) (*PageResult[model.Case], error)

	// ListByClientID returns a page of cases for the client.
	ListByClientID(ctx context.Context, clientID string, pq PageQuery) (*PageResult[model.Case], error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
