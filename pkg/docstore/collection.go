package docstore

import "context"

// Collection is the document store collaborator. Implementations provide
// single-document atomicity; Replace performs an optimistic version check.
type Collection interface {
	Name() string
	Find(ctx context.Context, q Query) ([]Record, error)
	Count(ctx context.Context, f Filter) (int64, error)
	Get(ctx context.Context, id string) (Record, error)
	Insert(ctx context.Context, rec Record) (Record, error)
	Replace(ctx context.Context, rec Record, expectedVersion int64) (Record, error)
	Delete(ctx context.Context, id string) error
	// UpdateMany applies u to every document in ids and returns the affected
	// records (at least ID and OrganizationID populated).
	UpdateMany(ctx context.Context, ids []string, u BulkUpdate) ([]Record, error)
}
