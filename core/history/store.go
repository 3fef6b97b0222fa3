package history

import (
	"context"
	"time"
)

// Query defines filters for retrieving exported snapshots.
type Query struct {
	Start time.Time
	End   time.Time
	Limit int
}

// Store persists history snapshots and supports querying them back.
// Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, snap Snapshot) error
	Query(ctx context.Context, q Query) ([]Snapshot, error)
	Close() error
}
