package audit

import "context"

// Store persists audit events. Implementations must be safe for concurrent
// use; a failed append is logged by the caller and never blocks the session
// operation that produced it.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID string) ([]Event, error)
}
