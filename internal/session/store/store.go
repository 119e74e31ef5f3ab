package store

import (
	"context"
	"time"

	"passage/internal/session/models"
)

// Change keys. One documented message shape covers every cross-instance
// notification instead of ad hoc listeners per concern.
const (
	KeySession  = "session"
	KeyActivity = "activity"
)

// Change describes a store mutation observed by other instances sharing the
// same origin-scoped storage. At carries the activity timestamp for
// KeyActivity changes and is zero otherwise.
type Change struct {
	Key string
	At  time.Time
}

// TokenStore persists the credential/identity pair and the shared activity
// clock. Load fails soft: missing or corrupt data yields sentinel.ErrNotFound,
// never a panic or decode error. Implementations degrade to in-memory
// semantics when backing storage is unavailable; callers treat write failures
// as non-fatal.
type TokenStore interface {
	Save(ctx context.Context, cred models.Credential, id models.Identity) error
	Load(ctx context.Context) (models.Credential, models.Identity, error)
	Clear(ctx context.Context) error

	SetActivity(ctx context.Context, t time.Time) error
	Activity(ctx context.Context) (time.Time, error)
	ClearActivity(ctx context.Context) error
}

// Watcher exposes store changes made by other instances. Subscribe returns a
// receive channel and a cancel func; after cancel the channel is closed.
// Self-originated changes may or may not be echoed back; consumers must treat
// observed values idempotently.
type Watcher interface {
	Subscribe(ctx context.Context) (<-chan Change, func())
}
