// Package memory implements the token store for single-process deployments.
// The Redis implementation is the production choice when several shell
// instances must share one session.
package memory

import (
	"context"
	"sync"
	"time"

	"passage/internal/session/models"
	"passage/internal/session/store"
	"passage/pkg/platform/sentinel"
)

// Store keeps the credential pair and activity clock in process memory and
// fans out changes to local subscribers.
type Store struct {
	mu       sync.RWMutex
	cred     *models.Credential
	identity *models.Identity
	activity time.Time
	nextSub  int
	subs     map[int]chan store.Change
}

// New creates an empty in-memory token store.
func New() *Store {
	return &Store{subs: make(map[int]chan store.Change)}
}

// Save persists the pair atomically and notifies subscribers.
func (s *Store) Save(ctx context.Context, cred models.Credential, id models.Identity) error {
	s.mu.Lock()
	c, i := cred, id
	s.cred, s.identity = &c, &i
	s.mu.Unlock()

	s.publish(store.Change{Key: store.KeySession})
	return nil
}

// Load returns the persisted pair, or sentinel.ErrNotFound when absent.
func (s *Store) Load(ctx context.Context) (models.Credential, models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred == nil || s.identity == nil {
		return models.Credential{}, models.Identity{}, sentinel.ErrNotFound
	}
	return *s.cred, *s.identity, nil
}

// Clear removes the pair; idempotent.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	cleared := s.cred != nil
	s.cred, s.identity = nil, nil
	s.mu.Unlock()

	if cleared {
		s.publish(store.Change{Key: store.KeySession})
	}
	return nil
}

// SetActivity advances the shared activity clock. The clock only moves
// forward; a stale write is dropped rather than rewinding the countdown.
func (s *Store) SetActivity(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	if t.Before(s.activity) {
		s.mu.Unlock()
		return nil
	}
	s.activity = t
	s.mu.Unlock()

	s.publish(store.Change{Key: store.KeyActivity, At: t})
	return nil
}

// Activity returns the clock, or sentinel.ErrNotFound when unset.
func (s *Store) Activity(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activity.IsZero() {
		return time.Time{}, sentinel.ErrNotFound
	}
	return s.activity, nil
}

// ClearActivity unsets the clock; idempotent.
func (s *Store) ClearActivity(ctx context.Context) error {
	s.mu.Lock()
	s.activity = time.Time{}
	s.mu.Unlock()
	return nil
}

// Subscribe registers a local change listener.
func (s *Store) Subscribe(ctx context.Context) (<-chan store.Change, func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan store.Change, 16)
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// publish delivers without blocking; a subscriber that stopped draining loses
// notifications rather than stalling writers.
func (s *Store) publish(c store.Change) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
