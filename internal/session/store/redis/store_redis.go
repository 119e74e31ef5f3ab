// Package redis implements the token store on Redis so every shell instance
// of the same origin observes one session and one idle countdown. This is the
// production-recommended implementation for multi-instance deployments.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"passage/internal/session/models"
	"passage/internal/session/store"
	"passage/pkg/platform/sentinel"
)

const (
	sessionKey     = "passage:session"
	activityKey    = "passage:activity"
	changesChannel = "passage:changes"
)

// persistedSession is the JSON stored under sessionKey. Credential and
// identity travel together so Save stays atomic.
type persistedSession struct {
	Credential models.Credential `json:"credential"`
	Identity   models.Identity   `json:"identity"`
}

// changeMessage is the pub/sub payload: {"key":"activity","value":<unix ms>}.
type changeMessage struct {
	Key   string `json:"key"`
	Value int64  `json:"value,omitempty"`
}

// Store is a Redis-backed token store with pub/sub change notification.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL bounds how long a persisted session survives without activity.
// Zero means no expiry (the idle monitor ends sessions instead).
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// New constructs a Redis-backed token store.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Save persists the pair atomically and broadcasts a session change.
func (s *Store) Save(ctx context.Context, cred models.Credential, id models.Identity) error {
	raw, err := json.Marshal(persistedSession{Credential: cred, Identity: id})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", sentinel.ErrUnavailable)
	}
	s.broadcast(ctx, changeMessage{Key: store.KeySession})
	return nil
}

// Load returns the persisted pair. Missing and corrupt payloads both map to
// sentinel.ErrNotFound so callers fall back to an anonymous session instead
// of failing navigation.
func (s *Store) Load(ctx context.Context) (models.Credential, models.Identity, error) {
	raw, err := s.client.Get(ctx, sessionKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Credential{}, models.Identity{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Credential{}, models.Identity{}, fmt.Errorf("load session: %w", sentinel.ErrUnavailable)
	}

	var ps persistedSession
	if err := json.Unmarshal(raw, &ps); err != nil || ps.Credential.IsZero() {
		return models.Credential{}, models.Identity{}, sentinel.ErrNotFound
	}
	return ps.Credential, ps.Identity, nil
}

// Clear removes the pair; idempotent.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, sessionKey).Err(); err != nil {
		return fmt.Errorf("clear session: %w", sentinel.ErrUnavailable)
	}
	s.broadcast(ctx, changeMessage{Key: store.KeySession})
	return nil
}

// errClockBehind marks a write older than the stored clock.
var errClockBehind = errors.New("activity clock behind")

// SetActivity advances the shared clock and broadcasts the new timestamp so
// other instances extend their countdowns without a network round trip of
// their own. The clock never rewinds: a write older than the stored value is
// dropped under WATCH so no instance can shorten another's countdown.
func (s *Store) SetActivity(ctx context.Context, t time.Time) error {
	ms := t.UnixMilli()
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, activityKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			if curMs, perr := strconv.ParseInt(cur, 10, 64); perr == nil && curMs >= ms {
				return errClockBehind
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, activityKey, strconv.FormatInt(ms, 10), s.ttl)
			return nil
		})
		return err
	}, activityKey)

	switch {
	case errors.Is(err, errClockBehind):
		return nil
	case errors.Is(err, redis.TxFailedErr):
		// A concurrent writer advanced the clock first; its broadcast covers us.
		return nil
	case err != nil:
		return fmt.Errorf("set activity: %w", sentinel.ErrUnavailable)
	}

	s.broadcast(ctx, changeMessage{Key: store.KeyActivity, Value: ms})
	return nil
}

// Activity returns the shared clock, or sentinel.ErrNotFound when unset.
func (s *Store) Activity(ctx context.Context) (time.Time, error) {
	raw, err := s.client.Get(ctx, activityKey).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, sentinel.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get activity: %w", sentinel.ErrUnavailable)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, sentinel.ErrNotFound
	}
	return time.UnixMilli(ms), nil
}

// ClearActivity unsets the clock; idempotent.
func (s *Store) ClearActivity(ctx context.Context) error {
	if err := s.client.Del(ctx, activityKey).Err(); err != nil {
		return fmt.Errorf("clear activity: %w", sentinel.ErrUnavailable)
	}
	return nil
}

// Subscribe delivers changes published by any instance, including this one.
func (s *Store) Subscribe(ctx context.Context) (<-chan store.Change, func()) {
	pubsub := s.client.Subscribe(ctx, changesChannel)
	out := make(chan store.Change, 16)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var cm changeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &cm); err != nil {
				continue
			}
			c := store.Change{Key: cm.Key}
			if cm.Value > 0 {
				c.At = time.UnixMilli(cm.Value)
			}
			select {
			case out <- c:
			default:
			}
		}
	}()

	return out, func() { _ = pubsub.Close() }
}

// broadcast is best effort: a failed publish degrades cross-instance sync,
// local correctness is preserved by the caller's own timers.
func (s *Store) broadcast(ctx context.Context, cm changeMessage) {
	raw, err := json.Marshal(cm)
	if err != nil {
		return
	}
	_ = s.client.Publish(ctx, changesChannel, raw).Err()
}
