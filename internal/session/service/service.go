// Package service holds the session state machine: Anonymous or
// Authenticated(identity), transitioned by Hydrate, Login, Logout, Expire and
// RefreshProfile. The machine owns nothing but in-process state; persistence
// lives behind the token store and authentication behind the Authenticator
// collaborator.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"passage/internal/platform/metrics"
	"passage/internal/session/models"
	"passage/internal/session/store"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/platform/audit"
	"passage/pkg/platform/sentinel"
)

// Authenticator is the external authentication API. Login exchanges
// credentials for a token/identity pair; Profile re-fetches the identity for
// an existing credential.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (models.Credential, models.Identity, error)
	Profile(ctx context.Context, cred models.Credential) (models.Identity, error)
}

// Service is the session state machine. A fresh Service is Anonymous; there is
// no ambient global, callers construct one per shell (and per test).
type Service struct {
	tokens  store.TokenStore
	authn   Authenticator
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Store

	hydrateOnce singleflight.Group

	mu       sync.Mutex
	cred     *models.Credential
	identity *models.Identity
	epoch    uint64
	hydrated bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics attaches lifecycle counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAudit attaches an audit store for session lifecycle events.
func WithAudit(a audit.Store) Option {
	return func(s *Service) { s.audit = a }
}

// New constructs an Anonymous session service.
func New(tokens store.TokenStore, authn Authenticator, opts ...Option) *Service {
	s := &Service{
		tokens:  tokens,
		authn:   authn,
		logger:  slog.Default(),
		metrics: metrics.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Current returns an immutable snapshot for guard decisions. The returned
// pointers are copies; mutating them cannot corrupt the session.
func (s *Service) Current() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred == nil || s.identity == nil {
		return models.Snapshot{}
	}
	c, i := *s.cred, *s.identity
	return models.Snapshot{Credential: &c, Identity: &i}
}

// Hydrate populates the session from the token store. Concurrent callers are
// collapsed into a single load, so the first guard decision never races an
// in-flight hydration. After the first completion Hydrate is a cheap no-op.
func (s *Service) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	if s.hydrated {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	_, err, _ := s.hydrateOnce.Do("hydrate", func() (any, error) {
		return nil, s.hydrate(ctx)
	})
	return err
}

func (s *Service) hydrate(ctx context.Context) error {
	cred, id, err := s.tokens.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hydrated {
		// A login won the race; keep its state.
		return nil
	}
	s.hydrated = true

	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	case err != nil:
		// Storage trouble must not block navigation; start anonymous.
		s.logger.WarnContext(ctx, "session hydration degraded", "error", err)
		return nil
	}

	if cred.IsZero() || !id.Role.Valid() {
		// Never guess a default role; drop the persisted pair instead of
		// granting unintended access.
		s.logger.WarnContext(ctx, "persisted session rejected", "role", string(id.Role))
		go func() { _ = s.tokens.Clear(context.WithoutCancel(ctx)) }()
		return nil
	}

	s.cred, s.identity = &cred, &id
	s.epoch++
	return nil
}

// Login authenticates against the external API. On success the session
// becomes Authenticated, the pair is persisted, and the role is returned for
// an immediate redirect. On failure the current state is left untouched.
func (s *Service) Login(ctx context.Context, identifier, password string) (models.Role, error) {
	if identifier == "" || password == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "identifier and password are required")
	}

	s.mu.Lock()
	pre := s.epoch
	s.mu.Unlock()

	cred, id, err := s.authn.Login(ctx, identifier, password)
	if err != nil {
		s.metrics.LoginFailures.Inc()
		s.record(ctx, audit.NewEvent(audit.ActionLoginFailed, "", identifier))
		if errors.Is(err, sentinel.ErrUnavailable) {
			return "", dErrors.Wrap(dErrors.CodeUnavailable, "authentication service unavailable", err)
		}
		return "", dErrors.Wrap(dErrors.CodeUnauthorized, "invalid credentials", err)
	}

	if cred.IsZero() || !id.Role.Valid() {
		s.metrics.LoginFailures.Inc()
		s.record(ctx, audit.NewEvent(audit.ActionLoginFailed, id.ID, "unknown role"))
		return "", dErrors.New(dErrors.CodeUnknownRole, "login response carried a role outside the closed set")
	}

	s.mu.Lock()
	if s.epoch != pre {
		// A newer login or logout changed the session while this response was
		// in flight; discard it rather than resurrecting stale state.
		s.mu.Unlock()
		return "", sentinel.ErrStale
	}
	s.cred, s.identity = &cred, &id
	s.epoch++
	s.hydrated = true
	s.mu.Unlock()

	if err := s.tokens.Save(ctx, cred, id); err != nil {
		// In-memory session still works for this instance.
		s.logger.WarnContext(ctx, "session persist failed", "error", err)
	}

	s.metrics.Logins.Inc()
	s.record(ctx, audit.NewEvent(audit.ActionLogin, id.ID, ""))
	return id.Role, nil
}

// Logout transitions to Anonymous unconditionally: safe from any state,
// including already-Anonymous, and idempotent.
func (s *Service) Logout(ctx context.Context) error {
	userID, wasAuthenticated := s.end(ctx)
	if wasAuthenticated {
		s.metrics.Logouts.Inc()
		s.record(ctx, audit.NewEvent(audit.ActionLogout, userID, ""))
	}
	return nil
}

// Expire is the hook for the HTTP layer's 401 interceptor and the idle
// monitor: it ends the session and records why.
func (s *Service) Expire(ctx context.Context, reason string) {
	userID, wasAuthenticated := s.end(ctx)
	if !wasAuthenticated {
		return
	}
	if reason == "idle" {
		s.metrics.IdleLogouts.Inc()
		s.record(ctx, audit.NewEvent(audit.ActionIdleLogout, userID, reason))
		return
	}
	s.metrics.SessionsExpired.Inc()
	s.record(ctx, audit.NewEvent(audit.ActionSessionExpired, userID, reason))
}

// end clears state and storage; the epoch bump invalidates every in-flight
// async result tagged with the previous epoch.
func (s *Service) end(ctx context.Context) (userID string, wasAuthenticated bool) {
	s.mu.Lock()
	if s.identity != nil {
		userID = s.identity.ID
		wasAuthenticated = true
	}
	s.cred, s.identity = nil, nil
	s.epoch++
	s.hydrated = true
	s.mu.Unlock()

	if err := s.tokens.Clear(ctx); err != nil {
		s.logger.WarnContext(ctx, "session clear failed", "error", err)
	}
	if err := s.tokens.ClearActivity(ctx); err != nil {
		s.logger.WarnContext(ctx, "activity clear failed", "error", err)
	}
	return userID, wasAuthenticated
}

// RefreshProfile re-fetches the identity. ID and Role are immutable for the
// session's lifetime except through Login: a response that omits or changes
// them must not silently demote or promote the session. A response arriving
// after a newer Logout or Login is discarded.
func (s *Service) RefreshProfile(ctx context.Context) error {
	s.mu.Lock()
	if s.cred == nil || s.identity == nil {
		s.mu.Unlock()
		return dErrors.New(dErrors.CodeUnauthorized, "no active session")
	}
	pre := s.epoch
	cred := *s.cred
	s.mu.Unlock()

	fresh, err := s.authn.Profile(ctx, cred)
	if err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) {
			return dErrors.Wrap(dErrors.CodeUnavailable, "profile service unavailable", err)
		}
		return dErrors.Wrap(dErrors.CodeInternal, "profile refresh failed", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != pre || s.identity == nil {
		return nil
	}

	id := *s.identity
	if fresh.Username != "" {
		id.Username = fresh.Username
	}
	if fresh.Email != "" {
		id.Email = fresh.Email
	}
	if fresh.Role != "" && fresh.Role != id.Role {
		s.logger.WarnContext(ctx, "profile response attempted role change",
			"current", string(id.Role), "received", string(fresh.Role))
	}
	s.identity = &id

	cred, idCopy := *s.cred, id
	go func() {
		if err := s.tokens.Save(context.WithoutCancel(ctx), cred, idCopy); err != nil {
			s.logger.Warn("session persist failed", "error", err)
		}
	}()
	return nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit append failed", "action", string(event.Action), "error", err)
	}
}
