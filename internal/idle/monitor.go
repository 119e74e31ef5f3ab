// Package idle ends sessions proactively after user inactivity. Every shell
// instance runs its own Monitor; instances sharing a token store observe one
// activity clock, so activity in one extends the countdown in all of them.
package idle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"passage/internal/session/store"
)

// Config carries the idle policy and the callbacks it drives. OnWarn fires
// once per armed countdown at IdleTimeout-WarnBefore; OnLogout fires at
// IdleTimeout. Both are measured from the shared activity clock, not from
// Start time.
type Config struct {
	IdleTimeout time.Duration
	WarnBefore  time.Duration
	OnWarn      func(remaining time.Duration)
	OnLogout    func()
}

// Monitor arms warning and logout timers against the shared activity clock.
type Monitor struct {
	cfg     Config
	tokens  store.TokenStore
	watcher store.Watcher
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	started     bool
	gen         uint64
	last        time.Time
	warnTimer   *time.Timer
	logoutTimer *time.Timer
	unwatch     func()
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithWatcher subscribes the monitor to externally observed clock changes, so
// another instance's activity re-arms this one without a network call.
func WithWatcher(w store.Watcher) Option {
	return func(m *Monitor) { m.watcher = w }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New constructs a stopped Monitor.
func New(tokens store.TokenStore, cfg Config, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:    cfg,
		tokens: tokens,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Start initializes the shared clock when unset and arms both timers from it.
// A clock already past the idle deadline (stale from a prior session) fires
// the logout callback immediately, not after a fresh full timeout. Idempotent
// while running.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true

	last, err := m.tokens.Activity(ctx)
	if err != nil {
		// Unset or unreadable clock: this instance's start is the activity.
		last = m.now()
		if serr := m.tokens.SetActivity(ctx, last); serr != nil {
			m.logger.WarnContext(ctx, "activity clock persist failed, running in-memory", "error", serr)
		}
	}
	m.last = last
	m.rearmLocked()
	m.mu.Unlock()

	if m.watcher != nil {
		ch, cancel := m.watcher.Subscribe(ctx)
		m.mu.Lock()
		m.unwatch = cancel
		m.mu.Unlock()
		go m.watch(ch)
	}
}

// OnActivity records user activity: it advances the shared clock and
// atomically cancels-then-rearms both timers so no stale timer can fire after
// a fresh one is armed.
func (m *Monitor) OnActivity(ctx context.Context) {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	now := m.now()
	if now.After(m.last) {
		m.last = now
	}
	m.rearmLocked()
	m.mu.Unlock()

	// Best effort: a failed write degrades cross-instance sync only; this
	// instance's own timers keep working.
	if err := m.tokens.SetActivity(ctx, now); err != nil {
		m.logger.DebugContext(ctx, "activity clock write failed", "error", err)
	}
}

// Stop cancels pending timers and the watcher subscription; idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	unwatch := m.stopLocked()
	m.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
}

func (m *Monitor) stopLocked() (unwatch func()) {
	m.started = false
	m.gen++
	if m.warnTimer != nil {
		m.warnTimer.Stop()
		m.warnTimer = nil
	}
	if m.logoutTimer != nil {
		m.logoutTimer.Stop()
		m.logoutTimer = nil
	}
	unwatch = m.unwatch
	m.unwatch = nil
	return unwatch
}

// watch re-arms from clock values written by other instances.
func (m *Monitor) watch(ch <-chan store.Change) {
	for c := range ch {
		if c.Key != store.KeyActivity || c.At.IsZero() {
			continue
		}
		m.mu.Lock()
		if m.started && c.At.After(m.last) {
			m.last = c.At
			m.rearmLocked()
		}
		m.mu.Unlock()
	}
}

// rearmLocked replaces both timers relative to m.last. The generation counter
// makes cancel-then-rearm atomic: a timer that already fired but lost the
// race observes a newer generation and does nothing.
func (m *Monitor) rearmLocked() {
	m.gen++
	gen := m.gen

	if m.warnTimer != nil {
		m.warnTimer.Stop()
		m.warnTimer = nil
	}
	if m.logoutTimer != nil {
		m.logoutTimer.Stop()
		m.logoutTimer = nil
	}

	remaining := m.cfg.IdleTimeout - m.now().Sub(m.last)
	if remaining <= 0 {
		m.logoutTimer = time.AfterFunc(0, func() { m.fireLogout(gen) })
		return
	}

	if m.cfg.WarnBefore > 0 && m.cfg.OnWarn != nil {
		warnIn := remaining - m.cfg.WarnBefore
		if warnIn < 0 {
			warnIn = 0
		}
		m.warnTimer = time.AfterFunc(warnIn, func() { m.fireWarn(gen) })
	}
	m.logoutTimer = time.AfterFunc(remaining, func() { m.fireLogout(gen) })
}

func (m *Monitor) fireWarn(gen uint64) {
	m.mu.Lock()
	if !m.started || gen != m.gen {
		m.mu.Unlock()
		return
	}
	remaining := m.cfg.IdleTimeout - m.now().Sub(m.last)
	if remaining < 0 {
		remaining = 0
	}
	onWarn := m.cfg.OnWarn
	m.mu.Unlock()

	if onWarn != nil {
		onWarn(remaining)
	}
}

func (m *Monitor) fireLogout(gen uint64) {
	m.mu.Lock()
	if !m.started || gen != m.gen {
		m.mu.Unlock()
		return
	}
	unwatch := m.stopLocked()
	m.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	if m.cfg.OnLogout != nil {
		m.cfg.OnLogout()
	}
}
