// Package middleware adapts guard decisions to chi routes: evaluate, then
// proceed or redirect.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"passage/internal/guard"
	"passage/internal/guard/metrics"
	"passage/internal/session/models"
	"passage/pkg/platform/audit"
)

// SessionSource is the slice of the session service the guard needs.
type SessionSource interface {
	Hydrate(ctx context.Context) error
	Current() models.Snapshot
}

// Option configures Protect.
type Option func(*protector)

// WithAudit records denied access attempts on the audit trail.
func WithAudit(a audit.Store) Option {
	return func(p *protector) { p.audit = a }
}

type protector struct {
	audit audit.Store
}

// Protect evaluates the route's requirement against the current session.
// Hydration is awaited before the first decision; a degraded store falls back
// to an anonymous session rather than failing the request.
func Protect(src SessionSource, req guard.Requirement, logger *slog.Logger, opts ...Option) func(http.Handler) http.Handler {
	p := &protector{}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := src.Hydrate(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "hydration failed before guard decision", "error", err)
			}

			sess := src.Current()
			decision := guard.Evaluate(r.URL.Path, req, sess)
			metrics.Decisions.WithLabelValues(string(decision.Action)).Inc()

			if decision.Action == guard.Allow {
				next.ServeHTTP(w, r)
				return
			}

			if decision.Action == guard.RedirectForbidden && p.audit != nil {
				var userID string
				if sess.Authenticated() {
					userID = sess.Identity.ID
				}
				if err := p.audit.Append(r.Context(), audit.NewEvent(audit.ActionForbidden, userID, r.URL.Path)); err != nil {
					logger.WarnContext(r.Context(), "audit append failed", "error", err)
				}
			}

			logger.DebugContext(r.Context(), "navigation redirected",
				"path", r.URL.Path,
				"action", string(decision.Action),
				"target", decision.Target,
			)
			http.Redirect(w, r, decision.Target, http.StatusFound)
		})
	}
}
