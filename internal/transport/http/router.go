package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"passage/internal/guard"
	guardmw "passage/internal/guard/middleware"
	"passage/internal/session/models"
)

// NewRouter wires the public endpoints and the role-gated areas. Each gated
// area carries its requirement at route definition, mirroring per-route
// access metadata rather than a central policy table.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
	r.With(
		guardmw.Protect(h.sessions, guard.Requirement{RequiresAuth: true}, h.logger),
		h.markActivity,
	).Get("/auth/me", h.handleMe)

	// The login page itself goes through the guard so an authenticated user
	// is bounced to their role home instead of seeing it.
	r.With(guardmw.Protect(h.sessions, guard.Requirement{}, h.logger)).
		Get(guard.PathLogin, h.handleLoginPage)
	r.Get(guard.PathForbidden, h.handleForbiddenPage)

	h.roleArea(r, "/admin", models.RoleAdmin)
	h.roleArea(r, "/teacher", models.RoleTeacher)
	h.roleArea(r, "/student", models.RoleStudent)

	return r
}

func (h *Handler) roleArea(r chi.Router, prefix string, role models.Role) {
	r.Route(prefix, func(r chi.Router) {
		r.Use(guardmw.Protect(h.sessions, guard.Requirement{
			RequiresAuth: true,
			AllowedRoles: []models.Role{role},
		}, h.logger, guardmw.WithAudit(h.audit)))
		r.Use(h.markActivity)
		r.Get("/dashboard", h.handleDashboard)
	})
}

func roleHome(role models.Role) string {
	return guard.RoleHome(role)
}
