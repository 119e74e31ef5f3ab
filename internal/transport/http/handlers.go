// Package httptransport is the thin HTTP shell over the session core: login,
// logout and profile endpoints plus the role-gated page areas the guard
// protects. Handlers delegate to the session service; no business logic lives
// here.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"passage/internal/idle"
	"passage/internal/session/service"
	"passage/pkg/platform/audit"
	"passage/pkg/platform/sentinel"
)

type Handler struct {
	sessions *service.Service
	monitor  *idle.Monitor
	logger   *slog.Logger
	audit    audit.Store
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAudit records denied access attempts on the audit trail.
func WithAudit(a audit.Store) HandlerOption {
	return func(h *Handler) { h.audit = a }
}

// NewHandler wires the session service and (optionally) the idle monitor.
func NewHandler(sessions *service.Service, monitor *idle.Monitor, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{sessions: sessions, monitor: monitor, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	Role        string `json:"role"`
	Home        string `json:"home"`
	AccessToken string `json:"access_token"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}

	role, err := h.sessions.Login(r.Context(), req.Identifier, req.Password)
	if errors.Is(err, sentinel.ErrStale) {
		// A newer transition superseded this response; nothing to apply.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if h.monitor != nil {
		// The monitor outlives this request.
		h.monitor.Start(context.WithoutCancel(r.Context()))
	}

	var token string
	if snap := h.sessions.Current(); snap.Authenticated() {
		token = snap.Credential.AccessToken
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Role:        string(role),
		Home:        roleHome(role),
		AccessToken: token,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if h.monitor != nil {
		h.monitor.Stop()
	}
	_ = h.sessions.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.RefreshProfile(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	snap := h.sessions.Current()
	if !snap.Authenticated() {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "no active session")
		return
	}
	writeJSON(w, http.StatusOK, snap.Identity)
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"page": "login"})
}

func (h *Handler) handleForbiddenPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusForbidden, map[string]string{
		"page":              "forbidden",
		"error":             "forbidden",
		"error_description": "your role does not grant access to the requested page",
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap := h.sessions.Current()
	body := map[string]string{"page": r.URL.Path}
	if snap.Authenticated() {
		body["username"] = snap.Identity.Username
		body["role"] = string(snap.Identity.Role)
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// markActivity feeds authenticated requests into the idle countdown; in this
// shell an API call is the user-interaction signal. A session restored by
// hydration never went through the login handler, so the monitor is armed
// here too; Start is idempotent while running.
func (h *Handler) markActivity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.monitor != nil && h.sessions.Current().Authenticated() {
			h.monitor.Start(context.WithoutCancel(r.Context()))
			h.monitor.OnActivity(r.Context())
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
