// Package guard decides, per navigation, whether the current session may view
// a route. Evaluate is pure: it never mutates session state and produces only
// a Decision.
package guard

import "passage/internal/session/models"

// Well-known paths driven by guard decisions.
const (
	PathLogin     = "/login"
	PathForbidden = "/forbidden"
)

// Action is the outcome class of a guard decision.
type Action string

const (
	Allow             Action = "allow"
	RedirectLogin     Action = "redirect_login"
	RedirectForbidden Action = "redirect_forbidden"
	RedirectHome      Action = "redirect_home"
)

// Decision is a guard outcome. Target is the redirect destination and empty
// for Allow.
type Decision struct {
	Action Action
	Target string
}

// Requirement is static per-route access policy, attached at route definition
// time; it is not runtime state.
type Requirement struct {
	RequiresAuth bool
	AllowedRoles []models.Role
}

// RoleHome maps a role to its dashboard. An invalid role maps to the login
// path; callers treat that as an error condition, not a destination of merit.
func RoleHome(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return "/admin/dashboard"
	case models.RoleTeacher:
		return "/teacher/dashboard"
	case models.RoleStudent:
		return "/student/dashboard"
	}
	return PathLogin
}

// Evaluate applies the redirect-precedence rules in fixed order, first match
// wins. The ordering is load-bearing: an authenticated user hitting the login
// path must never see the login page (rule 1 before rule 2), and an anonymous
// user must be asked to log in, never told "forbidden" (rule 2 before rule 3).
// A role outside the closed enumeration is denied, never allowed.
func Evaluate(path string, req Requirement, sess models.Snapshot) Decision {
	if path == PathLogin && sess.Authenticated() {
		role := sess.Role()
		if !role.Valid() {
			return Decision{Action: RedirectLogin, Target: PathLogin}
		}
		return Decision{Action: RedirectHome, Target: RoleHome(role)}
	}

	if req.RequiresAuth && !sess.Authenticated() {
		return Decision{Action: RedirectLogin, Target: PathLogin}
	}

	if req.RequiresAuth && len(req.AllowedRoles) > 0 {
		role := sess.Role()
		if !role.Valid() {
			// An established session with an unknown role is not a lesser
			// privilege tier; it is no valid session at all.
			return Decision{Action: RedirectLogin, Target: PathLogin}
		}
		if !allowed(role, req.AllowedRoles) {
			return Decision{Action: RedirectForbidden, Target: PathForbidden}
		}
	}

	return Decision{Action: Allow}
}

// allowed matches only entries from the closed enumeration, so a misconfigured
// requirement denies rather than allows.
func allowed(role models.Role, roles []models.Role) bool {
	for _, r := range roles {
		if r.Valid() && r == role {
			return true
		}
	}
	return false
}
