package models

import "strings"

// Role is the closed access-control enumeration. Exactly one role per
// identity; multi-role accounts do not exist in this system.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r belongs to the closed enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// ParseRole normalizes a backend-supplied role string. "instructor" is a
// legacy alias for teacher accepted at this boundary only; everywhere else the
// canonical names are used. Unknown values return ok=false so callers fail
// closed instead of guessing a default.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, true
	case "teacher", "instructor":
		return RoleTeacher, true
	case "student":
		return RoleStudent, true
	}
	return "", false
}

// Credential is the opaque bearer token pair proving authentication to the
// backend. Owned exclusively by the token store: written on login, cleared on
// logout, never mutated otherwise.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// IsZero reports whether no token is present.
func (c Credential) IsZero() bool { return c.AccessToken == "" }

// Identity is the authenticated user's cached profile.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Snapshot is an immutable view of the session handed to guard decisions.
// Invariant: Credential is nil if and only if Identity is nil.
type Snapshot struct {
	Credential *Credential
	Identity   *Identity
}

// Authenticated reports whether the snapshot carries a full session.
func (s Snapshot) Authenticated() bool {
	return s.Credential != nil && s.Identity != nil
}

// Role returns the session role, or "" when anonymous.
func (s Snapshot) Role() Role {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Role
}
