// Package audit records session lifecycle events. Events are appended to a
// Store so operators can reconstruct who signed in, who was forced out, and
// which access attempts were denied.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names a session lifecycle event.
type Action string

const (
	ActionLogin          Action = "login"
	ActionLoginFailed    Action = "login_failed"
	ActionLogout         Action = "logout"
	ActionIdleLogout     Action = "idle_logout"
	ActionSessionExpired Action = "session_expired"
	ActionForbidden      Action = "forbidden"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string
	Timestamp time.Time
	UserID    string
	Action    Action
	Reason    string
}

// NewEvent stamps an event with an ID and the current time.
func NewEvent(action Action, userID, reason string) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Action:    action,
		Reason:    reason,
	}
}
