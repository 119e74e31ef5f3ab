package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Role
		ok   bool
	}{
		{"admin", "admin", RoleAdmin, true},
		{"teacher", "teacher", RoleTeacher, true},
		{"student", "student", RoleStudent, true},
		{"legacy instructor alias", "instructor", RoleTeacher, true},
		{"mixed case", "Admin", RoleAdmin, true},
		{"surrounding whitespace", "  teacher ", RoleTeacher, true},
		{"empty", "", "", false},
		{"outside the closed set", "parent", "", false},
		{"superuser is not a role", "superuser", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRole(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleTeacher.Valid())
	assert.True(t, RoleStudent.Valid())
	assert.False(t, Role("instructor").Valid(), "alias is normalized at parse, not a member")
	assert.False(t, Role("").Valid())
}

func TestSnapshot(t *testing.T) {
	var empty Snapshot
	assert.False(t, empty.Authenticated())
	assert.Equal(t, Role(""), empty.Role())

	full := Snapshot{
		Credential: &Credential{AccessToken: "tok"},
		Identity:   &Identity{ID: "u1", Role: RoleStudent},
	}
	assert.True(t, full.Authenticated())
	assert.Equal(t, RoleStudent, full.Role())

	partial := Snapshot{Credential: &Credential{AccessToken: "tok"}}
	assert.False(t, partial.Authenticated(), "credential without identity is no session")
}
