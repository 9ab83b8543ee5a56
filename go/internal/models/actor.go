package models

import "fmt"

// Role is the permission level of a user in the session
type Role int

const (
	RolePlayer     Role = 1
	RoleTrusted    Role = 2
	RoleAssistant  Role = 3
	RoleGamemaster Role = 4
)

// Valid reports whether the role is a known role
func (r Role) Valid() bool {
	return r >= RolePlayer && r <= RoleGamemaster
}

func (r Role) String() string {
	switch r {
	case RolePlayer:
		return "player"
	case RoleTrusted:
		return "trusted"
	case RoleAssistant:
		return "assistant"
	case RoleGamemaster:
		return "gamemaster"
	default:
		return "unknown"
	}
}

// Actor is the identity on whose behalf an operation runs
type Actor struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// IsGM reports whether the actor has facilitator rights
func (a Actor) IsGM() bool {
	return a.Role >= RoleAssistant
}

// Owns reports whether the actor owns a tracker with the given owner id
func (a Actor) Owns(ownerID string) bool {
	return ownerID != "" && a.UserID == ownerID
}

// CanEdit reports whether the actor may mutate a tracker with the given owner id
func (a Actor) CanEdit(ownerID string) bool {
	return a.IsGM() || a.Owns(ownerID)
}

// ParseRole parses a role name as written in user files
func ParseRole(s string) (Role, error) {
	for r := RolePlayer; r <= RoleGamemaster; r++ {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}
