package domain

import "github.com/google/uuid"

// Role is the kind of account acting on the API.
type Role string

const (
	RoleDiver       Role = "diver"
	RoleCenterOwner Role = "center_owner"
	RoleAdmin       Role = "admin"
)

// Actor identifies who is performing an operation.
// It is derived from the bearer token by the HTTP layer.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// IsAdmin reports whether the actor has platform-wide rights.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
