package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin   = "admin"
	RoleAnalyst = "analyst"
	RoleViewer  = "viewer"
)

// roleLevels orders roles for threshold checks: a higher level implies
// access to everything a lower level can do.
var roleLevels = map[string]int{
	RoleAdmin:   3,
	RoleAnalyst: 2,
	RoleViewer:  1,
}

// ValidRole reports whether role is a known role name.
func ValidRole(role string) bool {
	_, ok := roleLevels[role]
	return ok
}

// RoleAtLeast reports whether role meets or exceeds min in the role hierarchy.
// Unknown roles never satisfy any threshold.
func RoleAtLeast(role, min string) bool {
	have, ok := roleLevels[role]
	if !ok {
		return false
	}
	want, ok := roleLevels[min]
	if !ok {
		return false
	}
	return have >= want
}

// User is an authenticated identity. Role is assigned at registration and
// immutable afterwards; only the bcrypt hash of the password is stored.
type User struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	Email        string    `db:"email"         json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name"          json:"name"`
	Role         string    `db:"role"          json:"role"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updated_at"`
}
