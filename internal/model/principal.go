package model

import "github.com/google/uuid"

type UserRole string

const (
	UserRoleAdmin    UserRole = "ADMIN"
	UserRoleOperator UserRole = "OPERATOR"
)

type Principal struct {
	UserID uuid.UUID
	Role   UserRole
}

func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin
}

// IsStaff covers everyone allowed on the admin surface.
func (p Principal) IsStaff() bool {
	return p.Role == UserRoleAdmin || p.Role == UserRoleOperator
}
