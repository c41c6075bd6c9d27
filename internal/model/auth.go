package model

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleStaff   Role = "staff"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
	RoleSystem  Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleStaff, RoleDoctor, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// IsStaff reports whether r may drive the lifecycle on behalf of the office.
func (r Role) IsStaff() bool {
	switch r {
	case RoleStaff, RoleDoctor, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Actor is the caller identity every mutating operation is attributed to.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// TokenClaims represents JWT claims
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

func (c *TokenClaims) Actor() Actor {
	return Actor{ID: c.UserID, Role: c.Role}
}
