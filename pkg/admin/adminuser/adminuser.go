// Package adminuser implements the AdminUser identity and its lockout
// state machine (§3.5, §4.14): human operators of the Admin control plane.
package adminuser

import (
	"time"

	"github.com/google/uuid"
)

// Role is an AdminUser's authorization role (§3.5).
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleReadonly   Role = "readonly"
)

const (
	maxFailedLogins      = 5
	failedLoginWindow    = 15 * time.Minute
	lockoutDuration      = 15 * time.Minute
	passwordHistoryDepth = 5
	bcryptCost           = 12
)

// AdminUser is the full persisted record (§3.5).
type AdminUser struct {
	ID               uuid.UUID
	Username         string
	Email            string
	PasswordHash     string
	Role             Role
	Enabled          bool
	FailedLoginCount int
	FailedLoginSince time.Time
	LockedUntil      *time.Time
	LastLoginAt      *time.Time
	PasswordHistory  []string
	IsSystem         bool
	CreatedAt        time.Time
}

// CanLogin implements §4.14's can_login().
func (u AdminUser) CanLogin(now time.Time) bool {
	if !u.Enabled {
		return false
	}
	if u.LockedUntil == nil {
		return true
	}
	return now.After(*u.LockedUntil)
}

// CreateRequest is the JSON body for POST /admin-users.
type CreateRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=12"`
	Role     string `json:"role" validate:"required,oneof=super_admin admin readonly"`
}

// UpdateRequest is the JSON body for PUT /admin-users/{id}. Password and
// role changes go through their own dedicated endpoints; this covers the
// remaining mutable profile fields.
type UpdateRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Enabled bool   `json:"enabled"`
}

// ChangePasswordRequest is the JSON body for POST /admin-users/{id}/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=12"`
}

// Response is the JSON response for an AdminUser, never carrying password
// material.
type Response struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	Enabled     bool       `json:"enabled"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	IsSystem    bool       `json:"is_system"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (u AdminUser) ToResponse() Response {
	return Response{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		Enabled:     u.Enabled,
		LockedUntil: u.LockedUntil,
		LastLoginAt: u.LastLoginAt,
		IsSystem:    u.IsSystem,
		CreatedAt:   u.CreatedAt,
	}
}
