// Package serviceaccount implements the ServiceAccount identity and its
// state machine (§3.5, §4.13): creation, secret rotation, suspension, and
// soft deletion for the machine identities that authenticate against
// Storage Elements.
package serviceaccount

import (
	"time"

	"github.com/google/uuid"
)

// Role is a ServiceAccount's authorization role (§3.5), mapped onto SE
// scopes by pkg/se/httpapi's roleScopes table.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleUser     Role = "USER"
	RoleAuditor  Role = "AUDITOR"
	RoleReadonly Role = "READONLY"
)

// Status is a ServiceAccount's lifecycle state (§4.13).
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusExpired   Status = "EXPIRED"
	StatusSuspended Status = "SUSPENDED"
	StatusDeleted   Status = "DELETED"
)

const secretTTL = 90 * 24 * time.Hour
const secretHistoryDepth = 5

// ServiceAccount is the full persisted record (§3.5).
type ServiceAccount struct {
	ID               uuid.UUID
	Name             string
	ClientID         string
	ClientSecretHash string
	Role             Role
	Status           Status
	RateLimit        int
	SecretChangedAt  time.Time
	SecretExpiresAt  time.Time
	SecretHistory    []string
	IsSystem         bool
	CreatedAt        time.Time
}

// CanAuthenticate implements §4.13's can_authenticate().
func (sa ServiceAccount) CanAuthenticate(now time.Time) bool {
	return sa.Status == StatusActive && now.Before(sa.SecretExpiresAt)
}

// CreateRequest is the JSON body for POST /service-accounts.
type CreateRequest struct {
	Name      string `json:"name" validate:"required"`
	Role      string `json:"role" validate:"required,oneof=ADMIN USER AUDITOR READONLY"`
	RateLimit int    `json:"rate_limit" validate:"required,min=1"`
}

// UpdateRequest is the JSON body for PUT /service-accounts/{id}. Identity
// fields (name, client ID) and secret material are immutable here; only
// role and rate limit can be changed without a rotate-secret/suspend call.
type UpdateRequest struct {
	Role      string `json:"role" validate:"required,oneof=ADMIN USER AUDITOR READONLY"`
	RateLimit int    `json:"rate_limit" validate:"required,min=1"`
}

// Response is the JSON response for a ServiceAccount, never carrying secret
// material.
type Response struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	ClientID        string    `json:"client_id"`
	Role            Role      `json:"role"`
	Status          Status    `json:"status"`
	RateLimit       int       `json:"rate_limit"`
	SecretChangedAt time.Time `json:"secret_changed_at"`
	SecretExpiresAt time.Time `json:"secret_expires_at"`
	IsSystem        bool      `json:"is_system"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateResponse includes the raw client secret, shown only once.
type CreateResponse struct {
	Response
	ClientSecret string `json:"client_secret"`
}

func (sa ServiceAccount) ToResponse() Response {
	return Response{
		ID:              sa.ID,
		Name:            sa.Name,
		ClientID:        sa.ClientID,
		Role:            sa.Role,
		Status:          sa.Status,
		RateLimit:       sa.RateLimit,
		SecretChangedAt: sa.SecretChangedAt,
		SecretExpiresAt: sa.SecretExpiresAt,
		IsSystem:        sa.IsSystem,
		CreatedAt:       sa.CreatedAt,
	}
}
