// Package jwtauth implements RS256 issuing and multi-key validation for the
// Admin Token Service (§4.11) and the bearer-auth middleware every Storage
// Element and Admin HTTP surface checks requests against.
package jwtauth

import (
	"github.com/go-jose/go-jose/v4/jwt"
)

// PrincipalType distinguishes the two kinds of bearer principal §3.5 defines.
type PrincipalType string

const (
	PrincipalServiceAccount PrincipalType = "service_account"
	PrincipalAdminUser      PrincipalType = "admin_user"
)

// Claims are the custom claims embedded alongside the registered JWT claims
// (§4.11): sub, type, role, client_id, name, rate_limit.
type Claims struct {
	Type      PrincipalType `json:"type"`
	Role      string        `json:"role"`
	ClientID  string        `json:"client_id,omitempty"`
	Name      string        `json:"name,omitempty"`
	RateLimit int           `json:"rate_limit,omitempty"`
}

// Token bundles the registered and custom claim sets extracted from a
// validated token.
type Token struct {
	Registered jwt.Claims
	Claims     Claims
}

// Subject returns the registered subject (username or service-account id).
func (t Token) Subject() string { return t.Registered.Subject }

// IsServiceAccount reports whether the token was issued for a service
// account rather than an admin user.
func (t Token) IsServiceAccount() bool { return t.Claims.Type == PrincipalServiceAccount }
