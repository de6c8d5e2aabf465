package jwtauth

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// ClockSkew is the leeway applied to exp/nbf/iat comparisons (§4.11).
const ClockSkew = 5 * time.Minute

// Validator checks bearer tokens against a KeySet, iterating active keys
// newest-first and honoring each key's post-deactivation grace window
// (§4.11: "a deactivated key remains in the active validation set for one
// full access-token TTL + clock skew").
type Validator struct {
	keys          *KeySet
	graceDuration time.Duration
}

// NewValidator builds a Validator with the default grace window.
func NewValidator(keys *KeySet) *Validator {
	return &Validator{keys: keys, graceDuration: AccessTokenTTL + ClockSkew}
}

// Validate parses raw and tries each candidate key (newest first) until one
// verifies the signature, then checks exp/nbf/iat. It rejects tokens with
// an algorithm other than RS256 or a missing "type" claim.
func (v *Validator) Validate(raw string, now time.Time) (Token, error) {
	parsed, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return Token{}, fmt.Errorf("parsing token: %w", err)
	}

	candidates := v.candidateKeys(now)
	if len(candidates) == 0 {
		return Token{}, fmt.Errorf("no candidate validation keys")
	}

	var lastErr error
	for _, k := range candidates {
		pub, err := k.PublicKey()
		if err != nil {
			lastErr = err
			continue
		}

		var registered jwt.Claims
		var custom Claims
		if err := parsed.Claims(pub, &registered, &custom); err != nil {
			lastErr = err
			continue
		}

		if custom.Type == "" {
			return Token{}, fmt.Errorf("token missing required type claim")
		}

		if err := registered.ValidateWithLeeway(jwt.Expected{
			Issuer: issuer,
			Time:   now,
		}, ClockSkew); err != nil {
			return Token{}, fmt.Errorf("validating claims: %w", err)
		}

		return Token{Registered: registered, Claims: custom}, nil
	}

	if lastErr != nil {
		return Token{}, fmt.Errorf("no candidate key validated token: %w", lastErr)
	}
	return Token{}, fmt.Errorf("no candidate key validated token")
}

// candidateKeys returns every active key plus any deactivated key still
// inside its post-deactivation grace window (§4.11), newest first so a
// freshly rotated key is tried before its predecessor.
func (v *Validator) candidateKeys(now time.Time) []Key {
	out := make([]Key, 0, len(v.keys.keys))
	for _, k := range v.keys.keys {
		if k.IsActive || v.withinGrace(k, now) {
			out = append(out, k)
		}
	}
	return out
}

func (v *Validator) withinGrace(k Key, now time.Time) bool {
	if k.IsActive {
		return true
	}
	return now.Before(k.ExpiresAt.Add(v.graceDuration))
}
