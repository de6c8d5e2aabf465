package jwtauth

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
)

const issuer = "artstore-admin"

// Issuer signs access and refresh tokens with the key set's current primary
// key (§4.11).
type Issuer struct {
	keys *KeySet
}

// NewIssuer wraps a KeySet for signing.
func NewIssuer(keys *KeySet) *Issuer {
	return &Issuer{keys: keys}
}

// Issue signs a token for subject with the given custom claims and TTL,
// stamping a fresh jti (§4.11).
func (iss *Issuer) Issue(subject string, claims Claims, ttl time.Duration, now time.Time) (string, error) {
	primary, ok := iss.keys.Primary()
	if !ok {
		return "", fmt.Errorf("no active signing key")
	}
	priv, err := primary.PrivateKey()
	if err != nil {
		return "", fmt.Errorf("loading signing key: %w", err)
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: priv},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", primary.Version.String()),
	)
	if err != nil {
		return "", fmt.Errorf("creating signer: %w", err)
	}

	registered := jwt.Claims{
		Subject:   subject,
		Issuer:    issuer,
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(ttl)),
	}

	token, err := jwt.Signed(signer).Claims(registered).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

// TokenPair is the issue_*_tokens response shape (§4.11).
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int
}

// AccessTokenTTL and RefreshTokenTTL are the §4.11 fixed lifetimes.
const (
	AccessTokenTTL  = 30 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// IssuePair issues an access+refresh token pair for a principal.
func (iss *Issuer) IssuePair(subject string, claims Claims, now time.Time) (TokenPair, error) {
	access, err := iss.Issue(subject, claims, AccessTokenTTL, now)
	if err != nil {
		return TokenPair{}, err
	}
	refreshClaims := claims
	refresh, err := iss.Issue(subject, refreshClaims, RefreshTokenTTL, now)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(AccessTokenTTL.Seconds()),
	}, nil
}
