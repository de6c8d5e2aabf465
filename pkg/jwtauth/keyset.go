package jwtauth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// KeyBits is the RSA key size mandated by §4.12 step 1.
const KeyBits = 2048

// Key is one RS256 keypair in the Admin key set (§3.6).
type Key struct {
	Version       uuid.UUID
	PrivateKeyPEM string
	PublicKeyPEM  string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	IsActive      bool
}

// GenerateKey creates a fresh RSA-2048 keypair and PEM-encodes both halves.
func GenerateKey(now time.Time, expiresAt time.Time) (Key, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return Key{}, fmt.Errorf("generating RSA key: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
	pubBytes, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return Key{}, fmt.Errorf("marshaling public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	return Key{
		Version:       uuid.New(),
		PrivateKeyPEM: string(privPEM),
		PublicKeyPEM:  string(pubPEM),
		CreatedAt:     now,
		ExpiresAt:     expiresAt,
		IsActive:      true,
	}, nil
}

// PrivateKey parses the PEM-encoded private key.
func (k Key) PrivateKey() (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(k.PrivateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("decoding private key PEM: no block found")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// PublicKey parses the PEM-encoded public key.
func (k Key) PublicKey() (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(k.PublicKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("decoding public key PEM: no block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return rsaPub, nil
}

// KeySet is the in-memory validation/signing view over the persisted key
// rows (§3.6, §4.11, §4.12). Primary is always the newest active key.
type KeySet struct {
	keys []Key // newest first
}

// NewKeySet builds a KeySet from persisted rows, ordering newest-first so
// Validate iterates in the order §4.11 requires.
func NewKeySet(keys []Key) *KeySet {
	sorted := make([]Key, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	return &KeySet{keys: sorted}
}

// Primary returns the current signing key: the newest active key.
func (ks *KeySet) Primary() (Key, bool) {
	for _, k := range ks.keys {
		if k.IsActive {
			return k, true
		}
	}
	return Key{}, false
}

// Active returns every key still eligible for validation, newest first.
func (ks *KeySet) Active() []Key {
	out := make([]Key, 0, len(ks.keys))
	for _, k := range ks.keys {
		if k.IsActive {
			out = append(out, k)
		}
	}
	return out
}

// ByVersion finds a key by its version id regardless of active state, used
// during the grace period validation window (§4.11).
func (ks *KeySet) ByVersion(version uuid.UUID) (Key, bool) {
	for _, k := range ks.keys {
		if k.Version == version {
			return k, true
		}
	}
	return Key{}, false
}
