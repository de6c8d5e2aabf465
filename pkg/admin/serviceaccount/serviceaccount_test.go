package serviceaccount

import (
	"testing"
	"time"
)

func TestCanAuthenticate(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status Status
		expiry time.Time
		want   bool
	}{
		{"active and not expired", StatusActive, now.Add(time.Hour), true},
		{"active but expired", StatusActive, now.Add(-time.Hour), false},
		{"suspended", StatusSuspended, now.Add(time.Hour), false},
		{"expired status", StatusExpired, now.Add(time.Hour), false},
		{"deleted", StatusDeleted, now.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sa := ServiceAccount{Status: tt.status, SecretExpiresAt: tt.expiry}
			if got := sa.CanAuthenticate(now); got != tt.want {
				t.Errorf("CanAuthenticate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateSecretProducesVerifiableHash(t *testing.T) {
	secret, hash, err := generateSecret()
	if err != nil {
		t.Fatalf("generateSecret() error = %v", err)
	}
	if secret == "" || hash == "" {
		t.Fatal("generateSecret() returned empty secret or hash")
	}
	if !matchesHistory(secret, hash, nil) {
		t.Error("matchesHistory() = false for the secret that produced the hash")
	}
	if matchesHistory("wrong-secret", hash, nil) {
		t.Error("matchesHistory() = true for an unrelated secret")
	}
}

func TestAppendHistoryCapsAtDepth(t *testing.T) {
	var history []string
	for i := 0; i < secretHistoryDepth+3; i++ {
		history = appendHistory(history, "hash")
	}
	if len(history) != secretHistoryDepth {
		t.Errorf("len(history) = %d, want %d", len(history), secretHistoryDepth)
	}
}

func TestNewClientIDFormat(t *testing.T) {
	id := newClientID("prod", "My Account")
	if !hasPrefix(id, "sa_prod_my-account_") {
		t.Errorf("newClientID() = %q, want prefix sa_prod_my-account_", id)
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
