package jwtauth

import (
	"testing"
	"time"
)

func TestIssueAndValidateRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	key, err := GenerateKey(now, now.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	ks := NewKeySet([]Key{key})
	issuer := NewIssuer(ks)

	token, err := issuer.Issue("sa_prod_backup_ab12", Claims{
		Type:     PrincipalServiceAccount,
		Role:     "ADMIN",
		ClientID: "sa_prod_backup_ab12",
		Name:     "backup-job",
	}, AccessTokenTTL, now)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	validator := NewValidator(ks)
	got, err := validator.Validate(token, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got.Subject() != "sa_prod_backup_ab12" {
		t.Errorf("Subject() = %q, want sa_prod_backup_ab12", got.Subject())
	}
	if !got.IsServiceAccount() {
		t.Errorf("IsServiceAccount() = false, want true")
	}
	if got.Claims.Role != "ADMIN" {
		t.Errorf("Role = %q, want ADMIN", got.Claims.Role)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	key, _ := GenerateKey(now, now.Add(48*time.Hour))
	ks := NewKeySet([]Key{key})
	issuer := NewIssuer(ks)

	token, err := issuer.Issue("alice", Claims{Type: PrincipalAdminUser, Role: "admin"}, time.Minute, now)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	validator := NewValidator(ks)
	if _, err := validator.Validate(token, now.Add(time.Hour)); err == nil {
		t.Errorf("Validate() error = nil, want expiry error")
	}
}

func TestValidateHonorsGraceWindowAfterDeactivation(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	oldKey, _ := GenerateKey(now, now.Add(48*time.Hour))
	ks := NewKeySet([]Key{oldKey})
	issuer := NewIssuer(ks)

	token, err := issuer.Issue("sa_x", Claims{Type: PrincipalServiceAccount, Role: "USER"}, AccessTokenTTL, now)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	deactivated := oldKey
	deactivated.IsActive = false
	deactivated.ExpiresAt = now
	newKey, _ := GenerateKey(now, now.Add(48*time.Hour))
	ks2 := NewKeySet([]Key{newKey, deactivated})
	validator := NewValidator(ks2)

	withinGrace := now.Add(10 * time.Minute)
	if _, err := validator.Validate(token, withinGrace); err != nil {
		t.Errorf("Validate() within grace window error = %v, want nil", err)
	}

	afterGrace := now.Add(AccessTokenTTL + ClockSkew + time.Minute)
	if _, err := validator.Validate(token, afterGrace); err == nil {
		t.Errorf("Validate() after grace window error = nil, want rejection")
	}
}

func TestKeySetPrimaryIsNewestActive(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older, _ := GenerateKey(now.Add(-time.Hour), now.Add(47*time.Hour))
	newer, _ := GenerateKey(now, now.Add(48*time.Hour))
	ks := NewKeySet([]Key{older, newer})

	primary, ok := ks.Primary()
	if !ok {
		t.Fatal("Primary() ok = false, want true")
	}
	if primary.Version != newer.Version {
		t.Errorf("Primary() = %v, want the newer key", primary.Version)
	}
}
