package config

import (
	"os"
	"testing"
)

func TestLoadSEDefaults(t *testing.T) {
	os.Setenv("APP_MODE", "rw")
	os.Setenv("STORAGE_ELEMENT_ID", "se-test-1")
	os.Setenv("DB_TABLE_PREFIX", "se1")
	os.Setenv("ADMIN_BASE_URL", "http://admin.test:8081")
	defer os.Unsetenv("APP_MODE")
	defer os.Unsetenv("STORAGE_ELEMENT_ID")
	defer os.Unsetenv("DB_TABLE_PREFIX")
	defer os.Unsetenv("ADMIN_BASE_URL")

	cfg, err := LoadSE()
	if err != nil {
		t.Fatalf("LoadSE() error: %v", err)
	}

	tests := []struct {
		name  string
		check func(*SEConfig) bool
	}{
		{"default host", func(c *SEConfig) bool { return c.Host == "0.0.0.0" }},
		{"default port", func(c *SEConfig) bool { return c.Port == 8080 }},
		{"default log level", func(c *SEConfig) bool { return c.LogLevel == "info" }},
		{"default log format", func(c *SEConfig) bool { return c.LogFormat == "json" }},
		{"mode from env", func(c *SEConfig) bool { return c.AppMode == "rw" }},
		{"element id from env", func(c *SEConfig) bool { return c.StorageElementID == "se-test-1" }},
		{"health report ttl derived", func(c *SEConfig) bool { return c.HealthReportTTL == 90 }},
		{"cache ttl edit default", func(c *SEConfig) bool { return c.CacheTTLHoursEdit == 24 }},
		{"cache ttl ro default", func(c *SEConfig) bool { return c.CacheTTLHoursRO == 168 }},
		{"listen addr", func(c *SEConfig) bool { return c.ListenAddr() == "0.0.0.0:8080" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(cfg) {
				t.Errorf("unexpected value for %s", tt.name)
			}
		})
	}
}

func TestLoadSERequiresElementID(t *testing.T) {
	os.Setenv("APP_MODE", "edit")
	os.Unsetenv("STORAGE_ELEMENT_ID")
	os.Unsetenv("DB_TABLE_PREFIX")
	defer os.Unsetenv("APP_MODE")

	if _, err := LoadSE(); err == nil {
		t.Fatal("expected error when STORAGE_ELEMENT_ID and DB_TABLE_PREFIX are unset")
	}
}

func TestLoadAdminDefaults(t *testing.T) {
	cfg, err := LoadAdmin()
	if err != nil {
		t.Fatalf("LoadAdmin() error: %v", err)
	}

	if cfg.Port != 8081 {
		t.Errorf("expected default port 8081, got %d", cfg.Port)
	}
	if cfg.JWTAlgorithm != "RS256" {
		t.Errorf("expected RS256, got %s", cfg.JWTAlgorithm)
	}
	if cfg.JWTAccessTokenExpireMinutes != 30 {
		t.Errorf("expected 30 minute access token TTL, got %d", cfg.JWTAccessTokenExpireMinutes)
	}
	if cfg.JWTRefreshTokenExpireDays != 7 {
		t.Errorf("expected 7 day refresh token TTL, got %d", cfg.JWTRefreshTokenExpireDays)
	}
	if cfg.SchedulerGCIntervalHours != 6 {
		t.Errorf("expected 6 hour GC interval, got %d", cfg.SchedulerGCIntervalHours)
	}
}
