package authcore

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.JWT.AccessTTL != 30*time.Minute {
		t.Fatalf("access ttl = %v, want 30m", cfg.JWT.AccessTTL)
	}
	if cfg.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("refresh ttl = %v, want 168h", cfg.RefreshTTL)
	}
	if len(cfg.JWT.Secret) != 0 {
		t.Fatal("default config must not ship a signing secret")
	}
	if cfg.Audit.Enabled {
		t.Fatal("audit defaults to off")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	bad := DefaultConfig()
	bad.RefreshTTL = -time.Hour
	if err := bad.validate(); err == nil {
		t.Fatal("expected negative refresh ttl to fail")
	}

	inverted := DefaultConfig()
	inverted.JWT.AccessTTL = 8 * 24 * time.Hour
	if err := inverted.validate(); err == nil {
		t.Fatal("expected access ttl >= refresh ttl to fail")
	}
}

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	if cfg.JWT.AccessTTL != 30*time.Minute {
		t.Fatalf("access ttl = %v, want filled default", cfg.JWT.AccessTTL)
	}
	if cfg.RefreshKeyPrefix != "ac" {
		t.Fatalf("prefix = %q, want ac", cfg.RefreshKeyPrefix)
	}
	if cfg.Password.Memory == 0 {
		t.Fatal("password defaults not applied")
	}
	if cfg.Audit.BufferSize == 0 {
		t.Fatal("audit buffer default not applied")
	}
}
