package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != defaultPort {
		t.Fatalf("expected default port, got %s", cfg.Server.Port)
	}
	if cfg.Orders.WalkInCustomerID != "1" || cfg.Orders.DefaultOrderTypeID != "1" {
		t.Fatalf("unexpected order defaults: %+v", cfg.Orders)
	}
	if cfg.Orders.LoyaltyRatePercent != 10 {
		t.Fatalf("expected loyalty rate 10, got %d", cfg.Orders.LoyaltyRatePercent)
	}
	if cfg.Server.ReadTimeout != defaultReadTimeout {
		t.Fatalf("unexpected read timeout %s", cfg.Server.ReadTimeout)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "# local overrides\nPORT=9090\nFIRESTORE_PROJECT_ID=kiosk-local\nSERVER_READ_TIMEOUT=5s\nORDERS_WALKIN_CUSTOMER_ID=\"99\"\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(WithEnvFile(envFile))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "kiosk-local" {
		t.Fatalf("expected project kiosk-local, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("expected 5s read timeout, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Orders.WalkInCustomerID != "99" {
		t.Fatalf("expected quoted value stripped, got %q", cfg.Orders.WalkInCustomerID)
	}
}

func TestLoadProcessEnvWins(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("PORT=9090\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("PORT", "7070")

	cfg, err := Load(WithEnvFile(envFile))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Fatalf("expected process env to win, got %s", cfg.Server.Port)
	}
}

func TestLoadInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("SERVER_WRITE_TIMEOUT", "not-a-duration")
	cfg, err := Load(WithEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.WriteTimeout != defaultWriteTimeout {
		t.Fatalf("expected fallback write timeout, got %s", cfg.Server.WriteTimeout)
	}
}
