package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV_FILE", "APP_ENV", "PORT", "DATABASE_URL", "REDIS_URL", "LEDGER_URL", "LEDGER_TIMEOUT",
		"LEDGER_RATE_LIMIT", "INITIAL_SUPPLY", "TRANSFER_AMOUNT", "REDACT_PRIVATE_KEYS",
		"RECONCILE_SCHEDULE", "RECONCILE_REPAIR", "AUTH_SECRET", "RATE_LIMIT_PER_MINUTE",
		shutdownSecondsEnvVar, shutdownDurationEnvVar,
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.IsDev() {
		t.Fatalf("expected development environment, got %q", cfg.AppEnv)
	}
	if cfg.InitialSupply != 100 || cfg.InitialAllocation != 100 || cfg.NFTSupply != 1 || cfg.TransferAmount != 1 {
		t.Fatalf("unexpected policy defaults %+v", cfg)
	}
	if cfg.LedgerTimeout != 30*time.Second || cfg.Address() != ":8080" {
		t.Fatalf("unexpected defaults timeout=%s addr=%s", cfg.LedgerTimeout, cfg.Address())
	}
	if cfg.RedactPrivateKeys {
		t.Fatal("private keys must not be redacted by default")
	}
	if cfg.RateLimitPerMin != 60 {
		t.Fatalf("unexpected rate limit default %d", cfg.RateLimitPerMin)
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	content := "LEDGER_URL=http://ledger:9984\nTRANSFER_AMOUNT=3\nREDACT_PRIVATE_KEYS=true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("PORT", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LedgerURL != "http://ledger:9984" || cfg.TransferAmount != 3 || !cfg.RedactPrivateKeys {
		t.Fatalf("env file not applied: %+v", cfg)
	}
	if cfg.Address() != ":9090" {
		t.Fatalf("expected explicit env to win, got %s", cfg.Address())
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an explicit missing env file")
	}
}

func TestLoadRequiresBackendsOutsideDev(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/edges")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "LEDGER_URL") {
		t.Fatalf("expected LEDGER_URL error, got %v", err)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	for key, value := range map[string]string{
		"INITIAL_SUPPLY":        "lots",
		"LEDGER_TIMEOUT":        "soon",
		"LEDGER_TIMEOUT=0s":     "0s",
		"LEDGER_RATE_LIMIT":     "fast",
		"REDACT_PRIVATE_KEYS":   "maybe",
		"RATE_LIMIT_PER_MINUTE": "many",
		shutdownSecondsEnvVar:   "ten",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			name, _, _ := strings.Cut(key, "=")
			t.Setenv(name, value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), name) {
				t.Fatalf("expected error naming %s, got %v", name, err)
			}
		})
	}
}
