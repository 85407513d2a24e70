package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
database:
  url: postgres://localhost/monetize
redis:
  url: localhost:6379
admin:
  jwt_secret: s3cret
payment:
  paystack:
    secret_key: sk_test_file
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML), false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HTTP.Port != 8080 || cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("unexpected defaults %+v %+v", cfg.HTTP, cfg.Log)
	}
	if cfg.Payment.Currency != "NGN" || cfg.Payment.CommissionRate != 0.15 || cfg.Payment.HTTPTimeout != 30*time.Second {
		t.Errorf("unexpected payment defaults %+v", cfg.Payment)
	}
	if cfg.Payout.LockTTL != 30*time.Second || cfg.Scheduler.StaleAfter != 15*time.Minute || cfg.Workers != 4 {
		t.Errorf("unexpected payout/scheduler defaults %+v %+v", cfg.Payout, cfg.Scheduler)
	}
	if cfg.Redis.TTL != 5*time.Minute {
		t.Errorf("expected 5m redis ttl, got %s", cfg.Redis.TTL)
	}
}

func TestParse_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("MONETIZE_PAYSTACK_SECRET_KEY", "sk_test_env")
	t.Setenv("MONETIZE_ADMIN_JWT_SECRET", "env-secret")
	t.Setenv("MONETIZE_ENCRYPTION_KEY", "0123456789abcdef")

	cfg, err := Parse([]byte(minimalYAML), true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Payment.Paystack.SecretKey != "sk_test_env" {
		t.Errorf("expected env secret key, got %s", cfg.Payment.Paystack.SecretKey)
	}
	if cfg.Admin.JWTSecret != "env-secret" {
		t.Errorf("expected env jwt secret, got %s", cfg.Admin.JWTSecret)
	}
	if cfg.Security.EncryptionKey != "0123456789abcdef" {
		t.Errorf("expected env encryption key, got %q", cfg.Security.EncryptionKey)
	}
	if !cfg.Runtime.Dev {
		t.Error("expected dev runtime flag")
	}
}

func TestParse_Validation(t *testing.T) {
	cases := []struct {
		name   string
		yaml   string
		expect string
	}{
		{"missing database", strings.Replace(minimalYAML, "postgres://localhost/monetize", "", 1), "database.url"},
		{"missing redis", strings.Replace(minimalYAML, "localhost:6379", "", 1), "redis.url"},
		{"missing jwt secret", strings.Replace(minimalYAML, "s3cret", "", 1), "jwt_secret"},
		{"no provider", strings.Replace(minimalYAML, "sk_test_file", "", 1), "provider"},
		{"bad commission", minimalYAML + "  commission_rate: 1.5\n", "commission_rate"},
		{"bad encryption key", minimalYAML + "security:\n  encryption_key: tooshort\n", "encryption_key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml), false)
			if err == nil || !strings.Contains(err.Error(), tc.expect) {
				t.Fatalf("expected error mentioning %q, got %v", tc.expect, err)
			}
		})
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML+"workers: 9\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers != 9 {
		t.Errorf("expected 9 workers, got %d", cfg.Workers)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), false); err == nil {
		t.Error("expected error for missing file")
	}
}
