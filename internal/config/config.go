// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. MONETIZE_PAYSTACK_SECRET_KEY.
const EnvPrefix = "MONETIZE"

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxWebhookBytes int64         `yaml:"max_webhook_bytes"`
	// RateLimit caps purchase and payout requests per caller per minute.
	RateLimit int `yaml:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // user cache ttl
}

type PaystackConfig struct {
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url"`
	Currency      string `yaml:"currency"`
}

type NombaConfig struct {
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	AccountID     string `yaml:"account_id"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url"`
}

type SandboxConfig struct {
	Enabled       bool   `yaml:"enabled"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type PaymentConfig struct {
	CommissionRate float64        `yaml:"commission_rate"` // seed value for platform_settings
	Currency       string         `yaml:"currency"`
	CallbackURL    string         `yaml:"callback_url"`
	HTTPTimeout    time.Duration  `yaml:"http_timeout"`
	Paystack       PaystackConfig `yaml:"paystack"`
	Stripe         StripeConfig   `yaml:"stripe"`
	Nomba          NombaConfig    `yaml:"nomba"`
	Sandbox        SandboxConfig  `yaml:"sandbox"`
}

type PayoutConfig struct {
	LockTTL time.Duration `yaml:"lock_ttl"`
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	BatchSize         int           `yaml:"batch_size"`
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type SecurityConfig struct {
	// EncryptionKey seals bank account numbers at rest. 16, 24 or 32 bytes;
	// empty stores them in plaintext.
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Payout    PayoutConfig    `yaml:"payout"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Admin     AdminConfig     `yaml:"admin"`
	Security  SecurityConfig  `yaml:"security"`
	Workers   int             `yaml:"workers"` // side-effect pool size

	Runtime RuntimeConfig `yaml:"-"`
}

// secretOverrides are the values that may come from the environment instead
// of the config file. Empty variables leave the file value untouched.
type secretOverrides struct {
	DatabaseURL          string `envconfig:"DATABASE_URL"`
	RedisURL             string `envconfig:"REDIS_URL"`
	RedisPassword        string `envconfig:"REDIS_PASSWORD"`
	PaystackSecretKey    string `envconfig:"PAYSTACK_SECRET_KEY"`
	StripeSecretKey      string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret  string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	NombaClientID        string `envconfig:"NOMBA_CLIENT_ID"`
	NombaClientSecret    string `envconfig:"NOMBA_CLIENT_SECRET"`
	NombaAccountID       string `envconfig:"NOMBA_ACCOUNT_ID"`
	NombaWebhookSecret   string `envconfig:"NOMBA_WEBHOOK_SECRET"`
	SandboxWebhookSecret string `envconfig:"SANDBOX_WEBHOOK_SECRET"`
	AdminJWTSecret       string `envconfig:"ADMIN_JWT_SECRET"`
	EncryptionKey        string `envconfig:"ENCRYPTION_KEY"`
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// defaults, and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse is LoadConfig without the file read.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var env secretOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Database.URL, env.DatabaseURL)
	override(&cfg.Redis.URL, env.RedisURL)
	override(&cfg.Redis.Password, env.RedisPassword)
	override(&cfg.Payment.Paystack.SecretKey, env.PaystackSecretKey)
	override(&cfg.Payment.Stripe.SecretKey, env.StripeSecretKey)
	override(&cfg.Payment.Stripe.WebhookSecret, env.StripeWebhookSecret)
	override(&cfg.Payment.Nomba.ClientID, env.NombaClientID)
	override(&cfg.Payment.Nomba.ClientSecret, env.NombaClientSecret)
	override(&cfg.Payment.Nomba.AccountID, env.NombaAccountID)
	override(&cfg.Payment.Nomba.WebhookSecret, env.NombaWebhookSecret)
	override(&cfg.Payment.Sandbox.WebhookSecret, env.SandboxWebhookSecret)
	override(&cfg.Admin.JWTSecret, env.AdminJWTSecret)
	override(&cfg.Security.EncryptionKey, env.EncryptionKey)
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.HTTP.RateLimit <= 0 {
		cfg.HTTP.RateLimit = 20
	}
	if cfg.HTTP.MaxWebhookBytes <= 0 {
		cfg.HTTP.MaxWebhookBytes = 1 << 20
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "NGN"
	}
	cfg.Payment.Currency = strings.ToUpper(cfg.Payment.Currency)
	if cfg.Payment.HTTPTimeout <= 0 {
		cfg.Payment.HTTPTimeout = 30 * time.Second
	}
	if cfg.Payment.CommissionRate == 0 {
		cfg.Payment.CommissionRate = 0.15
	}
	if cfg.Payout.LockTTL <= 0 {
		cfg.Payout.LockTTL = 30 * time.Second
	}
	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = 5 * time.Minute
	}
	if cfg.Scheduler.StaleAfter <= 0 {
		cfg.Scheduler.StaleAfter = 15 * time.Minute
	}
	if cfg.Scheduler.BatchSize <= 0 {
		cfg.Scheduler.BatchSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
}

func validate(cfg *Config) error {
	// Minimal validation
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if cfg.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required")
	}
	if cfg.Payment.CommissionRate < 0 || cfg.Payment.CommissionRate >= 1 {
		return errors.New("payment.commission_rate must be in [0,1)")
	}
	if k := len(cfg.Security.EncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return errors.New("security.encryption_key must be 16, 24, or 32 bytes")
	}
	if !cfg.anyProvider() {
		return errors.New("at least one payment provider must be configured")
	}
	return nil
}

func (c *Config) anyProvider() bool {
	p := c.Payment
	return p.Paystack.SecretKey != "" || p.Stripe.SecretKey != "" || p.Nomba.ClientID != "" || p.Sandbox.Enabled
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Minute
	}
	return d
}
