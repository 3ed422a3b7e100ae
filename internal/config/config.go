package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"` // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT"` // json|console
	Sampling bool   `yaml:"sampling"`                // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port" env:"HTTP_PORT"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type RazorpayConfig struct {
	KeyID         string        `yaml:"key_id" env:"RAZORPAY_KEY_ID"`
	KeySecret     string        `yaml:"key_secret" env:"RAZORPAY_KEY_SECRET"`
	WebhookSecret string        `yaml:"webhook_secret" env:"RAZORPAY_WEBHOOK_SECRET"`
	BaseURL       string        `yaml:"base_url" env:"RAZORPAY_BASE_URL"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    uint64        `yaml:"max_retries"`
}

type PaymentConfig struct {
	Currency      string         `yaml:"currency" env:"PAYMENT_CURRENCY"`
	ReceiptPrefix string         `yaml:"receipt_prefix"`
	Razorpay      RazorpayConfig `yaml:"razorpay"`
}

type ReconcilerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	BatchSize  int           `yaml:"batch_size"`
	Workers    int           `yaml:"workers"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Payment    PaymentConfig    `yaml:"payment"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Load reads the YAML file at path (optional when empty), applies environment
// overrides and defaults, then validates.
func Load(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 30 * time.Second
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)

	c.Payment.Currency = strings.ToUpper(strings.TrimSpace(c.Payment.Currency))
	if c.Payment.Currency == "" {
		c.Payment.Currency = "INR"
	}
	if c.Payment.ReceiptPrefix == "" {
		c.Payment.ReceiptPrefix = "rcpt_"
	}
	rp := &c.Payment.Razorpay
	if rp.BaseURL == "" {
		rp.BaseURL = "https://api.razorpay.com"
	}
	if rp.Timeout <= 0 {
		rp.Timeout = 10 * time.Second
	}
	if rp.MaxRetries == 0 {
		rp.MaxRetries = 3
	}

	if c.Reconciler.Interval <= 0 {
		c.Reconciler.Interval = 5 * time.Minute
	}
	if c.Reconciler.StaleAfter <= 0 {
		c.Reconciler.StaleAfter = 30 * time.Minute
	}
	if c.Reconciler.BatchSize <= 0 {
		c.Reconciler.BatchSize = 200
	}
	if c.Reconciler.Workers <= 0 {
		c.Reconciler.Workers = 4
	}
}

// Validate checks the settings the billing core cannot run without.
func (c *Config) Validate() error {
	rp := c.Payment.Razorpay
	switch {
	case rp.KeyID == "":
		return errors.New("payment.razorpay.key_id is required")
	case rp.KeySecret == "":
		return errors.New("payment.razorpay.key_secret is required")
	case rp.WebhookSecret == "":
		return errors.New("payment.razorpay.webhook_secret is required")
	case rp.WebhookSecret == rp.KeySecret:
		return errors.New("payment.razorpay.webhook_secret must differ from key_secret")
	case c.Database.URL == "":
		return errors.New("database.url is required")
	case c.Auth.JWTSecret == "":
		return errors.New("auth.jwt_secret is required")
	}
	if len(c.Payment.Currency) != 3 || strings.ToUpper(c.Payment.Currency) != c.Payment.Currency {
		return fmt.Errorf("payment.currency %q is not a 3-letter ISO code", c.Payment.Currency)
	}
	for _, r := range c.Payment.Currency {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("payment.currency %q is not a 3-letter ISO code", c.Payment.Currency)
		}
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
