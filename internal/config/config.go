// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type WebConfig struct {
	Port        int      `yaml:"port"`
	PublicURL   string   `yaml:"public_url"` // external base URL, no trailing slash
	CORSOrigins []string `yaml:"cors_origins"`
}

type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	CookieName   string        `yaml:"cookie_name"`
	CookieDomain string        `yaml:"cookie_domain"`
	SecureCookie bool          `yaml:"secure_cookie"`
	TTL          time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Token       string `yaml:"token"` // static bearer for /admin endpoints
	MetricsUser string `yaml:"metrics_user"`
	MetricsPass string `yaml:"metrics_pass"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"` // per Window, per client IP
	Window   time.Duration `yaml:"window"`
}

type BillingConfig struct {
	StripeKey        string `yaml:"stripe_key"`
	WebhookSecret    string `yaml:"webhook_secret"`
	PriceMinor       int64  `yaml:"price_minor"`
	Currency         string `yaml:"currency"`
	SubscriptionType string `yaml:"subscription_type"`
}

type EntitlementConfig struct {
	TrialDays        int `yaml:"trial_days"`
	QuotaWindowDays  int `yaml:"quota_window_days"`
	FreeRequestLimit int `yaml:"free_request_limit"`
	GrantDays        int `yaml:"grant_days"`
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	PendingCutoff     time.Duration `yaml:"pending_cutoff"`
	BatchSize         int           `yaml:"batch_size"`
	Workers           int           `yaml:"workers"`
}

type Config struct {
	Web         WebConfig         `yaml:"web"`
	Auth        AuthConfig        `yaml:"auth"`
	Log         LogConfig         `yaml:"log"`
	Admin       AdminConfig       `yaml:"admin"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Billing     BillingConfig     `yaml:"billing"`
	Entitlement EntitlementConfig `yaml:"entitlement"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses flags, reads the YAML file and applies defaults.
// `${VAR}` references in the file are expanded from the environment, so
// secrets (Stripe keys, JWT secret) can live in the environment or a .env
// file rather than in the YAML itself.
func LoadConfig() (*Config, error) {
	var configPath string = ""
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Web.Port <= 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Web.PublicURL == "" {
		cfg.Web.PublicURL = fmt.Sprintf("http://localhost:%d", cfg.Web.Port)
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "stagecall_session"
	}
	if cfg.Auth.TTL <= 0 {
		cfg.Auth.TTL = 7 * 24 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.RateLimit.Requests <= 0 {
		cfg.RateLimit.Requests = 10
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.Billing.PriceMinor <= 0 {
		cfg.Billing.PriceMinor = 999
	}
	if cfg.Billing.Currency == "" {
		cfg.Billing.Currency = "usd"
	}
	if cfg.Billing.SubscriptionType == "" {
		cfg.Billing.SubscriptionType = "pro_monthly"
	}
	if cfg.Entitlement.TrialDays <= 0 {
		cfg.Entitlement.TrialDays = 7
	}
	if cfg.Entitlement.QuotaWindowDays <= 0 {
		cfg.Entitlement.QuotaWindowDays = 30
	}
	if cfg.Entitlement.FreeRequestLimit <= 0 {
		cfg.Entitlement.FreeRequestLimit = 20
	}
	if cfg.Entitlement.GrantDays <= 0 {
		cfg.Entitlement.GrantDays = 30
	}
	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = 5 * time.Minute
	}
	if cfg.Scheduler.PendingCutoff <= 0 {
		cfg.Scheduler.PendingCutoff = 30 * time.Minute
	}
	if cfg.Scheduler.BatchSize <= 0 {
		cfg.Scheduler.BatchSize = 200
	}
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 4
	}

	// Minimal validation
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
