package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/mail"
	"github.com/MrEthical07/sessionauth/password"
)

// Config is the resolved runtime configuration of the authd service.
type Config struct {
	HTTPAddr string
	LogLevel slog.Level

	// An empty RedisURL starts an in-process miniredis; an empty DatabaseURL
	// keeps accounts in memory. Both are for development only.
	RedisURL    string
	DatabaseURL string
	AutoMigrate bool

	CookieName        string
	CookieSecure      bool
	TrustForwardedFor bool

	// AllowDirectRegister mounts the registration route that skips activation.
	AllowDirectRegister bool

	// With an empty SMTP.Host activation mail is logged instead of sent.
	SMTP mail.SMTPConfig

	Engine sessionauth.Config
}

// configFile mirrors the YAML schema of configs/authd.yaml.
type configFile struct {
	Service struct {
		HTTPAddr          string `yaml:"http_addr"`
		LogLevel          string `yaml:"log_level"`
		CookieName        string `yaml:"cookie_name"`
		CookieSecure      *bool  `yaml:"cookie_secure"`
		TrustForwardedFor *bool  `yaml:"trust_forwarded_for"`
		AllowDirect       *bool  `yaml:"allow_direct_register"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
		AutoMigrate *bool  `yaml:"auto_migrate"`
	} `yaml:"dependencies"`
	SMTP mail.SMTPConfig `yaml:"smtp"`
	Auth struct {
		MaxAttempts                int    `yaml:"max_attempts"`
		LockoutDuration            string `yaml:"lockout_duration"`
		PurgeInterval              string `yaml:"purge_interval"`
		SessionDuration            string `yaml:"session_duration"`
		PasswordAlgorithm          string `yaml:"password_algorithm"`
		InvalidateSessionsOnChange *bool  `yaml:"invalidate_sessions_on_change"`
		ActivationURL              string `yaml:"activation_url"`
		SiteName                   string `yaml:"site_name"`
		AuditMirror                *bool  `yaml:"audit_mirror"`
	} `yaml:"auth"`
}

// LoadConfig resolves configuration in priority order: defaults, then the
// file at path if it exists, then environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		HTTPAddr:    ":8080",
		LogLevel:    slog.LevelInfo,
		AutoMigrate: true,
		CookieName:  "auth_session",
		SMTP:        mail.SMTPConfig{Port: 587},
		Engine:      sessionauth.DefaultConfig(),
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := applyFile(&cfg, raw); err != nil {
				return Config{}, err
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.CookieName == "" {
		return Config{}, fmt.Errorf("cookie name must not be empty")
	}
	if cfg.Engine.Password.Algorithm == password.AlgorithmBcrypt && cfg.Engine.Policy.MaxPassword > password.BcryptMaxLength {
		cfg.Engine.Policy.MaxPassword = password.BcryptMaxLength
	}
	if err := cfg.Engine.Validate(); err != nil {
		return Config{}, fmt.Errorf("engine config: %w", err)
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if f.Service.HTTPAddr != "" {
		cfg.HTTPAddr = f.Service.HTTPAddr
	}
	if f.Service.LogLevel != "" {
		level, err := parseLevel(f.Service.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if f.Service.CookieName != "" {
		cfg.CookieName = f.Service.CookieName
	}
	if f.Service.CookieSecure != nil {
		cfg.CookieSecure = *f.Service.CookieSecure
	}
	if f.Service.TrustForwardedFor != nil {
		cfg.TrustForwardedFor = *f.Service.TrustForwardedFor
	}

	if f.Service.AllowDirect != nil {
		cfg.AllowDirectRegister = *f.Service.AllowDirect
	}

	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if f.Dependencies.AutoMigrate != nil {
		cfg.AutoMigrate = *f.Dependencies.AutoMigrate
	}

	if f.SMTP.Host != "" {
		port := cfg.SMTP.Port
		cfg.SMTP = f.SMTP
		if cfg.SMTP.Port == 0 {
			cfg.SMTP.Port = port
		}
	}

	a := f.Auth
	if a.MaxAttempts > 0 {
		cfg.Engine.Throttle.MaxAttempts = a.MaxAttempts
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
		key string
	}{
		{a.LockoutDuration, &cfg.Engine.Throttle.LockoutDuration, "auth.lockout_duration"},
		{a.PurgeInterval, &cfg.Engine.Throttle.PurgeInterval, "auth.purge_interval"},
		{a.SessionDuration, &cfg.Engine.Session.Duration, "auth.session_duration"},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if a.PasswordAlgorithm != "" {
		cfg.Engine.Password.Algorithm = strings.ToLower(a.PasswordAlgorithm)
	}
	if a.InvalidateSessionsOnChange != nil {
		cfg.Engine.Password.InvalidateSessionsOnChange = *a.InvalidateSessionsOnChange
	}
	if a.ActivationURL != "" {
		cfg.Engine.Registration.ActivationURL = a.ActivationURL
	}
	if a.SiteName != "" {
		cfg.Engine.Registration.SiteName = a.SiteName
	}
	if a.AuditMirror != nil {
		cfg.Engine.Audit.Mirror = *a.AuditMirror
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.HTTPAddr = envOrDefault("HTTP_ADDR", cfg.HTTPAddr)
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		level, err := parseLevel(raw)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	cfg.CookieName = envOrDefault("COOKIE_NAME", cfg.CookieName)
	cfg.CookieSecure = envBool("COOKIE_SECURE", cfg.CookieSecure)
	cfg.TrustForwardedFor = envBool("TRUST_FORWARDED_FOR", cfg.TrustForwardedFor)
	cfg.AllowDirectRegister = envBool("ALLOW_DIRECT_REGISTER", cfg.AllowDirectRegister)

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.AutoMigrate = envBool("DB_AUTO_MIGRATE", cfg.AutoMigrate)

	cfg.SMTP.Host = envOrDefault("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = envInt("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.Username = envOrDefault("SMTP_USERNAME", cfg.SMTP.Username)
	cfg.SMTP.Password = envOrDefault("SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.From = envOrDefault("SMTP_FROM", cfg.SMTP.From)
	cfg.SMTP.StartTLS = envBool("SMTP_STARTTLS", cfg.SMTP.StartTLS)

	e := &cfg.Engine
	e.Throttle.MaxAttempts = envInt("MAX_LOGIN_ATTEMPTS", e.Throttle.MaxAttempts)
	e.Throttle.LockoutDuration = envDuration("LOCKOUT_MINUTES", time.Minute, e.Throttle.LockoutDuration)
	e.Session.Duration = envDuration("SESSION_DAYS", 24*time.Hour, e.Session.Duration)
	e.Password.Algorithm = strings.ToLower(envOrDefault("PASSWORD_ALGORITHM", e.Password.Algorithm))
	e.Password.BcryptCost = envInt("BCRYPT_ROUNDS", e.Password.BcryptCost)
	e.Registration.ActivationURL = envOrDefault("ACTIVATION_URL", e.Registration.ActivationURL)
	e.Registration.SiteName = envOrDefault("SITE_NAME", e.Registration.SiteName)
	return nil
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return 0, fmt.Errorf("parse log level %q: %w", raw, err)
	}
	return level, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt falls back on empty or invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envDuration reads a whole number of units. It keeps fallback when the
// variable is unset or not a positive integer.
func envDuration(name string, unit, fallback time.Duration) time.Duration {
	v := envInt(name, 0)
	if v <= 0 {
		return fallback
	}
	return time.Duration(v) * unit
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}
