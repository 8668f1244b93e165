package bootstrap

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/sessionauth/password"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
	require.Equal(t, "auth_session", cfg.CookieName)
	require.True(t, cfg.AutoMigrate)
	require.False(t, cfg.AllowDirectRegister)
	require.Equal(t, 587, cfg.SMTP.Port)
	require.Equal(t, 5, cfg.Engine.Throttle.MaxAttempts)
	require.Equal(t, 30*time.Minute, cfg.Engine.Throttle.LockoutDuration)
	require.Equal(t, 30*24*time.Hour, cfg.Engine.Session.Duration)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
service:
  http_addr: ":9090"
  log_level: debug
  cookie_secure: true
  allow_direct_register: true
dependencies:
  redis_url: redis://localhost:6379/0
  auto_migrate: false
smtp:
  host: smtp.example.com
  from: noreply@example.com
auth:
  max_attempts: 7
  lockout_duration: 90s
  session_duration: 1h
  password_algorithm: BCRYPT
  invalidate_sessions_on_change: true
  site_name: Example
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
	require.True(t, cfg.CookieSecure)
	require.True(t, cfg.AllowDirectRegister)
	require.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	require.False(t, cfg.AutoMigrate)
	require.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	require.Equal(t, 587, cfg.SMTP.Port)
	require.Equal(t, 7, cfg.Engine.Throttle.MaxAttempts)
	require.Equal(t, 90*time.Second, cfg.Engine.Throttle.LockoutDuration)
	require.Equal(t, time.Hour, cfg.Engine.Session.Duration)
	require.Equal(t, password.AlgorithmBcrypt, cfg.Engine.Password.Algorithm)
	require.Equal(t, password.BcryptMaxLength, cfg.Engine.Policy.MaxPassword)
	require.True(t, cfg.Engine.Password.InvalidateSessionsOnChange)
	require.Equal(t, "Example", cfg.Engine.Registration.SiteName)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
service:
  http_addr: ":9090"
auth:
  max_attempts: 7
`)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("MAX_LOGIN_ATTEMPTS", "4")
	t.Setenv("LOCKOUT_MINUTES", "15")
	t.Setenv("SESSION_DAYS", "2")
	t.Setenv("POSTGRES_URL", "postgres://a@localhost/auth")
	t.Setenv("ALLOW_DIRECT_REGISTER", "yes")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, ":7070", cfg.HTTPAddr)
	require.Equal(t, slog.LevelWarn, cfg.LogLevel)
	require.Equal(t, 4, cfg.Engine.Throttle.MaxAttempts)
	require.Equal(t, 15*time.Minute, cfg.Engine.Throttle.LockoutDuration)
	require.Equal(t, 48*time.Hour, cfg.Engine.Session.Duration)
	require.Equal(t, "postgres://a@localhost/auth", cfg.DatabaseURL)
	require.True(t, cfg.AllowDirectRegister)
}

func TestLoadConfigIgnoresInvalidEnvNumbers(t *testing.T) {
	t.Setenv("LOCKOUT_MINUTES", "soon")
	t.Setenv("SMTP_PORT", "x")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, cfg.Engine.Throttle.LockoutDuration)
	require.Equal(t, 587, cfg.SMTP.Port)
}

func TestLoadConfigRejects(t *testing.T) {
	cases := []struct {
		name string
		body string
		env  map[string]string
		want string
	}{
		{name: "bad duration", body: "auth:\n  lockout_duration: forever\n", want: "auth.lockout_duration"},
		{name: "bad level", body: "service:\n  log_level: loud\n", want: "log level"},
		{name: "bad yaml", body: "service: [\n", want: "parse config file"},
		{name: "bad algorithm", env: map[string]string{"PASSWORD_ALGORITHM": "md5"}, want: "engine config"},
		{name: "bad env level", env: map[string]string{"LOG_LEVEL": "chatty"}, want: "log level"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := ""
			if tc.body != "" {
				path = writeConfig(t, tc.body)
			}
			_, err := LoadConfig(path)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}
