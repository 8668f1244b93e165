package sessionauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/sessionauth/password"
)

// Config is the engine configuration. Start from DefaultConfig and override
// what you need.
type Config struct {
	Throttle     ThrottleConfig
	Session      SessionConfig
	Policy       PolicyConfig
	Password     PasswordConfig
	Registration RegistrationConfig
	Storage      StorageConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig controls the per-origin attempt ledger.
type ThrottleConfig struct {
	// MaxAttempts failed logins lock the origin out.
	MaxAttempts int
	// LockoutDuration is added to the time of the latest failure to give the
	// record expiry.
	LockoutDuration time.Duration
	// PurgeInterval runs PurgeExpired on a timer once StartPurger is called.
	// Zero disables the timer; a purge still runs at Build.
	PurgeInterval time.Duration
	RedisPrefix   string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetime.
type SessionConfig struct {
	Duration time.Duration
	// Retention keeps the Redis key alive past expiry so the engine can report
	// Expired and audit it instead of the key silently vanishing.
	Retention   time.Duration
	RedisPrefix string
}

/*
====================================
POLICY CONFIG
====================================
*/

// Upper bounds imposed by the account and audit tables.
const (
	maxStoredUsername = 30
	maxStoredEmail    = 100
	maxStoredOrigin   = 64
)

// PolicyConfig bounds input lengths, counted in bytes. MaxUsername and
// MaxEmail cannot exceed the storage columns, and MaxPassword cannot exceed
// 72 when bcrypt is the algorithm.
type PolicyConfig struct {
	MinUsername int
	MaxUsername int
	MinPassword int
	MaxPassword int
	MinEmail    int
	MaxEmail    int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hashing algorithm and its cost.
type PasswordConfig struct {
	Algorithm   string // "argon2id" (default) or "bcrypt"
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	BcryptCost  int

	// UpgradeOnLogin re-hashes a verified password whose digest uses weaker
	// or foreign parameters.
	UpgradeOnLogin             bool
	InvalidateSessionsOnChange bool
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig controls activation keys and the activation mail.
type RegistrationConfig struct {
	ActivationKeyLength int
	// ActivationURL is the base of the link placed in the activation mail.
	ActivationURL string
	SiteName      string
	// MailTimeout bounds the activation mail send.
	MailTimeout time.Duration
}

// StorageConfig bounds every store call.
type StorageConfig struct {
	OperationTimeout time.Duration
	// RetryReads retries idempotent reads once on a transient failure.
	RetryReads bool
}

// AuditConfig controls the activity log.
type AuditConfig struct {
	MaxDetailLength int

	// Mirror enables the async dispatcher that copies records to the sink
	// passed to Builder.WithAuditMirror.
	Mirror           bool
	MirrorBufferSize int
	MirrorDropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Throttle: ThrottleConfig{
			MaxAttempts:     5,
			LockoutDuration: 30 * time.Minute,
			PurgeInterval:   time.Minute,
			RedisPrefix:     "sa",
		},
		Session: SessionConfig{
			Duration:    30 * 24 * time.Hour,
			Retention:   24 * time.Hour,
			RedisPrefix: "sa",
		},
		Policy: PolicyConfig{
			MinUsername: 3,
			MaxUsername: 30,
			MinPassword: 8,
			MaxPassword: 128,
			MinEmail:    5,
			MaxEmail:    100,
		},
		Password: PasswordConfig{
			Algorithm:   password.AlgorithmArgon2id,
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			BcryptCost:  12,

			UpgradeOnLogin: true,
		},
		Registration: RegistrationConfig{
			ActivationKeyLength: 15,
			ActivationURL:       "http://localhost:8080/",
			SiteName:            "sessionauth",
			MailTimeout:         10 * time.Second,
		},
		Storage: StorageConfig{
			OperationTimeout: 2 * time.Second,
			RetryReads:       true,
		},
		Audit: AuditConfig{
			MaxDetailLength:  500,
			MirrorBufferSize: 1024,
			MirrorDropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	return cfg
}

func (c PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Algorithm: c.Algorithm,
		Argon2: password.Argon2Config{
			Memory:      c.Memory,
			Time:        c.Time,
			Parallelism: c.Parallelism,
			SaltLength:  c.SaltLength,
			KeyLength:   c.KeyLength,
		},
		BcryptCost: c.BcryptCost,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	// Throttle
	if c.Throttle.MaxAttempts < 1 {
		return errors.New("Throttle MaxAttempts must be >= 1")
	}
	if c.Throttle.LockoutDuration <= 0 {
		return errors.New("Throttle LockoutDuration must be > 0")
	}
	if c.Throttle.PurgeInterval < 0 {
		return errors.New("Throttle PurgeInterval must be >= 0")
	}
	if strings.TrimSpace(c.Throttle.RedisPrefix) == "" {
		return errors.New("Throttle RedisPrefix must not be empty")
	}

	// Session
	if c.Session.Duration <= 0 {
		return errors.New("Session Duration must be > 0")
	}
	if c.Session.Retention < 0 {
		return errors.New("Session Retention must be >= 0")
	}
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}

	// Policy
	p := c.Policy
	if p.MinUsername < 1 || p.MaxUsername < p.MinUsername {
		return errors.New("Policy username bounds are invalid")
	}
	if p.MaxUsername > maxStoredUsername {
		return fmt.Errorf("Policy MaxUsername must be <= %d", maxStoredUsername)
	}
	if p.MinPassword < 1 || p.MaxPassword < p.MinPassword {
		return errors.New("Policy password bounds are invalid")
	}
	if c.Password.Algorithm == password.AlgorithmBcrypt && p.MaxPassword > password.BcryptMaxLength {
		return fmt.Errorf("Policy MaxPassword must be <= %d with bcrypt", password.BcryptMaxLength)
	}
	if p.MinEmail < 3 || p.MaxEmail < p.MinEmail {
		return errors.New("Policy email bounds are invalid")
	}
	if p.MaxEmail > maxStoredEmail {
		return fmt.Errorf("Policy MaxEmail must be <= %d", maxStoredEmail)
	}

	// Password
	switch c.Password.Algorithm {
	case password.AlgorithmArgon2id, password.AlgorithmBcrypt:
	default:
		return errors.New("Password Algorithm must be 'argon2id' or 'bcrypt'")
	}
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
		return errors.New("Password BcryptCost must be between 4 and 31")
	}

	// Registration
	if c.Registration.ActivationKeyLength < 8 || c.Registration.ActivationKeyLength > 64 {
		return errors.New("Registration ActivationKeyLength must be between 8 and 64")
	}

	if c.Registration.MailTimeout <= 0 {
		return errors.New("Registration MailTimeout must be > 0")
	}

	// Storage
	if c.Storage.OperationTimeout <= 0 {
		return errors.New("Storage OperationTimeout must be > 0")
	}

	// Audit
	if c.Audit.MaxDetailLength < 1 {
		return errors.New("Audit MaxDetailLength must be >= 1")
	}
	if c.Audit.Mirror && c.Audit.MirrorBufferSize < 1 {
		return errors.New("Audit MirrorBufferSize must be >= 1 when Mirror is enabled")
	}

	return nil
}
