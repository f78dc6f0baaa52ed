package authgate

import (
	"errors"
	"time"
)

// Config holds every tunable the engine accepts. Instances are copied on
// Build; mutating a Config after Build has no effect on the engine.
type Config struct {
	Challenge    ChallengeConfig
	Session      SessionConfig
	Token        TokenConfig
	Password     PasswordConfig
	Provisioning ProvisioningConfig
	RateLimit    RateLimitConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// ChallengeConfig tunes the anti-bot challenge gate.
type ChallengeConfig struct {
	// TokenTTL bounds how long an issued token stays verifiable.
	TokenTTL time.Duration
	// RedisPrefix namespaces challenge keys.
	RedisPrefix string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes session persistence.
type SessionConfig struct {
	// RedisPrefix namespaces session and signal keys.
	RedisPrefix string
	// TTL is the absolute session lifetime. Zero means sessions never
	// expire on their own and are only ended by supersession or explicit
	// invalidation.
	TTL time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig tunes the signed session token handed back to callers.
type TokenConfig struct {
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig carries Argon2id cost parameters. Scheme selection and
// tuning are the embedder's policy; the engine only applies them.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MinLength applies to passwords collected during provisioning.
	MinLength int
}

/*
====================================
PROVISIONING CONFIG
====================================
*/

// ProvisioningConfig tunes first-use federated account provisioning.
type ProvisioningConfig struct {
	// DefaultRole is assigned to accounts created through provisioning.
	DefaultRole Role
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig carries the login throttle budget. The policy itself is
// the embedder's choice; zero MaxLoginAttempts disables throttling.
type RateLimitConfig struct {
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	EnableIPThrottle      bool
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig tunes the async audit pipeline.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking the auth path when the
	// buffer is saturated.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles the in-process counter registry.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Challenge: ChallengeConfig{
			TokenTTL:    2 * time.Minute,
			RedisPrefix: "agc",
		},
		Session: SessionConfig{
			RedisPrefix: "ags",
			TTL:         24 * time.Hour,
		},
		Token: TokenConfig{
			SigningMethod: "ed25519",
			Issuer:        "authgate",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   10,
		},
		Provisioning: ProvisioningConfig{
			DefaultRole: RoleUser,
		},
		RateLimit: RateLimitConfig{
			MaxLoginAttempts:      10,
			LoginCooldownDuration: 15 * time.Minute,
			EnableIPThrottle:      true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = append([]byte(nil), cfg.Token.PrivateKey...)
	out.Token.PublicKey = append([]byte(nil), cfg.Token.PublicKey...)
	return out
}

// Validate checks cross-field consistency. Builder calls it before
// constructing the engine.
func (c Config) Validate() error {
	if c.Challenge.TokenTTL <= 0 {
		return errors.New("challenge token TTL must be positive")
	}
	if c.Challenge.RedisPrefix == "" {
		return errors.New("challenge redis prefix required")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("session redis prefix required")
	}
	if c.Session.TTL < 0 {
		return errors.New("session TTL must not be negative")
	}
	if c.Password.MinLength < 1 {
		return errors.New("password minimum length must be at least 1")
	}
	if c.RateLimit.MaxLoginAttempts < 0 {
		return errors.New("rate limit budget must not be negative")
	}
	if c.RateLimit.MaxLoginAttempts > 0 && c.RateLimit.LoginCooldownDuration <= 0 {
		return errors.New("rate limit cooldown must be positive when throttling is enabled")
	}
	switch c.Provisioning.DefaultRole {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
	default:
		return errors.New("invalid default provisioning role")
	}
	return nil
}
