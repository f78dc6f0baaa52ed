package authgate

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veldtlabs/authgate/internal/rate"
	"github.com/veldtlabs/authgate/jwt"
	"github.com/veldtlabs/authgate/password"
	"github.com/veldtlabs/authgate/session"
)

// Builder assembles an [Engine]. Configure it once, call Build once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts          AccountProvider
	identity          IdentityProvider
	challengeVerifier ChallengeVerifier
	notifier          ProvisioningNotifier
	auditSink         AuditSink

	built bool
}

// New creates a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing challenge, session, signal, and
// throttle state.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountProvider sets the account store integration.
func (b *Builder) WithAccountProvider(p AccountProvider) *Builder {
	b.accounts = p
	return b
}

// WithIdentityProvider sets the federation integration. Without one,
// federated login is unavailable; credential login is unaffected.
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.identity = p
	return b
}

// WithChallengeVerifier sets the external bot-mitigation service.
func (b *Builder) WithChallengeVerifier(v ChallengeVerifier) *Builder {
	b.challengeVerifier = v
	return b
}

// WithProvisioningNotifier sets the out-of-band surface that collects
// first-time passwords for federated identities.
func (b *Builder) WithProvisioningNotifier(n ProvisioningNotifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the counter registry.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and constructs the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("account provider required")
	}
	if b.challengeVerifier == nil {
		return nil, errors.New("challenge verifier required")
	}

	// With no signing material, mint an ephemeral per-process key pair.
	// Tokens then do not survive a restart, which is fine for tests and
	// single-node deployments.
	if cfg.Token.SigningMethod == "ed25519" &&
		len(cfg.Token.PrivateKey) == 0 && len(cfg.Token.PublicKey) == 0 {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		cfg.Token.PrivateKey = priv
		cfg.Token.PublicKey = pub
	}

	tokenTTL := cfg.Session.TTL
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	tokens, err := jwt.NewManager(jwt.Config{
		TTL:           tokenTTL,
		SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cfg.Token.PrivateKey,
		PublicKey:     cfg.Token.PublicKey,
		Issuer:        cfg.Token.Issuer,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	signalPrefix := cfg.Session.RedisPrefix + ":sig"

	var limiter *rate.Limiter
	if cfg.RateLimit.MaxLoginAttempts > 0 {
		limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:      cfg.RateLimit.EnableIPThrottle,
			MaxLoginAttempts:      cfg.RateLimit.MaxLoginAttempts,
			LoginCooldownDuration: cfg.RateLimit.LoginCooldownDuration,
		})
	}

	engine := &Engine{
		config:            cfg,
		accounts:          b.accounts,
		identity:          b.identity,
		challengeVerifier: b.challengeVerifier,
		notifier:          b.notifier,
		challenges:        newChallengeStore(b.redis, cfg.Challenge),
		signals:           newSignalStore(b.redis, signalPrefix),
		sessions: session.New(b.redis, session.Config{
			Prefix:       cfg.Session.RedisPrefix,
			SignalPrefix: signalPrefix,
			TTL:          cfg.Session.TTL,
		}),
		rateLimiter:  limiter,
		provisioning: newProvisioningRegistry(),
		passwordHash: hasher,
		tokens:       tokens,
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
	}

	b.built = true
	return engine, nil
}
