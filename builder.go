package wt

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RokerHRO/wt/internal/audit"
	"github.com/RokerHRO/wt/internal/rate"
	"github.com/RokerHRO/wt/internal/stores"
	"github.com/RokerHRO/wt/password"
	"github.com/RokerHRO/wt/token"
)

// Builder assembles a [Controller]. Redis and a [UserStore] are mandatory;
// everything else has a default derived from the configuration.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	users    UserStore
	verifier PasswordVerifier
	mfa      MfaEvaluator
	sink     AuditSink
	now      func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{
		config: DefaultConfig(),
		now:    time.Now,
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing token records and attempt counters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the account lookup backend.
func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithPasswordVerifier overrides the built-in Argon2id verifier.
func (b *Builder) WithPasswordVerifier(verifier PasswordVerifier) *Builder {
	b.verifier = verifier
	return b
}

// WithMfaEvaluator overrides the config-driven MFA policy.
func (b *Builder) WithMfaEvaluator(evaluator MfaEvaluator) *Builder {
	b.mfa = evaluator
	return b
}

// WithAuditSink sets the destination for audit events. Without a sink,
// enabled auditing falls back to a no-op sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithClock overrides the controller clock. Test hook only.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	if now != nil {
		b.now = now
	}
	return b
}

// Build validates the configuration, wires every subsystem, and returns a
// ready [Controller]. The returned controller owns the audit dispatcher;
// call [Controller.Close] on shutdown to drain it.
func (b *Builder) Build() (*Controller, error) {
	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if b.redis == nil {
		return nil, ErrRedisRequired
	}
	if b.users == nil {
		return nil, ErrUserStoreRequired
	}

	verifier := b.verifier
	if verifier == nil {
		argon, err := password.NewArgon2(password.Config{
			Memory:      b.config.Password.Memory,
			Time:        b.config.Password.Time,
			Parallelism: b.config.Password.Parallelism,
			SaltLength:  b.config.Password.SaltLength,
			KeyLength:   b.config.Password.KeyLength,
			MinLength:   b.config.Password.MinLength,
		})
		if err != nil {
			return nil, fmt.Errorf("password verifier: %w", err)
		}
		verifier = argon
	}

	evaluator := b.mfa
	if evaluator == nil {
		evaluator = policyMfaEvaluator{cfg: b.config.Mfa}
	}

	var cookieSigner *token.Manager
	if b.config.RememberMe.Enabled {
		signer, err := token.NewManager(token.Config{
			SigningMethod: token.SigningMethod(b.config.RememberMe.Signing.Method),
			PrivateKey:    b.config.RememberMe.Signing.PrivateKey,
			PublicKey:     b.config.RememberMe.Signing.PublicKey,
			Issuer:        b.config.RememberMe.Signing.Issuer,
			Audience:      b.config.RememberMe.Signing.Audience,
			Leeway:        b.config.RememberMe.Signing.Leeway,
			KeyID:         b.config.RememberMe.Signing.KeyID,
			VerifyKeys:    b.config.RememberMe.Signing.VerifyKeys,
		})
		if err != nil {
			return nil, fmt.Errorf("remember-me signer: %w", err)
		}
		cookieSigner = signer
	}

	var attempts *rate.AttemptTracker
	if b.config.Throttle.Enabled && b.config.Throttle.PersistAttempts {
		attempts = rate.New(b.redis, rate.Config{
			EnableIPTracking: b.config.Throttle.TrackClientIP,
			AttemptWindow:    b.config.Throttle.AttemptWindow,
		})
		attempts.SetClock(b.now)
	}

	dispatcher := audit.NewDispatcher(audit.Config{
		Enabled:      b.config.Audit.Enabled,
		BufferSize:   b.config.Audit.BufferSize,
		DropIfFull:   b.config.Audit.DropIfFull,
		DrainTimeout: b.config.Audit.DrainTimeout,
	}, b.sink)

	c := &Controller{
		config:        b.config,
		users:         b.users,
		passwords:     verifier,
		mfa:           evaluator,
		throttle:      newThrottle(b.config.Throttle, b.now),
		attempts:      attempts,
		rememberStore: stores.NewRememberTokenStore(b.redis, b.config.RememberMe.KeyPrefix),
		emailStore:    stores.NewEmailTokenStore(b.redis, b.config.EmailToken.KeyPrefix),
		cookieSigner:  cookieSigner,
		dispatcher:    dispatcher,
		metrics:       NewMetrics(b.config.Metrics),
		now:           b.now,
	}

	return c, nil
}
