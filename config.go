package wt

import (
	"errors"
	"fmt"
	"time"

	"github.com/RokerHRO/wt/token"
)

// Config carries every tunable of the controller. Obtain a baseline with
// [DefaultConfig], adjust, and pass to [Builder.WithConfig]; Build rejects
// configurations that fail [Config.Validate].
type Config struct {
	// ProductionMode tightens validation: weak signing keys, disabled
	// throttling, and non-rotating remember-me tokens become build errors.
	ProductionMode bool

	Throttle          ThrottleConfig
	RememberMe        RememberMeConfig
	EmailToken        EmailTokenConfig
	Mfa               MfaConfig
	EmailVerification EmailVerificationConfig
	Password          PasswordConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

// ThrottleConfig controls login backoff.
type ThrottleConfig struct {
	Enabled bool
	// MaxDelay caps the geometric backoff curve.
	MaxDelay time.Duration
	// PersistAttempts keeps failed-attempt counters in Redis so the backoff
	// survives process restarts and spans nodes.
	PersistAttempts bool
	// AttemptWindow is the fixed window after which persisted counters reset.
	AttemptWindow time.Duration
	// TrackClientIP additionally counts failures per client IP.
	TrackClientIP bool
}

// RememberMeConfig controls the persistent-token path.
type RememberMeConfig struct {
	Enabled      bool
	CookieName   string
	CookieDomain string
	CookiePath   string
	// TTL bounds both the cookie and the server-side series record.
	TTL time.Duration
	// RotateOnUse replaces the token secret on every successful use, so a
	// stolen token dies the moment either party presents it.
	RotateOnUse bool
	// KeyPrefix namespaces the Redis keys of series records.
	KeyPrefix string
	Signing   SigningConfig
}

// SigningConfig configures the cookie JWT envelope.
type SigningConfig struct {
	// Method is "ed25519" or "hs256".
	Method     string
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
	KeyID      string
	VerifyKeys map[string][]byte
}

// EmailTokenConfig controls one-shot email tokens.
type EmailTokenConfig struct {
	// TTL is the validity window; the consumed tombstone also lives this long.
	TTL       time.Duration
	KeyPrefix string
}

// MfaConfig drives the default [MfaEvaluator].
type MfaConfig struct {
	Enabled bool
	// Required forces the MFA step for every user when Enabled.
	Required bool
	// Provider names the identity provider whose presence on a user
	// triggers the MFA step when Required is false.
	Provider string
	// ExemptTokenLogin promotes token-identified sessions to StrongLogin
	// without re-consulting the evaluator. Off by default: a remembered
	// device is not a second factor.
	ExemptTokenLogin bool
}

// EmailVerificationConfig controls the resend-verification UI hint.
type EmailVerificationConfig struct {
	// Required marks accounts with unverified email addresses as incomplete.
	Required bool
}

// PasswordConfig mirrors password.Config for the built-in Argon2id verifier.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled      bool
	BufferSize   int
	DropIfFull   bool
	DrainTimeout time.Duration
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration: throttling on with the
// classic 1-5-25-125 second curve, remember-me and MFA off until configured,
// Argon2id at interactive-login cost.
func DefaultConfig() Config {
	return Config{
		Throttle: ThrottleConfig{
			Enabled:       true,
			MaxDelay:      125 * time.Second,
			AttemptWindow: 10 * time.Minute,
		},
		RememberMe: RememberMeConfig{
			CookieName:  "wt-remember",
			CookiePath:  "/",
			TTL:         14 * 24 * time.Hour,
			RotateOnUse: true,
		},
		EmailToken: EmailTokenConfig{
			TTL: 72 * time.Hour,
		},
		Mfa: MfaConfig{
			Provider: "totp",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   10,
		},
		Audit: AuditConfig{
			BufferSize:   256,
			DropIfFull:   true,
			DrainTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks internal consistency. Build calls it; callers may run it
// earlier to surface configuration mistakes at startup.
func (c *Config) Validate() error {
	if c.Throttle.Enabled {
		if c.Throttle.MaxDelay < time.Second {
			return errors.New("throttle max delay must be >= 1s")
		}
		if c.Throttle.PersistAttempts && c.Throttle.AttemptWindow < time.Second {
			return errors.New("throttle attempt window must be >= 1s")
		}
	}

	if c.RememberMe.Enabled {
		if c.RememberMe.CookieName == "" {
			return errors.New("remember-me cookie name must not be empty")
		}
		if c.RememberMe.TTL < time.Minute {
			return errors.New("remember-me TTL must be >= 1m")
		}
		switch token.SigningMethod(c.RememberMe.Signing.Method) {
		case token.MethodEd25519, token.MethodHS256:
		default:
			return fmt.Errorf("unsupported remember-me signing method %q", c.RememberMe.Signing.Method)
		}
	}

	if c.EmailToken.TTL < time.Minute {
		return errors.New("email token TTL must be >= 1m")
	}

	if c.Mfa.Enabled && !c.Mfa.Required && c.Mfa.Provider == "" {
		return errors.New("mfa provider must be set when mfa is enabled but not required")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be > 0")
	}

	if c.ProductionMode {
		if err := c.validateProduction(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateProduction() error {
	if !c.Throttle.Enabled {
		return errors.New("production mode requires login throttling")
	}
	if c.RememberMe.Enabled {
		if !c.RememberMe.RotateOnUse {
			return errors.New("production mode requires remember-me rotation")
		}
		if token.SigningMethod(c.RememberMe.Signing.Method) == token.MethodHS256 &&
			len(c.RememberMe.Signing.PrivateKey) < 32 {
			return errors.New("production mode requires an hs256 key of >= 32 bytes")
		}
	}
	if c.Password.Memory < 64*1024 {
		return errors.New("production mode requires argon2 memory >= 65536 KB")
	}
	return nil
}
