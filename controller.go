package wt

import (
	"context"
	"log"
	"time"

	"github.com/RokerHRO/wt/internal/audit"
	"github.com/RokerHRO/wt/internal/rate"
	"github.com/RokerHRO/wt/internal/stores"
	"github.com/RokerHRO/wt/token"
)

// Controller is the authentication-flow engine. It is stateless apart from
// its metrics and audit dispatcher; all per-user state lives in the caller's
// [Session], the caller's [ThrottleState], and Redis. Safe for concurrent use.
type Controller struct {
	config        Config
	users         UserStore
	passwords     PasswordVerifier
	mfa           MfaEvaluator
	throttle      *Throttle
	attempts      *rate.AttemptTracker
	rememberStore *stores.RememberTokenStore
	emailStore    *stores.EmailTokenStore
	cookieSigner  *token.Manager
	dispatcher    *audit.Dispatcher
	metrics       *Metrics
	now           func() time.Time
}

// Throttle exposes the backoff policy for countdown widget wiring.
func (c *Controller) Throttle() *Throttle {
	return c.throttle
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (c *Controller) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (c *Controller) AuditDropped() uint64 {
	return c.dispatcher.Dropped()
}

// Close drains and stops the audit dispatcher. Safe to call more than once.
func (c *Controller) Close() {
	c.dispatcher.Close()
}

// Login transitions the session for a user identified through the password
// path. The MFA evaluator is consulted: if a second factor is required the
// session lands in [RequiresMfa], otherwise in [StrongLogin]. Returns false
// for the zero user, leaving the session untouched.
func (c *Controller) Login(ctx context.Context, session *Session, user User) bool {
	if session == nil || !user.Valid() {
		return false
	}

	required, err := c.mfa.HasMfaStep(ctx, user)
	if err != nil {
		// Fail closed: an unreachable evaluator must not skip the step.
		log.Printf("wt: mfa evaluator failed, requiring step: %v", err)
		required = true
	}

	if required {
		session.set(RequiresMfa, user)
		c.metrics.Inc(MetricMfaRequired)
		c.emitAudit(ctx, auditEventMfaRequired, true, user, nil, nil)
		return true
	}

	session.set(StrongLogin, user)
	c.emitAudit(ctx, auditEventLogin, true, user, nil, nil)
	return true
}

// LoginWithToken transitions the session for a user identified by a
// remember-me token only. The session lands in [WeakLogin]; call
// [Controller.PromoteToStrong] when the user proves the password or second
// factor. Returns false for the zero user.
func (c *Controller) LoginWithToken(ctx context.Context, session *Session, user User) bool {
	if session == nil || !user.Valid() {
		return false
	}

	session.set(WeakLogin, user)
	c.metrics.Inc(MetricTokenLoginAccepted)
	c.emitAudit(ctx, auditEventTokenLogin, true, user, nil, nil)
	return true
}

// PromoteToStrong upgrades a [WeakLogin] session to [StrongLogin], consulting
// the MFA evaluator unless Mfa.ExemptTokenLogin is set. If the evaluator
// demands a step the session moves to [RequiresMfa] and false is returned.
// A session already in [StrongLogin] reports true; [RequiresMfa] reports
// false until [Controller.ConfirmMfa].
func (c *Controller) PromoteToStrong(ctx context.Context, session *Session) bool {
	if session == nil {
		return false
	}

	user := session.User()
	if !user.Valid() {
		return false
	}

	switch session.State() {
	case StrongLogin:
		return true
	case RequiresMfa:
		return false
	case WeakLogin:
	default:
		return false
	}

	if !c.config.Mfa.ExemptTokenLogin {
		required, err := c.mfa.HasMfaStep(ctx, user)
		if err != nil {
			log.Printf("wt: mfa evaluator failed, requiring step: %v", err)
			required = true
		}
		if required {
			session.set(RequiresMfa, user)
			c.metrics.Inc(MetricMfaRequired)
			c.emitAudit(ctx, auditEventMfaRequired, true, user, nil, nil)
			return false
		}
	}

	session.set(StrongLogin, user)
	c.emitAudit(ctx, auditEventLogin, true, user, nil, nil)
	return true
}

// ConfirmMfa completes the outstanding second factor and promotes the
// session to [StrongLogin]. The controller does not verify the factor; the
// embedder calls this only after its MFA exchange succeeded. Returns false
// unless the session is in [RequiresMfa].
func (c *Controller) ConfirmMfa(ctx context.Context, session *Session) bool {
	if session == nil || session.State() != RequiresMfa {
		return false
	}

	user := session.User()
	session.set(StrongLogin, user)
	c.metrics.Inc(MetricMfaConfirmed)
	c.emitAudit(ctx, auditEventMfaConfirmed, true, user, nil, nil)
	return true
}

// Logout returns the session to [LoggedOut] and revokes every remember-me
// series of the user. Idempotent: a logged-out session is a no-op. Token
// revocation is best effort; a Redis failure is logged, not returned, so
// the local logout always succeeds.
func (c *Controller) Logout(ctx context.Context, session *Session) {
	if session == nil {
		return
	}

	user := session.User()
	if !user.Valid() && session.State() == LoggedOut {
		return
	}

	if user.Valid() && c.config.RememberMe.Enabled {
		if _, err := c.rememberStore.RevokeAllForUser(ctx, user.ID); err != nil {
			log.Printf("wt: revoke remember tokens on logout: %v", err)
		} else {
			c.metrics.Inc(MetricRememberRevoked)
		}
	}

	session.set(LoggedOut, User{})
	c.metrics.Inc(MetricLogout)
	c.emitAudit(ctx, auditEventLogout, true, user, nil, nil)
}

// ShowResendEmailVerification reports whether the UI should offer to resend
// the verification email: verification is required and the identified user
// has not verified yet.
func (c *Controller) ShowResendEmailVerification(session *Session) bool {
	if session == nil || !c.config.EmailVerification.Required {
		return false
	}

	user := session.User()
	return user.Valid() && !user.EmailVerified
}
