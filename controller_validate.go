package wt

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// IsVisible reports whether a login form field should be rendered at all.
// Only the remember-me checkbox is conditional.
func (c *Controller) IsVisible(field Field) bool {
	switch field {
	case RememberMeField:
		return c.config.RememberMe.Enabled
	default:
		return true
	}
}

// ValidateField checks a single form slot without touching any backend.
// Empty required fields return [ErrMissingField].
func (c *Controller) ValidateField(field Field, fields LoginFields) error {
	switch field {
	case LoginNameField:
		if fields.LoginName == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, LoginNameField)
		}
	case PasswordField:
		if fields.Password == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, PasswordField)
		}
	}
	return nil
}

// Validate runs the password path: field checks, throttling, account
// lookup, and password verification, in that order.
//
// Unknown login names and wrong passwords both return
// [ErrInvalidCredentials], and the unknown-name branch burns a dummy
// verification so the two are indistinguishable in timing. While a backoff
// delay is outstanding Validate returns a [ThrottledError] immediately,
// without touching the password verifier.
//
// state carries the attempt bookkeeping between calls; a nil state is
// treated as fresh. With persistent tracking enabled the Redis counters are
// authoritative and state is hydrated from them first.
func (c *Controller) Validate(ctx context.Context, fields LoginFields, state *ThrottleState) (User, error) {
	start := c.now()
	defer func() {
		c.metrics.Observe(MetricValidateLatency, c.now().Sub(start))
	}()

	if err := c.ValidateField(LoginNameField, fields); err != nil {
		return User{}, err
	}
	if err := c.ValidateField(PasswordField, fields); err != nil {
		return User{}, err
	}

	if state == nil {
		state = &ThrottleState{}
	}
	if err := c.hydrateThrottleState(ctx, fields.LoginName, state); err != nil {
		return User{}, err
	}

	if remaining := c.throttle.RemainingDelay(*state); remaining > 0 {
		c.metrics.Inc(MetricLoginThrottled)
		err := &ThrottledError{RemainingSeconds: remaining}
		c.emitAudit(ctx, auditEventValidate, false, User{LoginName: fields.LoginName}, err, nil)
		return User{}, err
	}

	user, err := c.users.FindByLoginName(ctx, fields.LoginName)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return User{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		// Unknown account: burn the same work as a real mismatch.
		c.passwords.DummyVerify(fields.Password)
		c.recordFailure(ctx, fields.LoginName, state)
		c.metrics.Inc(MetricLoginFailure)
		c.emitAudit(ctx, auditEventValidate, false, User{LoginName: fields.LoginName}, ErrInvalidCredentials, nil)
		return User{}, ErrInvalidCredentials
	}

	ok, verr := c.passwords.Verify(fields.Password, user.PasswordHash)
	if verr != nil {
		// A corrupt stored hash is indistinguishable from a mismatch to
		// the caller; log it for the operator.
		log.Printf("wt: password verification failed for user %s: %v", user.ID, verr)
		ok = false
	}

	if !ok {
		c.recordFailure(ctx, fields.LoginName, state)
		c.metrics.Inc(MetricLoginFailure)
		c.emitAudit(ctx, auditEventValidate, false, user, ErrInvalidCredentials, nil)
		return User{}, ErrInvalidCredentials
	}

	c.throttle.OnSuccess(state)
	c.resetAttempts(ctx, fields.LoginName)
	c.metrics.Inc(MetricLoginSuccess)
	c.emitAudit(ctx, auditEventValidate, true, user, nil, nil)
	return user, nil
}

func (c *Controller) hydrateThrottleState(ctx context.Context, loginName string, state *ThrottleState) error {
	if c.attempts == nil {
		return nil
	}

	count, last, err := c.attempts.Attempts(ctx, loginName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	state.FailedAttempts = count
	state.LastAttempt = last
	return nil
}

func (c *Controller) recordFailure(ctx context.Context, loginName string, state *ThrottleState) {
	c.throttle.OnFailure(state)

	if c.attempts == nil {
		return
	}
	if err := c.attempts.RecordFailure(ctx, loginName, clientIPFromContext(ctx)); err != nil {
		// Counter persistence is advisory; the in-memory state still throttles.
		log.Printf("wt: persist failed attempt: %v", err)
	}
}

func (c *Controller) resetAttempts(ctx context.Context, loginName string) {
	if c.attempts == nil {
		return
	}
	if err := c.attempts.Reset(ctx, loginName, clientIPFromContext(ctx)); err != nil {
		log.Printf("wt: reset attempt counters: %v", err)
	}
}
