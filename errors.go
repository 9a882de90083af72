package wt

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField reports an empty required login form field.
	ErrMissingField = errors.New("required field missing")
	// ErrInvalidCredentials is the single failure the password path reports,
	// whether the login name is unknown or the password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginThrottled matches any [ThrottledError] via errors.Is.
	ErrLoginThrottled = errors.New("login throttled")
	// ErrThrottleNotConfigured signals an update on a countdown handle that
	// was never configured. Programmer error, not a runtime condition.
	ErrThrottleNotConfigured = errors.New("throttle countdown handle not configured")
	// ErrRememberMeDisabled reports remember-me operations on a controller
	// built without remember-me support.
	ErrRememberMeDisabled = errors.New("remember-me disabled")
	// ErrUserNotFound must be returned by [UserStore] lookups that miss.
	ErrUserNotFound = errors.New("user not found")
	// ErrStoreUnavailable wraps infrastructure failures from Redis or the user store.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrInvalidUser reports an operation on a zero-value user.
	ErrInvalidUser = errors.New("invalid user")

	// ErrRedisRequired and friends are build-time wiring failures.
	ErrRedisRequired     = errors.New("redis client required")
	ErrUserStoreRequired = errors.New("user store required")
)

// ThrottledError reports how long the caller must wait before the next
// login attempt. It matches [ErrLoginThrottled] under errors.Is.
type ThrottledError struct {
	RemainingSeconds int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("login throttled: retry in %ds", e.RemainingSeconds)
}

func (e *ThrottledError) Is(target error) bool {
	return target == ErrLoginThrottled
}
