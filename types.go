package wt

import (
	"context"
	"time"

	"github.com/RokerHRO/wt/internal/audit"
)

// User is an identified account as the controller sees it. The zero value
// means "no identified user"; check with [User.Valid].
type User struct {
	ID            string
	LoginName     string
	Email         string
	PasswordHash  string
	EmailVerified bool
	// Identities maps identity provider names (e.g. the configured MFA
	// provider) to provider-side subject identifiers.
	Identities map[string]string
}

// Valid reports whether the user refers to an actual account.
func (u User) Valid() bool {
	return u.ID != ""
}

// Identity returns the subject identifier registered for a provider,
// or "" when none exists.
func (u User) Identity(provider string) string {
	return u.Identities[provider]
}

// UserStore is the read-only account lookup capability the controller
// consumes. Implementations return [ErrUserNotFound] (possibly wrapped)
// for unknown accounts and any other error for infrastructure failures.
type UserStore interface {
	FindByLoginName(ctx context.Context, loginName string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
}

// PasswordVerifier is the password comparison capability. DummyVerify must
// burn the same work as a failed Verify so account existence cannot be
// inferred from response timing.
type PasswordVerifier interface {
	Verify(password, encodedHash string) (bool, error)
	DummyVerify(password string)
}

// Field identifies one slot of the login form.
type Field uint8

const (
	LoginNameField Field = iota
	PasswordField
	RememberMeField
)

func (f Field) String() string {
	switch f {
	case LoginNameField:
		return "login-name"
	case PasswordField:
		return "password"
	case RememberMeField:
		return "remember-me"
	default:
		return "unknown"
	}
}

// LoginFields carries the submitted values of the login form.
type LoginFields struct {
	LoginName  string
	Password   string
	RememberMe bool
}

// Reset clears all submitted values, e.g. after a completed attempt.
func (f *LoginFields) Reset() {
	*f = LoginFields{}
}

// EmailTokenState is the closed result set of [Controller.ProcessEmailToken].
type EmailTokenState uint8

const (
	// EmailTokenInvalid covers malformed, unknown, and mismatched tokens alike.
	EmailTokenInvalid EmailTokenState = iota
	EmailTokenExpired
	EmailTokenAlreadyUsed
	EmailTokenValid
)

func (s EmailTokenState) String() string {
	switch s {
	case EmailTokenInvalid:
		return "invalid"
	case EmailTokenExpired:
		return "expired"
	case EmailTokenAlreadyUsed:
		return "already-used"
	case EmailTokenValid:
		return "valid"
	default:
		return "unknown"
	}
}

// EmailTokenPurpose states why an email token was issued.
type EmailTokenPurpose uint8

const (
	PurposeVerifyEmail EmailTokenPurpose = iota + 1
	PurposeLostPassword
)

func (p EmailTokenPurpose) String() string {
	switch p {
	case PurposeVerifyEmail:
		return "verify-email"
	case PurposeLostPassword:
		return "lost-password"
	default:
		return "unknown"
	}
}

// EmailTokenResult is the outcome of consuming an email token. User and
// Purpose are set only when State is [EmailTokenValid].
type EmailTokenResult struct {
	State   EmailTokenState
	User    User
	Purpose EmailTokenPurpose
}

// RememberCookie describes the remember-me cookie the embedding application
// should set. Secure and HTTPOnly are always true; the controller never
// issues a cookie meant for insecure transport.
type RememberCookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
}

// Audit types re-exported so embedders don't import internal packages.
type (
	AuditEvent = audit.Event
	AuditSink  = audit.Sink
)
