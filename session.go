package wt

import "sync"

// LoginState is the position of a [Session] in the login state machine.
type LoginState uint8

const (
	// LoggedOut is the initial and final state: no identified user.
	LoggedOut LoginState = iota
	// WeakLogin means the user was identified by a remember-me token only.
	// Sensitive operations should demand promotion to StrongLogin first.
	WeakLogin
	// RequiresMfa means credentials checked out but a second factor is
	// still outstanding.
	RequiresMfa
	// StrongLogin means the user fully authenticated in this session.
	StrongLogin
)

func (s LoginState) String() string {
	switch s {
	case LoggedOut:
		return "logged-out"
	case WeakLogin:
		return "weak-login"
	case RequiresMfa:
		return "requires-mfa"
	case StrongLogin:
		return "strong-login"
	default:
		return "unknown"
	}
}

// Session tracks one user's login state. Only [Controller] methods mutate
// it; the embedding application reads it. Safe for concurrent use.
type Session struct {
	mu    sync.Mutex
	state LoginState
	user  User
}

// NewSession returns a session in the [LoggedOut] state.
func NewSession() *Session {
	return &Session{}
}

// State returns the current login state.
func (s *Session) State() LoginState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the identified user, or the zero [User] when logged out.
func (s *Session) User() User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// LoggedIn reports whether a user is identified, weakly or strongly.
// RequiresMfa does not count: the login is not usable yet.
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == WeakLogin || s.state == StrongLogin
}

func (s *Session) set(state LoginState, user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.user = user
}
