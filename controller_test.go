package wt

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

type mockUserStore struct {
	mu          sync.Mutex
	users       map[string]User
	byLoginName map[string]string
	failWith    error
}

func newMockUserStore(users ...User) *mockUserStore {
	s := &mockUserStore{
		users:       make(map[string]User),
		byLoginName: make(map[string]string),
	}
	for _, u := range users {
		s.users[u.ID] = u
		s.byLoginName[u.LoginName] = u.ID
	}
	return s
}

func (s *mockUserStore) FindByLoginName(_ context.Context, loginName string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return User{}, s.failWith
	}
	id, ok := s.byLoginName[loginName]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *mockUserStore) FindByID(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return User{}, s.failWith
	}
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *mockUserStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	delete(s.users, id)
	delete(s.byLoginName, u.LoginName)
}

// mockVerifier treats the stored hash as the plaintext and counts calls so
// tests can assert which paths touched the verifier.
type mockVerifier struct {
	mu           sync.Mutex
	verifyCalls  int
	dummyCalls   int
	verifyFailed error
}

func (v *mockVerifier) Verify(password, encodedHash string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.verifyCalls++
	if v.verifyFailed != nil {
		return false, v.verifyFailed
	}
	return password == encodedHash, nil
}

func (v *mockVerifier) DummyVerify(string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dummyCalls++
}

func (v *mockVerifier) calls() (verify, dummy int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.verifyCalls, v.dummyCalls
}

type mockMfaEvaluator struct {
	required bool
	err      error
}

func (m mockMfaEvaluator) HasMfaStep(context.Context, User) (bool, error) {
	return m.required, m.err
}

func testSigningConfig(t *testing.T) SigningConfig {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	return SigningConfig{
		Method:     "ed25519",
		PrivateKey: priv,
		PublicKey:  pub,
		Issuer:     "wt-test",
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Audit.Enabled = false
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestController(t *testing.T, rdb *redis.Client, cfg Config, users UserStore, opts ...func(*Builder)) *Controller {
	t.Helper()

	b := NewBuilder().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithPasswordVerifier(&mockVerifier{})
	for _, opt := range opts {
		opt(b)
	}

	ctrl, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(ctrl.Close)
	return ctrl
}

func TestLoginWithoutMfaReachesStrongLogin(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	alice := User{ID: "u1", LoginName: "alice"}
	ctrl := newTestController(t, rdb, testConfig(t), newMockUserStore(alice))

	session := NewSession()
	if !ctrl.Login(ctx, session, alice) {
		t.Fatal("Login returned false for a valid user")
	}
	if session.State() != StrongLogin {
		t.Fatalf("expected StrongLogin, got %v", session.State())
	}
	if !session.LoggedIn() {
		t.Fatal("expected LoggedIn after strong login")
	}
	if got := session.User().ID; got != "u1" {
		t.Fatalf("expected session user u1, got %q", got)
	}
}

func TestLoginRejectsZeroUser(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctrl := newTestController(t, rdb, testConfig(t), newMockUserStore())

	session := NewSession()
	if ctrl.Login(context.Background(), session, User{}) {
		t.Fatal("Login accepted the zero user")
	}
	if session.State() != LoggedOut {
		t.Fatalf("expected session untouched, got %v", session.State())
	}
}

func TestLoginWithRequiredMfaLandsInRequiresMfa(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	alice := User{ID: "u1", LoginName: "alice"}
	cfg := testConfig(t)
	cfg.Mfa.Enabled = true
	cfg.Mfa.Required = true
	ctrl := newTestController(t, rdb, cfg, newMockUserStore(alice))

	session := NewSession()
	if !ctrl.Login(ctx, session, alice) {
		t.Fatal("Login returned false")
	}
	if session.State() != RequiresMfa {
		t.Fatalf("expected RequiresMfa, got %v", session.State())
	}
	if session.LoggedIn() {
		t.Fatal("RequiresMfa must not count as logged in")
	}

	if !ctrl.ConfirmMfa(ctx, session) {
		t.Fatal("ConfirmMfa failed from RequiresMfa")
	}
	if session.State() != StrongLogin {
		t.Fatalf("expected StrongLogin after ConfirmMfa, got %v", session.State())
	}
	if got := ctrl.MetricsSnapshot().Counters[MetricMfaConfirmed]; got != 1 {
		t.Fatalf("expected 1 mfa confirmation, got %d", got)
	}
}

func TestLoginMfaByProviderIdentity(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	alice := User{ID: "u1", LoginName: "alice", Identities: map[string]string{"totp": "enrolled"}}
	bob := User{ID: "u2", LoginName: "bob"}

	cfg := testConfig(t)
	cfg.Mfa.Enabled = true
	cfg.Mfa.Provider = "totp"
	ctrl := newTestController(t, rdb, cfg, newMockUserStore(alice, bob))

	enrolled := NewSession()
	if !ctrl.Login(ctx, enrolled, alice) || enrolled.State() != RequiresMfa {
		t.Fatalf("expected enrolled user to require mfa, got %v", enrolled.State())
	}

	plain := NewSession()
	if !ctrl.Login(ctx, plain, bob) || plain.State() != StrongLogin {
		t.Fatalf("expected unenrolled user to skip mfa, got %v", plain.State())
	}
}

func TestLoginMfaEvaluatorErrorFailsClosed(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	alice := User{ID: "u1", LoginName: "alice"}
	ctrl := newTestController(t, rdb, testConfig(t), newMockUserStore(alice), func(b *Builder) {
		b.WithMfaEvaluator(mockMfaEvaluator{err: errors.New("evaluator down")})
	})

	session := NewSession()
	if !ctrl.Login(context.Background(), session, alice) {
		t.Fatal("Login returned false")
	}
	if session.State() != RequiresMfa {
		t.Fatalf("expected evaluator failure to demand the step, got %v", session.State())
	}
}

func TestConfirmMfaRejectedOutsideRequiresMfa(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	alice := User{ID: "u1", LoginName: "alice"}
	ctrl := newTestController(t, rdb, testConfig(t), newMockUserStore(alice))

	session := NewSession()
	if ctrl.ConfirmMfa(ctx, session) {
		t.Fatal("ConfirmMfa accepted a logged-out session")
	}

	ctrl.Login(ctx, session, alice)
	if ctrl.ConfirmMfa(ctx, session) {
		t.Fatal("ConfirmMfa accepted a StrongLogin session")
	}
}

func TestTokenLoginIsWeakAndPromotable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	alice := User{ID: "u1", LoginName: "alice"}
	ctrl := newTestController(t, rdb, testConfig(t), newMockUserStore(alice))

	session := NewSession()
	if !ctrl.LoginWithToken(ctx, session, alice) {
		t.Fatal("LoginWithToken returned false")
	}
	if session.State() != WeakLogin {
		t.Fatalf("expected WeakLogin, got %v", session.State())
	}
	if !session.LoggedIn() {
		t.Fatal("WeakLogin should count as logged in")
	}

	if !ctrl.PromoteToStrong(ctx, session) {
		t.Fatal("PromoteToStrong failed without mfa")
	}
	if session.State() != StrongLogin {
		t.Fatalf("expected StrongLogin, got %v", session.State())
	}
}

func TestPromoteToStrongDemandsMfaStep(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	alice := User{ID: "u1", LoginName: "alice"}
	cfg := testConfig(t)
	cfg.Mfa.Enabled = true
	cfg.Mfa.Required = true
	ctrl := newTestController(t, rdb, cfg, newMockUserStore(alice))

	session := NewSession()
	ctrl.LoginWithToken(ctx, session, alice)

	if ctrl.PromoteToStrong(ctx, session) {
		t.Fatal("PromoteToStrong skipped the required mfa step")
	}
	if session.State() != RequiresMfa {
		t.Fatalf("expected RequiresMfa, got %v", session.State())
	}

	if !ctrl.ConfirmMfa(ctx, session) {
		t.Fatal("ConfirmMfa failed")
	}
	if !ctrl.PromoteToStrong(ctx, session) {
		t.Fatal("PromoteToStrong should be true for StrongLogin")
	}
}

func TestPromoteToStrongExemptTokenLogin(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	alice := User{ID: "u1", LoginName: "alice"}
	cfg := testConfig(t)
	cfg.Mfa.Enabled = true
	cfg.Mfa.Required = true
	cfg.Mfa.ExemptTokenLogin = true
	ctrl := newTestController(t, rdb, cfg, newMockUserStore(alice))

	session := NewSession()
	ctrl.LoginWithToken(ctx, session, alice)

	if !ctrl.PromoteToStrong(ctx, session) {
		t.Fatal("PromoteToStrong ignored the token-login exemption")
	}
	if session.State() != StrongLogin {
		t.Fatalf("expected StrongLogin, got %v", session.State())
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	alice := User{ID: "u1", LoginName: "alice"}
	ctrl := newTestController(t, rdb, testConfig(t), newMockUserStore(alice))

	session := NewSession()
	ctrl.Login(ctx, session, alice)
	ctrl.Logout(ctx, session)

	if session.State() != LoggedOut {
		t.Fatalf("expected LoggedOut, got %v", session.State())
	}
	if session.User().Valid() {
		t.Fatal("expected the session user to be cleared")
	}

	before := ctrl.MetricsSnapshot().Counters[MetricLogout]
	ctrl.Logout(ctx, session)
	after := ctrl.MetricsSnapshot().Counters[MetricLogout]
	if after != before {
		t.Fatal("second logout of a logged-out session should be a no-op")
	}
}

func TestLogoutFromRequiresMfaClearsSession(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	alice := User{ID: "u1", LoginName: "alice"}
	cfg := testConfig(t)
	cfg.Mfa.Enabled = true
	cfg.Mfa.Required = true
	ctrl := newTestController(t, rdb, cfg, newMockUserStore(alice))

	session := NewSession()
	ctrl.Login(ctx, session, alice)
	if session.State() != RequiresMfa {
		t.Fatalf("expected RequiresMfa, got %v", session.State())
	}

	ctrl.Logout(ctx, session)
	if session.State() != LoggedOut {
		t.Fatalf("expected LoggedOut, got %v", session.State())
	}
}

func TestShowResendEmailVerification(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	pending := User{ID: "u1", LoginName: "alice"}
	verified := User{ID: "u2", LoginName: "bob", EmailVerified: true}

	cfg := testConfig(t)
	cfg.EmailVerification.Required = true
	ctrl := newTestController(t, rdb, cfg, newMockUserStore(pending, verified))

	session := NewSession()
	ctrl.Login(ctx, session, pending)
	if !ctrl.ShowResendEmailVerification(session) {
		t.Fatal("expected resend hint for an unverified user")
	}

	ctrl.Logout(ctx, session)
	ctrl.Login(ctx, session, verified)
	if ctrl.ShowResendEmailVerification(session) {
		t.Fatal("expected no resend hint for a verified user")
	}

	cfg.EmailVerification.Required = false
	relaxed := newTestController(t, rdb, cfg, newMockUserStore(pending))
	relaxedSession := NewSession()
	relaxed.Login(ctx, relaxedSession, pending)
	if relaxed.ShowResendEmailVerification(relaxedSession) {
		t.Fatal("expected no resend hint when verification is not required")
	}
}

func TestBuilderRequiresRedisAndUserStore(t *testing.T) {
	if _, err := NewBuilder().WithUserStore(newMockUserStore()).Build(); !errors.Is(err, ErrRedisRequired) {
		t.Fatalf("expected ErrRedisRequired, got %v", err)
	}

	mr, rdb := newTestRedis(t)
	defer mr.Close()

	if _, err := NewBuilder().WithRedis(rdb).Build(); !errors.Is(err, ErrUserStoreRequired) {
		t.Fatalf("expected ErrUserStoreRequired, got %v", err)
	}
}

func TestBuilderDefaultsProduceWorkingController(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctrl, err := NewBuilder().
		WithRedis(rdb).
		WithUserStore(newMockUserStore()).
		WithClock(time.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer ctrl.Close()

	if ctrl.Throttle() == nil || !ctrl.Throttle().Enabled() {
		t.Fatal("expected throttling enabled by default")
	}
	if ctrl.IsVisible(RememberMeField) {
		t.Fatal("remember-me field should be hidden while disabled")
	}
}
