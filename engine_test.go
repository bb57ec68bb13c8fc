package cookieauth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/cookieauth/mail"
	"github.com/MrEthical07/cookieauth/userstore/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	return "msg-" + msg.To, nil
}

func (m *captureMailer) last() mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return mail.Message{}
	}
	return m.sent[len(m.sent)-1]
}

var (
	verifyCodePattern = regexp.MustCompile(`/email/verify/([0-9a-f]+)`)
	resetCodePattern  = regexp.MustCompile(`code=([0-9a-f]+)`)
)

func codeFrom(t *testing.T, re *regexp.Regexp, msg mail.Message) string {
	t.Helper()
	m := re.FindStringSubmatch(msg.Text)
	if len(m) != 2 {
		t.Fatalf("no code in message %q", msg.Text)
	}
	return m[1]
}

type testEngine struct {
	*Engine
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	clock  *testClock
	mailer *captureMailer
	users  *memory.Store
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AppOrigin = "https://app.example.com"
	cfg.JWT.AccessSecret = "access-secret-for-tests-0123456789"
	cfg.JWT.RefreshSecret = "refresh-secret-for-tests-0123456789"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config), opts ...func(*Builder)) *testEngine {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	clock := &testClock{now: time.UnixMilli(1_700_000_000_000)}
	mailer := &captureMailer{}
	users := memory.New()

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithMailer(mailer).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithClock(clock.Now)
	for _, opt := range opts {
		opt(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &testEngine{Engine: engine, mr: mr, rdb: rdb, clock: clock, mailer: mailer, users: users}
}

func (te *testEngine) register(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	res, err := te.Register(context.Background(), RegisterInput{
		Email:            email,
		Password:         password,
		ConfirmPassword:  password,
		ClientDescriptor: "test-agent",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return res
}

func requireKind(t *testing.T, err error, kind Kind, message string) *Error {
	t.Helper()
	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}
	if ae.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, ae.Kind, err)
	}
	if message != "" && ae.Message != message {
		t.Fatalf("expected message %q, got %q", message, ae.Message)
	}
	return ae
}

func TestBuildRequiresDependencies(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).WithUserStore(memory.New()).Build(); err == nil {
		t.Fatal("expected error without redis")
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without user store")
	}

	b := New().WithConfig(testConfig()).WithRedis(rdb).WithUserStore(memory.New())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestRegisterSessionOwnedByUser(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	res := te.register(t, "Alice@Example.com", "alice-password")
	if res.User.Email != "alice@example.com" || res.User.Verified {
		t.Fatalf("unexpected user %+v", res.User)
	}

	claims, err := te.codec.VerifyAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess failed: %v", err)
	}
	if claims.UserID != res.User.ID || claims.SessionID != res.SessionID {
		t.Fatalf("claims do not match result: %+v", claims)
	}

	sess, err := te.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		t.Fatalf("session lookup failed: %v", err)
	}
	if sess.UserID != res.User.ID {
		t.Fatalf("session owned by %q, want %q", sess.UserID, res.User.ID)
	}
	if sess.ClientDescriptor != "test-agent" {
		t.Fatalf("unexpected client descriptor %q", sess.ClientDescriptor)
	}

	msg := te.mailer.last()
	if msg.To != "alice@example.com" || codeFrom(t, verifyCodePattern, msg) == "" {
		t.Fatalf("expected verification email, got %+v", msg)
	}
	if got := te.MetricsSnapshot().Counters[MetricRegisterSuccess]; got != 1 {
		t.Fatalf("expected 1 register success, got %d", got)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	te := newTestEngine(t, nil)
	te.register(t, "alice@example.com", "alice-password")

	_, err := te.Register(context.Background(), RegisterInput{
		Email:           "ALICE@example.com",
		Password:        "other-password",
		ConfirmPassword: "other-password",
	})
	requireKind(t, err, KindConflict, "Email already in use")
	if !errors.Is(err, ErrConflict) {
		t.Fatal("expected errors.Is ErrConflict")
	}
}

func TestRegisterValidation(t *testing.T) {
	te := newTestEngine(t, nil)

	_, err := te.Register(context.Background(), RegisterInput{
		Email:           "not-an-email",
		Password:        "abc",
		ConfirmPassword: "abd",
	})
	ae := requireKind(t, err, KindValidation, "")
	paths := map[string]bool{}
	for _, f := range ae.Fields {
		paths[f.Path] = true
	}
	for _, p := range []string{"email", "password", "confirmPassword"} {
		if !paths[p] {
			t.Fatalf("expected violation on %q, got %+v", p, ae.Fields)
		}
	}
}

func TestRegisterSurvivesMailFailure(t *testing.T) {
	te := newTestEngine(t, nil)
	te.mailer.err = errors.New("smtp down")

	res := te.register(t, "alice@example.com", "alice-password")
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected tokens despite mail failure")
	}
	if got := te.MetricsSnapshot().Counters[MetricVerificationEmailFailed]; got != 1 {
		t.Fatalf("expected verification failure counter 1, got %d", got)
	}
}

func TestLoginGenericFailure(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	te.register(t, "alice@example.com", "alice-password")

	_, errWrong := te.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong-password"})
	_, errUnknown := te.Login(ctx, LoginInput{Email: "bob@example.com", Password: "wrong-password"})

	a := requireKind(t, errWrong, KindUnauthorized, msgInvalidCredentials)
	b := requireKind(t, errUnknown, KindUnauthorized, msgInvalidCredentials)
	if a.Message != b.Message || a.Code != b.Code {
		t.Fatal("unknown user and wrong password must be indistinguishable")
	}

	res, err := te.Login(ctx, LoginInput{Email: "ALICE@example.com", Password: "alice-password", ClientDescriptor: "laptop"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.User.Email != "alice@example.com" {
		t.Fatalf("unexpected user %+v", res.User)
	}
}

func TestLoginThrottle(t *testing.T) {
	te := newTestEngine(t, func(cfg *Config) {
		cfg.Login.MaxAttempts = 3
	})
	ctx := context.Background()
	te.register(t, "alice@example.com", "alice-password")

	for i := 0; i < 3; i++ {
		_, err := te.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong-password"})
		requireKind(t, err, KindUnauthorized, "")
	}

	_, err := te.Login(ctx, LoginInput{Email: "alice@example.com", Password: "alice-password"})
	requireKind(t, err, KindTooManyRequests, "")

	te.mr.FastForward(16 * time.Minute)
	if _, err := te.Login(ctx, LoginInput{Email: "alice@example.com", Password: "alice-password"}); err != nil {
		t.Fatalf("expected login after cooldown, got %v", err)
	}
}

func TestLoginRehashesLegacyDigest(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	u, err := te.users.Create(ctx, "legacy@example.com", string(legacy))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := te.Login(ctx, LoginInput{Email: "legacy@example.com", Password: "legacy-password"}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	stored, err := te.users.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if stored.PasswordHash == string(legacy) || te.hasher.NeedsRehash(stored.PasswordHash) {
		t.Fatal("expected digest to be upgraded to argon2id")
	}
	if got := te.MetricsSnapshot().Counters[MetricPasswordRehashed]; got != 1 {
		t.Fatalf("expected 1 rehash, got %d", got)
	}
}

func TestRefreshAboveThresholdKeepsExpiry(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	reg := te.register(t, "alice@example.com", "alice-password")

	te.clock.Advance(time.Hour)
	res, err := te.Refresh(ctx, reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if res.Rotated() {
		t.Fatal("expected no new refresh token above the threshold")
	}
	if !res.SessionExpiresAt.Equal(reg.SessionExpiresAt) {
		t.Fatalf("expiry moved: %v -> %v", reg.SessionExpiresAt, res.SessionExpiresAt)
	}
	claims, err := te.codec.VerifyAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess failed: %v", err)
	}
	if claims.UserID != reg.User.ID || claims.SessionID != reg.SessionID {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestRefreshBelowThresholdExtends(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	reg := te.register(t, "alice@example.com", "alice-password")

	te.clock.Advance(29*24*time.Hour + 12*time.Hour)
	now := te.clock.Now()

	res, err := te.Refresh(ctx, reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !res.Rotated() {
		t.Fatal("expected a new refresh token below the threshold")
	}
	want := now.Add(30 * 24 * time.Hour)
	if !res.SessionExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, res.SessionExpiresAt)
	}

	claims, err := te.codec.VerifyRefresh(res.RefreshToken)
	if err != nil {
		t.Fatalf("VerifyRefresh failed: %v", err)
	}
	if claims.SessionID != reg.SessionID {
		t.Fatalf("rotated token bound to %q, want %q", claims.SessionID, reg.SessionID)
	}

	sess, err := te.sessions.Get(ctx, reg.SessionID)
	if err != nil {
		t.Fatalf("session lookup failed: %v", err)
	}
	if !sess.ExpiresAt.Equal(want) {
		t.Fatalf("stored expiry %v, want %v", sess.ExpiresAt, want)
	}
}

func TestRefreshFailures(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	reg := te.register(t, "alice@example.com", "alice-password")

	_, err := te.Refresh(ctx, "")
	requireKind(t, err, KindUnauthorized, msgMissingRefresh)

	_, err = te.Refresh(ctx, "garbage")
	requireKind(t, err, KindUnauthorized, msgInvalidRefresh)

	// An access token is signed with the other secret.
	_, err = te.Refresh(ctx, reg.AccessToken)
	requireKind(t, err, KindUnauthorized, msgInvalidRefresh)

	te.Logout(ctx, reg.AccessToken)
	_, err = te.Refresh(ctx, reg.RefreshToken)
	requireKind(t, err, KindUnauthorized, msgSessionExpired)
}

func TestRefreshRedisDownIsInternal(t *testing.T) {
	te := newTestEngine(t, nil)
	reg := te.register(t, "alice@example.com", "alice-password")

	te.mr.Close()
	_, err := te.Refresh(context.Background(), reg.RefreshToken)
	requireKind(t, err, KindInternal, "")
	if errors.Is(err, ErrUnauthorized) {
		t.Fatal("store errors must not look like Unauthorized")
	}
}

func TestLogoutIsBestEffort(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	reg := te.register(t, "alice@example.com", "alice-password")

	te.Logout(ctx, "")
	te.Logout(ctx, "garbage")

	te.Logout(ctx, reg.AccessToken)
	if _, err := te.sessions.Get(ctx, reg.SessionID); err == nil {
		t.Fatal("expected session to be deleted")
	}
	if got := te.MetricsSnapshot().Counters[MetricLogout]; got != 1 {
		t.Fatalf("expected 1 logout, got %d", got)
	}

	// A second logout with the same still-valid token is harmless.
	te.Logout(ctx, reg.AccessToken)
}

func TestAuthenticate(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	reg := te.register(t, "alice@example.com", "alice-password")

	p, err := te.Authenticate(ctx, reg.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if p.UserID != reg.User.ID || p.SessionID != reg.SessionID {
		t.Fatalf("unexpected principal %+v", p)
	}

	ae := requireKind(t, mustErr(te.Authenticate(ctx, "")), KindUnauthorized, msgNotAuthorized)
	if ae.Code != CodeInvalidAccessToken {
		t.Fatalf("expected code %q, got %q", CodeInvalidAccessToken, ae.Code)
	}

	ae = requireKind(t, mustErr(te.Authenticate(ctx, "garbage")), KindUnauthorized, msgInvalidToken)
	if ae.Code != CodeInvalidAccessToken {
		t.Fatalf("expected code %q, got %q", CodeInvalidAccessToken, ae.Code)
	}

	te.clock.Advance(16 * time.Minute)
	ae = requireKind(t, mustErr(te.Authenticate(ctx, reg.AccessToken)), KindUnauthorized, msgTokenExpired)
	if ae.Code != CodeInvalidAccessToken {
		t.Fatalf("expected code %q, got %q", CodeInvalidAccessToken, ae.Code)
	}
}

func mustErr(_ *Principal, err error) error { return err }

func TestVerifyEmail(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	te.register(t, "alice@example.com", "alice-password")
	code := codeFrom(t, verifyCodePattern, te.mailer.last())

	u, err := te.VerifyEmail(ctx, code)
	if err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	if !u.Verified {
		t.Fatal("expected verified user")
	}

	_, err = te.VerifyEmail(ctx, code)
	ae := requireKind(t, err, KindNotFound, msgInvalidCode)
	if ae.Code != "" {
		t.Fatalf("reused code must not carry %q", ae.Code)
	}

	_, err = te.VerifyEmail(ctx, "")
	requireKind(t, err, KindValidation, "")
}

func TestVerifyEmailExpired(t *testing.T) {
	te := newTestEngine(t, func(cfg *Config) {
		cfg.Verification.EmailTTL = time.Hour
	})
	te.register(t, "alice@example.com", "alice-password")
	code := codeFrom(t, verifyCodePattern, te.mailer.last())

	te.clock.Advance(2 * time.Hour)
	_, err := te.VerifyEmail(context.Background(), code)
	ae := requireKind(t, err, KindNotFound, msgInvalidCode)
	if ae.Code != CodeExpiredVerificationCode {
		t.Fatalf("expected code %q, got %q", CodeExpiredVerificationCode, ae.Code)
	}
}

func TestVerifyCodeCannotResetPassword(t *testing.T) {
	te := newTestEngine(t, nil)
	te.register(t, "alice@example.com", "alice-password")
	code := codeFrom(t, verifyCodePattern, te.mailer.last())

	_, err := te.ResetPassword(context.Background(), ResetPasswordInput{Code: code, Password: "new-password"})
	requireKind(t, err, KindNotFound, msgInvalidCode)

	if _, err := te.VerifyEmail(context.Background(), code); err != nil {
		t.Fatalf("wrong-purpose attempt must not burn the code: %v", err)
	}
}

func TestRequestPasswordReset(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	te.register(t, "alice@example.com", "alice-password")

	res, err := te.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if res.MessageID == "" {
		t.Fatal("expected message id")
	}
	msg := te.mailer.last()
	if msg.Subject != "Password Reset Request" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	wantPrefix := "https://app.example.com/password/reset?code="
	if !regexp.MustCompile(regexp.QuoteMeta(wantPrefix) + `[0-9a-f]{64}&exp=\d+`).MatchString(msg.Text) {
		t.Fatalf("unexpected reset link in %q", msg.Text)
	}

	_, err = te.RequestPasswordReset(ctx, "alice@example.com")
	requireKind(t, err, KindTooManyRequests, msgResetRateLimited)

	te.clock.Advance(5*time.Minute + time.Second)
	if _, err := te.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("expected reset after window, got %v", err)
	}

	_, err = te.RequestPasswordReset(ctx, "nobody@example.com")
	requireKind(t, err, KindNotFound, msgUserNotFound)

	_, err = te.RequestPasswordReset(ctx, "bad")
	requireKind(t, err, KindValidation, "")
}

func TestRequestPasswordResetConceal(t *testing.T) {
	te := newTestEngine(t, func(cfg *Config) {
		cfg.Reset.ConcealUnknownEmail = true
	})
	res, err := te.RequestPasswordReset(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("expected silent success, got %v", err)
	}
	if res.MessageID != "" {
		t.Fatalf("expected empty message id, got %q", res.MessageID)
	}
}

func TestRequestPasswordResetMailFailureIsInternal(t *testing.T) {
	te := newTestEngine(t, nil)
	te.register(t, "alice@example.com", "alice-password")
	te.mailer.err = errors.New("provider down")

	_, err := te.RequestPasswordReset(context.Background(), "alice@example.com")
	requireKind(t, err, KindInternal, "")
}

func TestResetPasswordRevokesSessions(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	reg := te.register(t, "alice@example.com", "alice-password")
	second, err := te.Login(ctx, LoginInput{Email: "alice@example.com", Password: "alice-password"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := te.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	code := codeFrom(t, resetCodePattern, te.mailer.last())

	u, err := te.ResetPassword(ctx, ResetPasswordInput{Code: code, Password: "brand-new-password"})
	if err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if u.ID != reg.User.ID {
		t.Fatalf("unexpected user %+v", u)
	}

	for _, tok := range []string{reg.RefreshToken, second.RefreshToken} {
		_, err := te.Refresh(ctx, tok)
		requireKind(t, err, KindUnauthorized, msgSessionExpired)
	}

	_, err = te.Login(ctx, LoginInput{Email: "alice@example.com", Password: "alice-password"})
	requireKind(t, err, KindUnauthorized, msgInvalidCredentials)
	if _, err := te.Login(ctx, LoginInput{Email: "alice@example.com", Password: "brand-new-password"}); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}

	_, err = te.ResetPassword(ctx, ResetPasswordInput{Code: code, Password: "another-password"})
	requireKind(t, err, KindNotFound, msgInvalidCode)
}

func TestResetPasswordExpiredCode(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	te.register(t, "alice@example.com", "alice-password")
	if _, err := te.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	code := codeFrom(t, resetCodePattern, te.mailer.last())

	te.clock.Advance(time.Hour + time.Second)
	_, err := te.ResetPassword(ctx, ResetPasswordInput{Code: code, Password: "brand-new-password"})
	ae := requireKind(t, err, KindNotFound, msgInvalidCode)
	if ae.Code != CodeExpiredVerificationCode {
		t.Fatalf("expected code %q, got %q", CodeExpiredVerificationCode, ae.Code)
	}
}

func TestSessionsListAndRevoke(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	alice := te.register(t, "alice@example.com", "alice-password")
	te.clock.Advance(time.Minute)
	other, err := te.Login(ctx, LoginInput{Email: "alice@example.com", Password: "alice-password", ClientDescriptor: "phone"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	bob := te.register(t, "bob@example.com", "bob-password")

	views, err := te.ListSessions(ctx, alice.User.ID, alice.SessionID)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(views))
	}
	if views[0].ID != other.SessionID || views[0].UserAgent != "phone" || views[0].IsCurrent {
		t.Fatalf("unexpected newest session %+v", views[0])
	}
	if views[1].ID != alice.SessionID || !views[1].IsCurrent {
		t.Fatalf("unexpected current session %+v", views[1])
	}

	err = te.RevokeSession(ctx, alice.User.ID, bob.SessionID)
	requireKind(t, err, KindNotFound, msgSessionNotFound)
	if _, err := te.sessions.Get(ctx, bob.SessionID); err != nil {
		t.Fatal("foreign session must survive")
	}

	if err := te.RevokeSession(ctx, alice.User.ID, other.SessionID); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	err = te.RevokeSession(ctx, alice.User.ID, other.SessionID)
	requireKind(t, err, KindNotFound, msgSessionNotFound)
}

func TestGetUser(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	reg := te.register(t, "alice@example.com", "alice-password")

	u, err := te.GetUser(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if u.ID != reg.User.ID || u.Email != "alice@example.com" {
		t.Fatalf("expected %+v, got %+v", reg.User, u)
	}

	_, err = te.GetUser(ctx, "missing")
	requireKind(t, err, KindNotFound, msgUserNotFound)
}

func TestAuditEventsEmitted(t *testing.T) {
	sink := NewChannelSink(16)
	te := newTestEngine(t, func(cfg *Config) {
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
	}, func(b *Builder) {
		b.WithAuditSink(sink)
	})

	ctx := WithUserAgent(WithClientIP(context.Background(), "203.0.113.9"), "curl/8")
	_, err := te.Register(ctx, RegisterInput{
		Email:           "alice@example.com",
		Password:        "alice-password",
		ConfirmPassword: "alice-password",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	_, _ = te.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong-password"})

	want := []string{auditEventRegisterSuccess, auditEventLoginFailure}
	for _, eventType := range want {
		select {
		case ev := <-sink.Events():
			if ev.EventType != eventType {
				t.Fatalf("expected %q, got %q", eventType, ev.EventType)
			}
			if ev.IP != "203.0.113.9" || ev.UserAgent != "curl/8" {
				t.Fatalf("missing request context on %+v", ev)
			}
			if eventType == auditEventLoginFailure && ev.Error != string(auditErrInvalidCredentials) {
				t.Fatalf("expected invalid_credentials, got %q", ev.Error)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", eventType)
		}
	}
}

func TestPing(t *testing.T) {
	te := newTestEngine(t, nil)
	if err := te.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	te.mr.Close()
	if err := te.Ping(context.Background()); err == nil {
		t.Fatal("expected Ping to fail with redis down")
	}
}
