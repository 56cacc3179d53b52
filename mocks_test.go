package auth_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/castellan/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockUsers implements auth.Users for the methods the flows touch. The
// embedded interface panics on anything unexpected, which is what we want.
type MockUsers struct {
	auth.Users
	mock.Mock
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *MockUsers) GetByUserID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *MockUsers) UpdateCredentials(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *MockUsers) UpdateCredentialsTx(ctx context.Context, tx bun.IDB, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, tx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

// MockResetTokens implements auth.PasswordResetTokens
type MockResetTokens struct {
	mock.Mock
}

func (m *MockResetTokens) Create(ctx context.Context, token *auth.PasswordResetToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockResetTokens) GetByToken(ctx context.Context, token string) (*auth.PasswordResetToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.PasswordResetToken), args.Error(1)
}

func (m *MockResetTokens) DeleteExpired(ctx context.Context, before time.Time) error {
	args := m.Called(ctx, before)
	return args.Error(0)
}

func (m *MockResetTokens) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockResetTokens) DeleteAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	args := m.Called(ctx, tx, userID)
	return args.Error(0)
}

// MockSecurityEvents implements auth.SecurityEvents
type MockSecurityEvents struct {
	mock.Mock
}

func (m *MockSecurityEvents) Append(ctx context.Context, event *auth.SecurityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockSecurityEvents) AppendTx(ctx context.Context, tx bun.IDB, event *auth.SecurityEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

func (m *MockSecurityEvents) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]auth.SecurityEvent, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]auth.SecurityEvent), args.Error(1)
}

// MockRepoManager implements auth.RepositoryManager. RunInTx executes the
// callback directly against a zero transaction; the repos are mocks, so no
// database is involved.
type MockRepoManager struct {
	UsersRepo  *MockUsers
	TokensRepo *MockResetTokens
	EventsRepo *MockSecurityEvents
}

func newMockRepoManager() *MockRepoManager {
	return &MockRepoManager{
		UsersRepo:  new(MockUsers),
		TokensRepo: new(MockResetTokens),
		EventsRepo: new(MockSecurityEvents),
	}
}

func (m *MockRepoManager) Validate() error { return nil }
func (m *MockRepoManager) MustValidate()   {}

func (m *MockRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(context.Context, bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *MockRepoManager) Users() auth.Users { return m.UsersRepo }

func (m *MockRepoManager) PasswordResetTokens() auth.PasswordResetTokens { return m.TokensRepo }

func (m *MockRepoManager) SecurityEvents() auth.SecurityEvents { return m.EventsRepo }

// MockHasher implements auth.PasswordHasher
type MockHasher struct {
	mock.Mock
}

func (m *MockHasher) Hash(plaintext string) (string, error) {
	args := m.Called(plaintext)
	return args.String(0), args.Error(1)
}

func (m *MockHasher) Verify(hash, plaintext string) auth.VerifyResult {
	args := m.Called(hash, plaintext)
	return args.Get(0).(auth.VerifyResult)
}

// MockRateLimiter implements auth.RateLimiter
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) IsAllowed(ctx context.Context, key string, limit auth.Limit) (bool, error) {
	args := m.Called(ctx, key, limit)
	return args.Bool(0), args.Error(1)
}

func (m *MockRateLimiter) Reset(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockRandom implements auth.RandomTokenGenerator
type MockRandom struct {
	mock.Mock
}

func (m *MockRandom) Generate(byteCount int) (string, error) {
	args := m.Called(byteCount)
	return args.String(0), args.Error(1)
}

// MockMailer implements auth.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendPasswordChangeNotification(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockMailer) SendPasswordResetLink(ctx context.Context, email, url string) error {
	args := m.Called(ctx, email, url)
	return args.Error(0)
}

// CaptureEventSink collects recorded events for assertions.
type CaptureEventSink struct {
	mu     sync.Mutex
	events []auth.SecurityEvent
}

func (s *CaptureEventSink) Record(ctx context.Context, event auth.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *CaptureEventSink) Events() []auth.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.SecurityEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *CaptureEventSink) Names() []auth.SecurityEventName {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]auth.SecurityEventName, 0, len(s.events))
	for _, e := range s.events {
		names = append(names, e.Name)
	}
	return names
}

// fakeSession is an in-memory WebSession for protocol tests.
type fakeSession struct {
	principal *auth.PrincipalClaims
	signIns   []*auth.PrincipalClaims
	signedOut bool
	signInErr error
}

func (s *fakeSession) Principal() (*auth.PrincipalClaims, bool) {
	return s.principal, s.principal != nil
}

func (s *fakeSession) SignIn(claims *auth.PrincipalClaims) error {
	if s.signInErr != nil {
		return s.signInErr
	}
	s.signIns = append(s.signIns, claims)
	s.principal = claims
	return nil
}

func (s *fakeSession) SignOut() error {
	s.signedOut = true
	s.principal = nil
	return nil
}

// testClock is a settable auth.Clock
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func newTestConfig() auth.SimpleConfig {
	cfg := auth.DefaultConfig(
		[]byte("0123456789abcdef0123456789abcdef"),
		"test-signing-key-0123456789",
	)
	cfg.Issuer = "test-issuer"
	cfg.Audience = []string{"test:audience"}
	return cfg
}
