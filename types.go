package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Clock produces the current UTC time. Flows never call time.Now directly so
// expiry arithmetic stays deterministic under test.
type Clock interface {
	Now() time.Time
}

// RandomTokenGenerator produces URL-safe random strings for security stamps
// and password-reset tokens.
type RandomTokenGenerator interface {
	Generate(byteCount int) (string, error)
}

// VerifyResult is the outcome of a password verification.
type VerifyResult int

const (
	// VerifyFailed means the password does not match the stored hash.
	VerifyFailed VerifyResult = iota
	// VerifySuccess means the password matches.
	VerifySuccess
	// VerifySuccessNeedsRehash means the password matches but the stored
	// hash uses outdated parameters and should be upgraded.
	VerifySuccessNeedsRehash
)

// PasswordHasher hashes and verifies passwords. Verify reports a three-way
// result so the opportunistic rehash branch is a plain switch.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) VerifyResult
}

// Limit is a sliding-window budget: at most Events per rolling Window.
type Limit struct {
	Events int
	Window time.Duration
}

// RateLimiter is the shared, horizontally-scaled attempt counter. IsAllowed
// both checks and counts an event; Reset clears a key after a successful
// authentication.
type RateLimiter interface {
	IsAllowed(ctx context.Context, key string, limit Limit) (bool, error)
	Reset(ctx context.Context, key string) error
}

// Mailer delivers outbound notifications. Implementations live outside this
// package; LogMailer exists for development.
type Mailer interface {
	SendPasswordChangeNotification(ctx context.Context, email string) error
	SendPasswordResetLink(ctx context.Context, email, url string) error
}

// ResetLinkBuilder turns a reset token into the URL mailed to the user.
type ResetLinkBuilder func(token string) string

// Config holds auth options
type Config interface {
	GetTokenKey() []byte
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAuthScheme() string
	GetContextKey() string
	GetAccessTokenTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetAuthLimit() Limit
	GetResetLimit() Limit
	GetGlobalResetLimit() Limit
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by time.Now in UTC.
func SystemClock() Clock { return systemClock{} }

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
