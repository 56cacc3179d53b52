package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// FailureReason names an expected negative authentication outcome.
type FailureReason string

const (
	// FailureIncorrectCredentials covers unknown email, missing password,
	// and wrong password. Deliberately indistinguishable to the caller so
	// responses cannot be used to enumerate accounts.
	FailureIncorrectCredentials FailureReason = "incorrect_credentials"
	// FailureTooManyAttempts means the rate-limit window is exhausted.
	FailureTooManyAttempts FailureReason = "too_many_attempts"
)

// AuthResult is the value-returned outcome of Authenticate. Decisions come
// back as values, not errors, so callers cannot accidentally skip them.
type AuthResult struct {
	User    *User
	Failure FailureReason
}

// Succeeded reports whether authentication passed.
func (r AuthResult) Succeeded() bool {
	return r.Failure == "" && r.User != nil
}

// Rate-limit key purposes. Keys are "<purpose>:<folded-email>" for
// per-identity limits and the bare purpose for global ones.
const (
	purposePasswordAuth  = "password-auth"
	purposePasswordReset = "password-reset"
)

// PasswordAuthRateKey derives the login-attempt limit key for an email.
func PasswordAuthRateKey(email string) string {
	return purposePasswordAuth + ":" + strings.ToLower(email)
}

// PasswordResetRateKey derives the per-email reset limit key.
func PasswordResetRateKey(email string) string {
	return purposePasswordReset + ":" + strings.ToLower(email)
}

// GlobalPasswordResetRateKey is the service-wide reset limit key.
func GlobalPasswordResetRateKey() string {
	return purposePasswordReset
}

// PasswordFlow owns the password authentication state machines. Each call
// is a fresh decision sequence over one request; no state survives between
// invocations, so instances are safe for concurrent use.
type PasswordFlow struct {
	repo    RepositoryManager
	hasher  PasswordHasher
	limiter RateLimiter
	random  RandomTokenGenerator
	mailer  Mailer
	events  SecurityEventSink
	clock   Clock
	logger  Logger

	resetTTL         time.Duration
	authLimit        Limit
	resetLimit       Limit
	globalResetLimit Limit
}

// NewPasswordFlow returns a flow with development defaults for the optional
// collaborators. Production callers override them with the With* setters.
func NewPasswordFlow(repo RepositoryManager, hasher PasswordHasher, limiter RateLimiter, opts Config) *PasswordFlow {
	return &PasswordFlow{
		repo:             repo,
		hasher:           hasher,
		limiter:          limiter,
		random:           CryptoRandomTokens(),
		mailer:           LogMailer{},
		events:           noopSecurityEventSink{},
		clock:            systemClock{},
		logger:           defLogger{},
		resetTTL:         opts.GetResetTokenTTL(),
		authLimit:        opts.GetAuthLimit(),
		resetLimit:       opts.GetResetLimit(),
		globalResetLimit: opts.GetGlobalResetLimit(),
	}
}

func (f *PasswordFlow) WithLogger(logger Logger) *PasswordFlow {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// WithEventSink overrides the sink receiving non-transactional audit events.
func (f *PasswordFlow) WithEventSink(sink SecurityEventSink) *PasswordFlow {
	f.events = normalizeEventSink(sink)
	return f
}

func (f *PasswordFlow) WithMailer(mailer Mailer) *PasswordFlow {
	if mailer != nil {
		f.mailer = mailer
	}
	return f
}

func (f *PasswordFlow) WithClock(clock Clock) *PasswordFlow {
	if clock != nil {
		f.clock = clock
	}
	return f
}

func (f *PasswordFlow) WithRandomTokens(random RandomTokenGenerator) *PasswordFlow {
	if random != nil {
		f.random = random
	}
	return f
}

// Authenticate runs the email+password decision sequence. Expected
// failures come back in the AuthResult; only infrastructure problems
// produce an error.
func (f *PasswordFlow) Authenticate(ctx context.Context, email, password, clientIP string) (AuthResult, error) {
	allowed, err := f.limiter.IsAllowed(ctx, PasswordAuthRateKey(email), f.authLimit)
	if err != nil {
		return AuthResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "authentication rate-limit check failed")
	}
	if !allowed {
		f.recordEvent(ctx, EventAuthFailureRateLimit, clientIP, nil)
		return AuthResult{Failure: FailureTooManyAttempts}, nil
	}

	user, err := f.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			f.recordEvent(ctx, EventAuthFailureUnrecognizedEmail, clientIP, nil)
			return AuthResult{Failure: FailureIncorrectCredentials}, nil
		}
		return AuthResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for authentication")
	}

	if user.Deactivated() {
		f.recordEvent(ctx, EventAuthFailureDeactivated, clientIP, &user.ID)
		return AuthResult{Failure: FailureIncorrectCredentials}, nil
	}

	if !user.HasPassword() {
		f.recordEvent(ctx, EventAuthFailureNoPassword, clientIP, &user.ID)
		return AuthResult{Failure: FailureIncorrectCredentials}, nil
	}

	verdict := f.hasher.Verify(user.PasswordHash, password)
	if verdict == VerifyFailed {
		f.recordEvent(ctx, EventAuthFailureIncorrectPassword, clientIP, &user.ID)
		return AuthResult{Failure: FailureIncorrectCredentials}, nil
	}

	f.recordEvent(ctx, EventAuthSuccess, clientIP, &user.ID)

	// A successful login clears prior failed-attempt pressure.
	if err := f.limiter.Reset(ctx, PasswordAuthRateKey(email)); err != nil {
		f.logger.Warn("failed to reset auth rate limit for %s: %v", email, err)
	}

	if verdict == VerifySuccessNeedsRehash {
		user = f.upgradePasswordHash(ctx, user, password)
	}

	return AuthResult{User: user}, nil
}

// upgradePasswordHash opportunistically re-hashes under current parameters.
// Losing the optimistic write is not an authentication failure: the caller
// keeps the pre-rehash snapshot and the next login tries again.
func (f *PasswordFlow) upgradePasswordHash(ctx context.Context, user *User, password string) *User {
	newHash, err := f.hasher.Hash(password)
	if err != nil {
		f.logger.Warn("failed to compute upgraded password hash for %s: %v", user.ID, err)
		return user
	}

	candidate := *user
	candidate.PasswordHash = newHash

	updated, err := f.repo.Users().UpdateCredentials(ctx, &candidate)
	if err != nil {
		if IsRevisionConflict(err) {
			f.logger.Info("skipped password hash upgrade for %s: concurrent update won", user.ID)
		} else {
			f.logger.Warn("failed to persist upgraded password hash for %s: %v", user.ID, err)
		}
		return user
	}
	return updated
}

// ChangePassword verifies the current password and applies the shared
// password-set sequence. A user without a stored password is a
// precondition violation, reported as an error after the audit row lands.
func (f *PasswordFlow) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword, clientIP string) (bool, error) {
	user, err := f.repo.Users().GetByUserID(ctx, userID)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password change")
	}

	if !user.HasPassword() {
		f.recordEvent(ctx, EventPasswordChangeFailureNoPassword, clientIP, &user.ID)
		return false, ErrNoPasswordSet
	}

	if f.hasher.Verify(user.PasswordHash, currentPassword) == VerifyFailed {
		f.recordEvent(ctx, EventPasswordChangeFailureIncorrect, clientIP, &user.ID)
		return false, nil
	}

	if _, err := f.setPassword(ctx, user, newPassword, EventPasswordChangeSuccess, clientIP); err != nil {
		return false, err
	}

	if err := f.mailer.SendPasswordChangeNotification(ctx, user.Email); err != nil {
		f.logger.Warn("failed to send password change notification to %s: %v", user.Email, err)
	}

	return true, nil
}

// setPassword is shared by ChangePassword and ResetPassword: hash the new
// password, rotate the security stamp, bump revision, and commit the user
// mutation together with the audit row. Outstanding reset tokens are
// deleted after commit; the delete is idempotent and retryable.
func (f *PasswordFlow) setPassword(ctx context.Context, user *User, newPassword string, eventName SecurityEventName, clientIP string) (*User, error) {
	hash, err := f.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	stamp, err := f.random.Generate(SecurityStampBytes)
	if err != nil {
		return nil, err
	}

	now := f.clock.Now()

	candidate := *user
	candidate.PasswordHash = hash
	candidate.SecurityStamp = stamp
	candidate.PasswordSetAt = &now

	var updated *User
	err = f.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if updated, err = f.repo.Users().UpdateCredentialsTx(ctx, tx, &candidate); err != nil {
			return err
		}

		return f.repo.SecurityEvents().AppendTx(ctx, tx, &SecurityEvent{
			OccurredAt: now,
			Name:       eventName,
			ClientIP:   clientIP,
			UserID:     &user.ID,
		})
	})
	if err != nil {
		// Revision conflicts on explicit mutations surface to the caller
		// as retryable failures.
		return nil, err
	}

	if err := f.repo.PasswordResetTokens().DeleteAllForUser(ctx, user.ID); err != nil {
		f.logger.Warn("failed to delete reset tokens for %s: %v", user.ID, err)
	}

	return updated, nil
}

// PasswordResetTokenIsValid is a read-mostly check used by a UI before
// showing the reset form. It never consumes the token.
func (f *PasswordFlow) PasswordResetTokenIsValid(ctx context.Context, token, clientIP string) (bool, error) {
	if err := f.sweepExpiredTokens(ctx); err != nil {
		return false, err
	}

	record, err := f.repo.PasswordResetTokens().GetByToken(ctx, token)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			f.recordEvent(ctx, EventPasswordResetFailureInvalidToken, clientIP, nil)
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up reset token")
	}

	f.logger.Debug("password reset token valid for user %s", record.UserID)
	return true, nil
}

// ResetPassword consumes a reset token and applies the password-set
// sequence. Presenting an invalid token to this mutating call is a
// protocol violation and fails with ErrInvalidResetToken.
func (f *PasswordFlow) ResetPassword(ctx context.Context, token, newPassword, clientIP string) (*User, error) {
	if err := f.sweepExpiredTokens(ctx); err != nil {
		return nil, err
	}

	record, err := f.repo.PasswordResetTokens().GetByToken(ctx, token)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			f.recordEvent(ctx, EventPasswordResetFailureInvalidToken, clientIP, nil)
			return nil, ErrInvalidResetToken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up reset token")
	}

	user, err := f.repo.Users().GetByUserID(ctx, record.UserID)
	if err != nil {
		// A token pointing at a vanished user is as dead as a missing token.
		if repository.IsRecordNotFound(err) {
			f.recordEvent(ctx, EventPasswordResetFailureInvalidToken, clientIP, nil)
			return nil, ErrInvalidResetToken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	updated, err := f.setPassword(ctx, user, newPassword, EventPasswordResetSuccess, clientIP)
	if err != nil {
		return nil, err
	}

	if err := f.mailer.SendPasswordChangeNotification(ctx, user.Email); err != nil {
		f.logger.Warn("failed to send password change notification to %s: %v", user.Email, err)
	}

	if err := f.limiter.Reset(ctx, PasswordAuthRateKey(user.Email)); err != nil {
		f.logger.Warn("failed to reset auth rate limit for %s: %v", user.Email, err)
	}

	return updated, nil
}

// SendPasswordResetLink issues a reset token and mails the link. The
// response shape is uniform whether or not the email exists; only the
// audit trail differentiates.
func (f *PasswordFlow) SendPasswordResetLink(ctx context.Context, email, clientIP string, linkBuilder ResetLinkBuilder) (bool, error) {
	if linkBuilder == nil {
		return false, goerrors.New("a reset link builder is required", goerrors.CategoryBadInput)
	}

	allowed, err := f.limiter.IsAllowed(ctx, GlobalPasswordResetRateKey(), f.globalResetLimit)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "reset rate-limit check failed")
	}
	if allowed {
		allowed, err = f.limiter.IsAllowed(ctx, PasswordResetRateKey(email), f.resetLimit)
		if err != nil {
			return false, goerrors.Wrap(err, goerrors.CategoryInternal, "reset rate-limit check failed")
		}
	}
	if !allowed {
		f.recordEvent(ctx, EventPasswordResetFailureRateLimit, clientIP, nil)
		return false, nil
	}

	user, err := f.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			f.recordEvent(ctx, EventPasswordResetFailureUnrecognized, clientIP, nil)
			return true, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	token, err := f.random.Generate(ResetTokenBytes)
	if err != nil {
		return false, err
	}

	err = f.repo.PasswordResetTokens().Create(ctx, &PasswordResetToken{
		Token:     token,
		UserID:    user.ID,
		CreatedAt: f.clock.Now(),
	})
	if err != nil {
		return false, err
	}

	// Delivery is best-effort: failing here must not produce a response
	// distinguishable from the unknown-email path.
	if err := f.mailer.SendPasswordResetLink(ctx, user.Email, linkBuilder(token)); err != nil {
		f.logger.Warn("failed to send password reset link to %s: %v", user.Email, err)
	}

	f.recordEvent(ctx, EventPasswordResetLinkSent, clientIP, &user.ID)
	return true, nil
}

func (f *PasswordFlow) sweepExpiredTokens(ctx context.Context) error {
	before := f.clock.Now().Add(-f.resetTTL)
	return f.repo.PasswordResetTokens().DeleteExpired(ctx, before)
}

func (f *PasswordFlow) recordEvent(ctx context.Context, name SecurityEventName, clientIP string, userID *uuid.UUID) {
	event := SecurityEvent{
		OccurredAt: f.clock.Now(),
		Name:       name,
		ClientIP:   clientIP,
		UserID:     userID,
	}
	if err := f.events.Record(ctx, event); err != nil {
		f.logger.Warn("security event sink error for %s: %v", name, err)
	}
}
