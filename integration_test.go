package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/castellan/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Exercises the reset lifecycle over a real sqlite-backed repository:
// request a link, check the token, consume it, then confirm the token is
// dead and only the new password authenticates.
func TestPasswordResetLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, db, clock := setupRepoManager(t)

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	originalHash, err := hasher.Hash("original-password-123")
	require.NoError(t, err)

	setAt := clock.now.Add(-30 * 24 * time.Hour)
	user := &auth.User{
		ID:            uuid.New(),
		Email:         "reset@example.com",
		Name:          "Reset User",
		PasswordHash:  originalHash,
		PasswordSetAt: &setAt,
		SecurityStamp: "stamp-original",
	}
	_, err = db.NewInsert().Model(user).Exec(ctx)
	require.NoError(t, err)

	limiter := new(MockRateLimiter)
	limiter.On("IsAllowed", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	limiter.On("Reset", mock.Anything, mock.Anything).Return(nil)

	mailer := new(MockMailer)
	mailer.On("SendPasswordResetLink", mock.Anything, user.Email, mock.Anything).Return(nil)
	mailer.On("SendPasswordChangeNotification", mock.Anything, user.Email).Return(nil)

	flow := auth.NewPasswordFlow(repo, hasher, limiter, newTestConfig()).
		WithClock(clock).
		WithMailer(mailer)

	var token string
	sent, err := flow.SendPasswordResetLink(ctx, user.Email, "192.0.2.1", func(tok string) string {
		token = tok
		return "https://app.example.com/reset/" + tok
	})
	require.NoError(t, err)
	require.True(t, sent)
	require.NotEmpty(t, token)

	valid, err := flow.PasswordResetTokenIsValid(ctx, token, "192.0.2.1")
	require.NoError(t, err)
	assert.True(t, valid)

	updated, err := flow.ResetPassword(ctx, token, "brand-new-password-123", "192.0.2.1")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.NotEqual(t, originalHash, updated.PasswordHash)
	assert.NotEqual(t, "stamp-original", updated.SecurityStamp)
	assert.Equal(t, int64(1), updated.Revision)

	// Consuming the token kills it.
	valid, err = flow.PasswordResetTokenIsValid(ctx, token, "192.0.2.1")
	require.NoError(t, err)
	assert.False(t, valid)

	_, err = flow.ResetPassword(ctx, token, "another-password-123", "192.0.2.1")
	require.Error(t, err)
	assert.True(t, auth.IsInvalidResetToken(err))

	result, err := flow.Authenticate(ctx, user.Email, "brand-new-password-123", "192.0.2.1")
	require.NoError(t, err)
	assert.True(t, result.Succeeded())

	result, err = flow.Authenticate(ctx, user.Email, "original-password-123", "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, auth.FailureIncorrectCredentials, result.Failure)

	// The committed audit trail carries the reset.
	events, err := repo.SecurityEvents().ListForUser(ctx, user.ID, 10)
	require.NoError(t, err)
	names := make([]auth.SecurityEventName, 0, len(events))
	for _, e := range events {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, auth.EventPasswordResetSuccess)
}
