package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/castellan/auth"
	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenFlowFixture struct {
	codec  *auth.TokenCodec
	repo   *MockRepoManager
	events *CaptureEventSink
	clock  *testClock
	flow   *auth.TokenFlow
}

func newTokenFlowFixture(t *testing.T) *tokenFlowFixture {
	t.Helper()
	f := &tokenFlowFixture{
		codec:  newTestCodec(t),
		repo:   newMockRepoManager(),
		events: new(CaptureEventSink),
		clock:  newTestClock(),
	}
	f.flow = auth.NewTokenFlow(f.codec, f.repo, newTestConfig()).
		WithEventSink(f.events).
		WithClock(f.clock)
	return f
}

func TestIssueAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a decodable token and audits it", func(t *testing.T) {
		f := newTokenFlowFixture(t)
		user := testUser(f.clock)

		token, err := f.flow.IssueAccessToken(ctx, user, "10.0.0.1")

		require.NoError(t, err)
		assert.NotEmpty(t, token)

		payload, err := f.codec.Decode(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, payload.UserID)
		assert.Equal(t, user.SecurityStamp, payload.SecurityStamp)
		assert.True(t, payload.IssuedAt.Equal(f.clock.now))

		events := f.events.Events()
		require.Len(t, events, 1)
		assert.Equal(t, auth.EventAccessTokenIssued, events[0].Name)
		assert.Equal(t, "10.0.0.1", events[0].ClientIP)
		require.NotNil(t, events[0].UserID)
		assert.Equal(t, user.ID, *events[0].UserID)
	})

	t.Run("requires a user", func(t *testing.T) {
		f := newTokenFlowFixture(t)

		token, err := f.flow.IssueAccessToken(ctx, nil, "10.0.0.1")

		assert.Error(t, err)
		assert.Empty(t, token)
	})
}

func TestValidateAccessToken(t *testing.T) {
	ctx := context.Background()

	issue := func(t *testing.T, f *tokenFlowFixture, user *auth.User) string {
		t.Helper()
		token, err := f.flow.IssueAccessToken(ctx, user, "10.0.0.1")
		require.NoError(t, err)
		return token
	}

	t.Run("resolves a fresh token to its user", func(t *testing.T) {
		f := newTokenFlowFixture(t)
		user := testUser(f.clock)
		token := issue(t, f, user)

		f.repo.UsersRepo.On("GetByUserID", ctx, user.ID).Return(user, nil).Once()

		got, err := f.flow.ValidateAccessToken(ctx, token)

		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("valid exactly at the ttl boundary", func(t *testing.T) {
		f := newTokenFlowFixture(t)
		user := testUser(f.clock)
		token := issue(t, f, user)

		f.clock.now = f.clock.now.Add(24 * time.Hour)
		f.repo.UsersRepo.On("GetByUserID", ctx, user.ID).Return(user, nil).Once()

		got, err := f.flow.ValidateAccessToken(ctx, token)

		require.NoError(t, err)
		assert.NotNil(t, got)
	})

	t.Run("rejected one second past the ttl", func(t *testing.T) {
		f := newTokenFlowFixture(t)
		user := testUser(f.clock)
		token := issue(t, f, user)

		f.clock.now = f.clock.now.Add(24*time.Hour + time.Second)

		got, err := f.flow.ValidateAccessToken(ctx, token)

		require.NoError(t, err)
		assert.Nil(t, got)
		f.repo.UsersRepo.AssertNotCalled(t, "GetByUserID", ctx, user.ID)
	})

	t.Run("rejected when the security stamp went stale", func(t *testing.T) {
		f := newTokenFlowFixture(t)
		user := testUser(f.clock)
		token := issue(t, f, user)

		rotated := *user
		rotated.SecurityStamp = "stamp-rotated-since"
		f.repo.UsersRepo.On("GetByUserID", ctx, user.ID).Return(&rotated, nil).Once()

		got, err := f.flow.ValidateAccessToken(ctx, token)

		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("rejected when the account was deactivated", func(t *testing.T) {
		f := newTokenFlowFixture(t)
		user := testUser(f.clock)
		token := issue(t, f, user)

		deactivated := *user
		gone := f.clock.now.Add(-time.Hour)
		deactivated.DeactivatedAt = &gone
		f.repo.UsersRepo.On("GetByUserID", ctx, user.ID).Return(&deactivated, nil).Once()

		got, err := f.flow.ValidateAccessToken(ctx, token)

		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("rejected when the user no longer exists", func(t *testing.T) {
		f := newTokenFlowFixture(t)
		user := testUser(f.clock)
		token := issue(t, f, user)

		f.repo.UsersRepo.On("GetByUserID", ctx, user.ID).
			Return(nil, repository.NewRecordNotFound()).Once()

		got, err := f.flow.ValidateAccessToken(ctx, token)

		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("undecodable tokens are rejected, not errored", func(t *testing.T) {
		f := newTokenFlowFixture(t)

		for _, token := range []string{"", "!!not-base64!!", "dG9vLXNob3J0"} {
			got, err := f.flow.ValidateAccessToken(ctx, token)
			assert.NoError(t, err, token)
			assert.Nil(t, got, token)
		}
	})

	t.Run("store failure is an error, not a rejection", func(t *testing.T) {
		f := newTokenFlowFixture(t)
		user := testUser(f.clock)
		token := issue(t, f, user)

		f.repo.UsersRepo.On("GetByUserID", ctx, user.ID).Return(nil, assert.AnError).Once()

		got, err := f.flow.ValidateAccessToken(ctx, token)

		assert.Error(t, err)
		assert.Nil(t, got)
	})
}
