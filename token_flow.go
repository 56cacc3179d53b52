package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// DefaultAccessTokenTTL bounds bearer token lifetime. Tokens are
// single-purpose and short-lived; there is no sliding renewal.
const DefaultAccessTokenTTL = 24 * time.Hour

// TokenFlow issues and validates self-contained bearer access tokens.
type TokenFlow struct {
	codec  *TokenCodec
	repo   RepositoryManager
	events SecurityEventSink
	clock  Clock
	logger Logger
	ttl    time.Duration
}

// NewTokenFlow builds the flow. The TTL comes from opts; zero falls back
// to DefaultAccessTokenTTL.
func NewTokenFlow(codec *TokenCodec, repo RepositoryManager, opts Config) *TokenFlow {
	ttl := opts.GetAccessTokenTTL()
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	return &TokenFlow{
		codec:  codec,
		repo:   repo,
		events: noopSecurityEventSink{},
		clock:  systemClock{},
		logger: defLogger{},
		ttl:    ttl,
	}
}

func (t *TokenFlow) WithLogger(logger Logger) *TokenFlow {
	if logger != nil {
		t.logger = logger
	}
	return t
}

func (t *TokenFlow) WithEventSink(sink SecurityEventSink) *TokenFlow {
	t.events = normalizeEventSink(sink)
	return t
}

func (t *TokenFlow) WithClock(clock Clock) *TokenFlow {
	if clock != nil {
		t.clock = clock
	}
	return t
}

// IssueAccessToken mints a bearer token for the user and audits the
// issuance.
func (t *TokenFlow) IssueAccessToken(ctx context.Context, user *User, clientIP string) (string, error) {
	if user == nil {
		return "", goerrors.New("a user is required to issue a token", goerrors.CategoryBadInput)
	}

	token, err := t.codec.Encode(AccessTokenPayload{
		UserID:        user.ID,
		SecurityStamp: user.SecurityStamp,
		IssuedAt:      t.clock.Now(),
	})
	if err != nil {
		return "", err
	}

	event := SecurityEvent{
		OccurredAt: t.clock.Now(),
		Name:       EventAccessTokenIssued,
		ClientIP:   clientIP,
		UserID:     &user.ID,
	}
	if err := t.events.Record(ctx, event); err != nil {
		t.logger.Warn("security event sink error for %s: %v", EventAccessTokenIssued, err)
	}

	return token, nil
}

// ValidateAccessToken resolves a bearer token to its user, or nil when the
// token is rejected for any reason. Rejections are logged but not audited;
// per-event rows at validation volume are not actionable.
func (t *TokenFlow) ValidateAccessToken(ctx context.Context, token string) (*User, error) {
	payload, err := t.codec.Decode(token)
	if err != nil {
		switch {
		case IsTokenFormatError(err):
			t.logger.Info("rejected access token: not base64url encoded")
		case IsTokenCryptoError(err):
			t.logger.Info("rejected access token: malformed or encrypted with wrong key")
		default:
			t.logger.Info("rejected access token: %v", err)
		}
		return nil, nil
	}

	// Valid through the full TTL; expired strictly after it.
	if t.clock.Now().Sub(payload.IssuedAt) > t.ttl {
		t.logger.Info("rejected access token for user %s: expired", payload.UserID)
		return nil, nil
	}

	user, err := t.repo.Users().GetByUserID(ctx, payload.UserID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			t.logger.Info("rejected access token: user %s does not exist", payload.UserID)
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for token validation")
	}

	if user.Deactivated() {
		t.logger.Info("rejected access token for user %s: account deactivated", payload.UserID)
		return nil, nil
	}

	// Stamps are opaque random tokens; comparison is exact, never folded.
	if payload.SecurityStamp != user.SecurityStamp {
		t.logger.Info("rejected access token for user %s: stale security stamp", payload.UserID)
		return nil, nil
	}

	t.logger.Debug("validated access token for user %s", user.ID)
	return user, nil
}
