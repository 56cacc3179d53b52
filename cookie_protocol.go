package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// WebSession is the transport-level cookie session. Implementations carry
// the principal across requests; RouterSession is the HTTP-backed one.
type WebSession interface {
	// Principal returns the signed-in principal, if any.
	Principal() (*PrincipalClaims, bool)
	// SignIn replaces the principal and re-issues the transport cookie.
	SignIn(claims *PrincipalClaims) error
	// SignOut terminates the transport session.
	SignOut() error
}

// ValidationOutcome is the decision of CookieProtocol.ValidatePrincipal.
type ValidationOutcome int

const (
	// OutcomeAnonymous means no prior principal; pass through unchanged.
	OutcomeAnonymous ValidationOutcome = iota
	// OutcomeRejected means the principal was revoked and the session
	// signed out at the transport.
	OutcomeRejected
	// OutcomeRefreshed means the principal was trustworthy but stale and
	// has been rebuilt from the current user record.
	OutcomeRefreshed
	// OutcomeValid means the principal is current; nothing was touched.
	OutcomeValid
)

// CookieProtocol decides whether a previously issued session principal is
// still valid and silently refreshes it when the underlying user record
// has moved on.
type CookieProtocol struct {
	repo    RepositoryManager
	builder ClaimsBuilder
	events  SecurityEventSink
	clock   Clock
	logger  Logger
	scheme  string
}

// NewCookieProtocol builds the protocol with the given claims builder.
func NewCookieProtocol(repo RepositoryManager, builder ClaimsBuilder, opts Config) *CookieProtocol {
	return &CookieProtocol{
		repo:    repo,
		builder: builder,
		events:  noopSecurityEventSink{},
		clock:   systemClock{},
		logger:  defLogger{},
		scheme:  opts.GetAuthScheme(),
	}
}

func (p *CookieProtocol) WithLogger(logger Logger) *CookieProtocol {
	if logger != nil {
		p.logger = logger
	}
	return p
}

func (p *CookieProtocol) WithEventSink(sink SecurityEventSink) *CookieProtocol {
	p.events = normalizeEventSink(sink)
	return p
}

func (p *CookieProtocol) WithClock(clock Clock) *CookieProtocol {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// ValidatePrincipal runs the staleness protocol for one request. A stamp
// mismatch forces transport sign-out; a stale revision rebuilds the
// principal but keeps the user signed in.
func (p *CookieProtocol) ValidatePrincipal(ctx context.Context, session WebSession) (ValidationOutcome, error) {
	principal, ok := session.Principal()
	if !ok {
		return OutcomeAnonymous, nil
	}

	userID, err := principal.UserUUID()
	if err != nil {
		p.logger.Info("rejecting principal: unparseable user id claim: %v", err)
		return p.reject(session)
	}

	user, err := p.repo.Users().GetByUserID(ctx, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			p.logger.Info("rejecting principal: user %s no longer exists", userID)
			return p.reject(session)
		}
		return OutcomeValid, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for principal validation")
	}

	if principal.SecurityStamp == "" || principal.SecurityStamp != user.SecurityStamp {
		p.logger.Info("rejecting principal for user %s: incorrect security stamp", userID)
		return p.reject(session)
	}

	if principal.Revision < user.Revision {
		fresh, err := p.builder.BuildPrincipal(user, p.scheme)
		if err != nil {
			return OutcomeValid, err
		}
		if err := session.SignIn(fresh); err != nil {
			return OutcomeValid, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to renew session principal")
		}
		p.logger.Info("refreshed claims principal for user %s: revision %d -> %d", userID, principal.Revision, user.Revision)
		return OutcomeRefreshed, nil
	}

	p.logger.Debug("successfully validated principal for user %s", userID)
	return OutcomeValid, nil
}

func (p *CookieProtocol) reject(session WebSession) (ValidationOutcome, error) {
	if err := session.SignOut(); err != nil {
		return OutcomeRejected, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign out rejected session")
	}
	return OutcomeRejected, nil
}

// RefreshPrincipal unconditionally rebuilds the principal from the latest
// user record. Used after profile-affecting actions within one request,
// outside the periodic validation path.
func (p *CookieProtocol) RefreshPrincipal(ctx context.Context, session WebSession) error {
	principal, ok := session.Principal()
	if !ok {
		return goerrors.New("no signed-in principal to refresh", goerrors.CategoryAuth)
	}

	userID, err := principal.UserUUID()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryAuth, "principal has no usable user id claim")
	}

	user, err := p.repo.Users().GetByUserID(ctx, userID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for principal refresh")
	}

	fresh, err := p.builder.BuildPrincipal(user, p.scheme)
	if err != nil {
		return err
	}

	return session.SignIn(fresh)
}

// SignIn builds a brand-new principal from the full current user record
// and records a sign_in event.
func (p *CookieProtocol) SignIn(ctx context.Context, session WebSession, user *User, clientIP string) error {
	principal, err := p.builder.BuildPrincipal(user, p.scheme)
	if err != nil {
		return err
	}

	if err := session.SignIn(principal); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign in session")
	}

	p.recordEvent(ctx, EventSignIn, clientIP, user)
	return nil
}

// SignOut terminates the session. The sign_out event is recorded only when
// a user id could be recovered from the outgoing principal.
func (p *CookieProtocol) SignOut(ctx context.Context, session WebSession, clientIP string) error {
	var outgoing *User
	if principal, ok := session.Principal(); ok {
		if userID, err := principal.UserUUID(); err == nil {
			outgoing = &User{ID: userID}
		}
	}

	if err := session.SignOut(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign out session")
	}

	if outgoing != nil {
		p.recordEvent(ctx, EventSignOut, clientIP, outgoing)
	}
	return nil
}

func (p *CookieProtocol) recordEvent(ctx context.Context, name SecurityEventName, clientIP string, user *User) {
	event := SecurityEvent{
		OccurredAt: p.clock.Now(),
		Name:       name,
		ClientIP:   clientIP,
		UserID:     &user.ID,
	}
	if err := p.events.Record(ctx, event); err != nil {
		p.logger.Warn("security event sink error for %s: %v", name, err)
	}
}
