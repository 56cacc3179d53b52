package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouterSession adapts one go-router request to the WebSession interface.
// The principal cookie is parsed lazily and at most once per request.
type RouterSession struct {
	ctx        router.Context
	mint       *ClaimsMint
	cookieName string
	duration   time.Duration
	logger     Logger

	principal *PrincipalClaims
	loaded    bool
}

func (s *RouterSession) Principal() (*PrincipalClaims, bool) {
	if !s.loaded {
		s.loaded = true
		raw := s.ctx.Cookies(s.cookieName)
		if raw == "" {
			return nil, false
		}
		claims, err := s.mint.Parse(raw)
		if err != nil {
			s.logger.Debug("discarding unparseable session cookie: %v", err)
			return nil, false
		}
		s.principal = claims
	}
	return s.principal, s.principal != nil
}

func (s *RouterSession) SignIn(claims *PrincipalClaims) error {
	token, err := s.mint.Sign(claims)
	if err != nil {
		return err
	}

	s.ctx.Cookie(&router.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Expires:  time.Now().Add(s.duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})

	s.principal = claims
	s.loaded = true
	return nil
}

func (s *RouterSession) SignOut() error {
	s.ctx.Cookie(&router.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})

	s.principal = nil
	s.loaded = true
	return nil
}

// RouteAuthenticator wires the password flow, the token flow, and the cookie
// protocol into go-router handlers and middleware.
type RouteAuthenticator struct {
	passwords        *PasswordFlow
	tokens           *TokenFlow
	protocol         *CookieProtocol
	mint             *ClaimsMint
	cfg              Config
	cookieDuration   time.Duration
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error // TODO: make functions
	ErrorHandler     func(c router.Context, err error) error // TODO: make functions
}

func NewHTTPAuthenticator(passwords *PasswordFlow, tokens *TokenFlow, protocol *CookieProtocol, mint *ClaimsMint, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetAccessTokenTTL() > 0 {
		cookieDuration = cfg.GetAccessTokenTTL()
	}

	a := &RouteAuthenticator{
		passwords:      passwords,
		tokens:         tokens,
		protocol:       protocol,
		mint:           mint,
		cfg:            cfg,
		Logger:         defLogger{},
		cookieDuration: cookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// Session returns the WebSession view of the current request.
func (a *RouteAuthenticator) Session(ctx router.Context) *RouterSession {
	return &RouterSession{
		ctx:        ctx,
		mint:       a.mint,
		cookieName: a.cfg.GetContextKey(),
		duration:   a.cookieDuration,
		logger:     a.Logger,
	}
}

// Login authenticates the posted credentials and, on success, signs the
// session in through the cookie protocol.
func (a *RouteAuthenticator) Login(ctx router.Context, email, password string) error {
	result, err := a.passwords.Authenticate(ctx.Context(), email, password, ctx.IP())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return err
	}

	if !result.Succeeded() {
		if result.Failure == FailureTooManyAttempts {
			return errors.New(ErrTooManyAttempts.Message, ErrTooManyAttempts.Category).
				WithTextCode(TextCodeTooManyAttempts).
				WithCode(http.StatusTooManyRequests)
		}
		return errors.New(ErrIncorrectCredentials.Message, ErrIncorrectCredentials.Category).
			WithTextCode(TextCodeIncorrectCredentials).
			WithCode(errors.CodeUnauthorized)
	}

	return a.protocol.SignIn(ctx.Context(), a.Session(ctx), result.User, ctx.IP())
}

// Logout terminates the cookie session at the transport.
func (a *RouteAuthenticator) Logout(ctx router.Context) error {
	return a.protocol.SignOut(ctx.Context(), a.Session(ctx), ctx.IP())
}

// SessionMiddleware runs the cookie principal protocol on every request.
// Anonymous requests pass through untouched; validated and refreshed
// principals are exposed under the configured context key.
func (a *RouteAuthenticator) SessionMiddleware() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			session := a.Session(ctx)

			outcome, err := a.protocol.ValidatePrincipal(ctx.Context(), session)
			if err != nil {
				return a.ErrorHandler(ctx, err)
			}

			switch outcome {
			case OutcomeAnonymous, OutcomeRejected:
				return hf(ctx)
			}

			if principal, ok := session.Principal(); ok {
				ctx.Locals(a.cfg.GetContextKey(), principal)
			}
			return hf(ctx)
		}
	}
}

// ProtectedRoute rejects requests without a validated principal.
func (a *RouteAuthenticator) ProtectedRoute(errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = a.AuthErrorHandler
	}
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			session := a.Session(ctx)

			outcome, err := a.protocol.ValidatePrincipal(ctx.Context(), session)
			if err != nil {
				return a.ErrorHandler(ctx, err)
			}

			if outcome == OutcomeAnonymous || outcome == OutcomeRejected {
				return errorHandler(ctx, errors.New("Authentication required", errors.CategoryAuth).
					WithCode(errors.CodeUnauthorized))
			}

			if principal, ok := session.Principal(); ok {
				ctx.Locals(a.cfg.GetContextKey(), principal)
			}
			return hf(ctx)
		}
	}
}

// BearerMiddleware authenticates API requests carrying an encrypted access
// token in the Authorization header. Every rejection is a uniform 401.
func (a *RouteAuthenticator) BearerMiddleware() router.MiddlewareFunc {
	scheme := a.cfg.GetAuthScheme()
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			token, ok := bearerToken(ctx.GetString(router.HeaderAuthorization, ""), scheme)
			if !ok {
				return a.AuthErrorHandler(ctx, errors.New("Missing or malformed authorization header", errors.CategoryAuth).
					WithCode(errors.CodeUnauthorized))
			}

			user, err := a.tokens.ValidateAccessToken(ctx.Context(), token)
			if err != nil {
				return a.ErrorHandler(ctx, err)
			}
			if user == nil {
				return a.AuthErrorHandler(ctx, errors.New("Invalid access token", errors.CategoryAuth).
					WithCode(errors.CodeUnauthorized))
			}

			ctx.Locals(a.cfg.GetContextKey(), user)
			ctx.SetContext(WithContext(ctx.Context(), user))
			return hf(ctx)
		}
	}
}

func bearerToken(header, scheme string) (string, bool) {
	scheme = strings.TrimSpace(scheme)
	if scheme == "" || len(header) <= len(scheme)+1 {
		return "", false
	}
	if !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	return strings.TrimSpace(header[len(scheme):]), true
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error, redirecting to login",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect("/login", statusCode)
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}
