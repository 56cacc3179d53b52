package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// PrincipalClaims is the signed-in principal carried by the session cookie.
// Beyond the registered JWT claims it embeds the user id, security stamp,
// and revision so the cookie protocol can detect revoked or stale sessions
// without a server-side session record.
type PrincipalClaims struct {
	jwt.RegisteredClaims
	UID           string `json:"uid,omitempty"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	SecurityStamp string `json:"sst,omitempty"`
	Revision      int64  `json:"rev,omitempty"`
	Scheme        string `json:"sch,omitempty"`
}

// UserID returns the principal's user id claim.
func (c *PrincipalClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// UserUUID parses the user id claim.
func (c *PrincipalClaims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID())
}

// ClaimsBuilder constructs a principal from the full current user record.
type ClaimsBuilder interface {
	BuildPrincipal(user *User, schemeName string) (*PrincipalClaims, error)
}

// ClaimsBuilderFunc adapts a function into a ClaimsBuilder.
type ClaimsBuilderFunc func(user *User, schemeName string) (*PrincipalClaims, error)

// BuildPrincipal satisfies the ClaimsBuilder interface.
func (f ClaimsBuilderFunc) BuildPrincipal(user *User, schemeName string) (*PrincipalClaims, error) {
	if f == nil {
		return nil, goerrors.New("claims builder is not configured", goerrors.CategoryInternal)
	}
	return f(user, schemeName)
}

// ClaimsMint builds, signs, and parses principals. It is both the default
// ClaimsBuilder and the codec between PrincipalClaims and the cookie text.
type ClaimsMint struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	ttl        time.Duration
	clock      Clock
}

// NewClaimsMint creates a mint from configuration.
func NewClaimsMint(opts Config) *ClaimsMint {
	ttl := opts.GetAccessTokenTTL()
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	return &ClaimsMint{
		signingKey: []byte(opts.GetSigningKey()),
		issuer:     opts.GetIssuer(),
		audience:   opts.GetAudience(),
		ttl:        ttl,
		clock:      systemClock{},
	}
}

func (m *ClaimsMint) WithClock(clock Clock) *ClaimsMint {
	if clock != nil {
		m.clock = clock
	}
	return m
}

// BuildPrincipal implements ClaimsBuilder from the full user record. The
// embedded revision is the user's current one, which is what marks older
// cookies as refreshable.
func (m *ClaimsMint) BuildPrincipal(user *User, schemeName string) (*PrincipalClaims, error) {
	if user == nil {
		return nil, goerrors.New("a user is required to build a principal", goerrors.CategoryBadInput)
	}

	now := m.clock.Now()
	return &PrincipalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.ID.String(),
			Audience:  m.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
		UID:           user.ID.String(),
		Name:          user.Name,
		Email:         user.Email,
		SecurityStamp: user.SecurityStamp,
		Revision:      user.Revision,
		Scheme:        schemeName,
	}, nil
}

// Sign serializes claims into signed cookie text.
func (m *ClaimsMint) Sign(claims *PrincipalClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign principal")
	}
	return signed, nil
}

// Parse validates signed cookie text and returns the embedded claims.
func (m *ClaimsMint) Parse(tokenString string) (*PrincipalClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 3)
	parserOptions = append(parserOptions, jwt.WithTimeFunc(m.clock.Now))
	if m.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(m.issuer))
	}
	if len(m.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(m.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &PrincipalClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, goerrors.New("unexpected signing method", goerrors.CategoryAuth)
		}
		return m.signingKey, nil
	}, parserOptions...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "failed to parse principal")
	}

	claims, ok := token.Claims.(*PrincipalClaims)
	if !ok || !token.Valid {
		return nil, goerrors.New("unable to decode principal claims", goerrors.CategoryAuth)
	}
	return claims, nil
}

var _ ClaimsBuilder = (*ClaimsMint)(nil)
