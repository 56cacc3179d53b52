package auth

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// SimpleConfig is a value-based Config implementation for callers that do
// not bring their own configuration layer.
type SimpleConfig struct {
	// TokenKey is the master key for the access-token codec. Minimum 16
	// bytes; 32 bytes recommended.
	TokenKey []byte

	// SigningKey signs the session-principal JWT.
	SigningKey string

	// Issuer and Audience are stamped into every principal.
	Issuer   string
	Audience []string

	// AuthScheme is the Authorization header scheme.
	// Default: "Bearer".
	AuthScheme string

	// ContextKey names the session cookie and the router local.
	// Default: "auth_session".
	ContextKey string

	// AccessTokenTTL bounds the life of an encrypted access token.
	// Default: 24 hours. Tokens are never renewed.
	AccessTokenTTL time.Duration

	// ResetTokenTTL bounds the life of a password-reset token.
	// Default: 24 hours.
	ResetTokenTTL time.Duration

	// AuthLimit throttles password attempts per normalized email.
	// Default: 10 per 15 minutes.
	AuthLimit Limit

	// ResetLimit throttles reset-link requests per normalized email.
	// Default: 3 per hour.
	ResetLimit Limit

	// GlobalResetLimit throttles reset-link requests across all emails.
	// Default: 100 per hour.
	GlobalResetLimit Limit
}

// DefaultConfig returns a SimpleConfig with sensible defaults.
func DefaultConfig(tokenKey []byte, signingKey string) SimpleConfig {
	return SimpleConfig{
		TokenKey:         tokenKey,
		SigningKey:       signingKey,
		AuthScheme:       "Bearer",
		ContextKey:       "auth_session",
		AccessTokenTTL:   24 * time.Hour,
		ResetTokenTTL:    24 * time.Hour,
		AuthLimit:        Limit{Events: 10, Window: 15 * time.Minute},
		ResetLimit:       Limit{Events: 3, Window: time.Hour},
		GlobalResetLimit: Limit{Events: 100, Window: time.Hour},
	}
}

// Validate will run validation rules
func (c SimpleConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(
			&c.TokenKey,
			validation.Required,
			validation.By(validateKeyLength),
		),
		validation.Field(
			&c.SigningKey,
			validation.Required,
			validation.Length(16, 0),
		),
	)
}

func validateKeyLength(value any) error {
	key, _ := value.([]byte)
	if len(key) < 16 {
		return fmt.Errorf("must be at least 16 bytes, got %d", len(key))
	}
	return nil
}

func (c SimpleConfig) GetTokenKey() []byte   { return c.TokenKey }
func (c SimpleConfig) GetSigningKey() string { return c.SigningKey }
func (c SimpleConfig) GetIssuer() string     { return c.Issuer }
func (c SimpleConfig) GetAudience() []string { return c.Audience }

func (c SimpleConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c SimpleConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "auth_session"
	}
	return c.ContextKey
}

func (c SimpleConfig) GetAccessTokenTTL() time.Duration {
	if c.AccessTokenTTL <= 0 {
		return 24 * time.Hour
	}
	return c.AccessTokenTTL
}

func (c SimpleConfig) GetResetTokenTTL() time.Duration {
	if c.ResetTokenTTL <= 0 {
		return 24 * time.Hour
	}
	return c.ResetTokenTTL
}

func (c SimpleConfig) GetAuthLimit() Limit {
	if c.AuthLimit.Events <= 0 {
		return Limit{Events: 10, Window: 15 * time.Minute}
	}
	return c.AuthLimit
}

func (c SimpleConfig) GetResetLimit() Limit {
	if c.ResetLimit.Events <= 0 {
		return Limit{Events: 3, Window: time.Hour}
	}
	return c.ResetLimit
}

func (c SimpleConfig) GetGlobalResetLimit() Limit {
	if c.GlobalResetLimit.Events <= 0 {
		return Limit{Events: 100, Window: time.Hour}
	}
	return c.GlobalResetLimit
}

var _ Config = SimpleConfig{}
