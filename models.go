package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the identity record. The auth subsystem never creates or deletes
// users; it only mutates the credential fields (password hash, security
// stamp, password-created timestamp) together with a revision bump.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Name          string     `bun:"name" json:"name,omitempty"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	PasswordSetAt *time.Time `bun:"password_set_at,nullzero" json:"password_set_at,omitempty"`

	// SecurityStamp is rotated whenever credentials change; sessions and
	// bearer tokens stamped with an older value are invalid.
	SecurityStamp string `bun:"security_stamp" json:"-"`
	// Revision increases on every mutation. It backs both optimistic
	// concurrency at write time and staleness detection on cached claims.
	Revision int64 `bun:"revision,notnull,default:0" json:"revision,omitempty"`

	DeactivatedAt *time.Time `bun:"deactivated_at,nullzero" json:"deactivated_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasPassword reports whether the user has a stored password. Freshly
// provisioned users may not.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// Deactivated reports whether the account has been deactivated.
func (u *User) Deactivated() bool {
	return u != nil && u.DeactivatedAt != nil
}

// PasswordResetToken is a single-use, time-boxed secret mailed to a user.
// All of a user's outstanding tokens are deleted when any password change
// succeeds.
type PasswordResetToken struct {
	bun.BaseModel `bun:"table:password_reset_tokens,alias:prt"`

	Token     string    `bun:"token,pk" json:"-"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at,omitempty"`
}

// SecurityEventName is the closed vocabulary of audited outcomes.
type SecurityEventName string

const (
	EventAuthSuccess                  SecurityEventName = "authentication_success"
	EventAuthFailureRateLimit         SecurityEventName = "authentication_failure:rate_limit_exceeded"
	EventAuthFailureUnrecognizedEmail SecurityEventName = "authentication_failure:unrecognized_email"
	EventAuthFailureNoPassword        SecurityEventName = "authentication_failure:no_password_set"
	EventAuthFailureIncorrectPassword SecurityEventName = "authentication_failure:incorrect_password"
	EventAuthFailureDeactivated       SecurityEventName = "authentication_failure:deactivated_account"

	EventPasswordChangeSuccess            SecurityEventName = "password_change_success"
	EventPasswordChangeFailureNoPassword  SecurityEventName = "password_change_failure:no_password_set"
	EventPasswordChangeFailureIncorrect   SecurityEventName = "password_change_failure:incorrect_password"
	EventPasswordResetSuccess             SecurityEventName = "password_reset_success"
	EventPasswordResetLinkSent            SecurityEventName = "password_reset_link_sent"
	EventPasswordResetFailureInvalidToken SecurityEventName = "password_reset_failure:invalid_token"
	EventPasswordResetFailureRateLimit    SecurityEventName = "password_reset_failure:rate_limit_exceeded"
	EventPasswordResetFailureUnrecognized SecurityEventName = "password_reset_failure:unrecognized_email"

	EventAccessTokenIssued SecurityEventName = "access_token_issued"
	EventSignIn            SecurityEventName = "sign_in"
	EventSignOut           SecurityEventName = "sign_out"
)

// SecurityEvent is an append-only audit record: one row per state
// transition in the password and sign-in flows.
type SecurityEvent struct {
	bun.BaseModel `bun:"table:security_events,alias:sev"`

	ID         int64             `bun:"id,pk,autoincrement" json:"id,omitempty"`
	OccurredAt time.Time         `bun:"occurred_at,notnull" json:"occurred_at,omitempty"`
	Name       SecurityEventName `bun:"name,notnull" json:"name,omitempty"`
	ClientIP   string            `bun:"client_ip" json:"client_ip,omitempty"`
	UserID     *uuid.UUID        `bun:"user_id,nullzero,type:uuid" json:"user_id,omitempty"`
}
