package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the user store. The auth subsystem reads by email or id and
// mutates only the credential fields, always under the revision guard.
type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUserID(ctx context.Context, id uuid.UUID) (*User, error)

	// UpdateCredentials persists password hash, security stamp, and
	// password-set time, bumping revision by exactly one. It fails with
	// ErrRevisionConflict when the row's revision no longer matches the
	// snapshot the caller read.
	UpdateCredentials(ctx context.Context, user *User) (*User, error)
	UpdateCredentialsTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db    *bun.DB
	clock Clock
}

var _ Users = (*users)(nil)

// NewUsersRepository builds the Users store over a bun database.
func NewUsersRepository(db *bun.DB, clock Clock) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	if clock == nil {
		clock = systemClock{}
	}

	return &users{
		Repository: repo,
		db:         db,
		clock:      clock,
	}
}

// GetByEmail looks up by exact email. Case folding is the caller's concern
// for rate-limit keys only; the data layer stays case-sensitive.
func (r *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.Repository.GetByIdentifier(ctx, email)
}

func (r *users) GetByUserID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.Repository.GetByID(ctx, id.String())
}

func (r *users) UpdateCredentials(ctx context.Context, user *User) (*User, error) {
	return r.UpdateCredentialsTx(ctx, r.db, user)
}

func (r *users) UpdateCredentialsTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, goerrors.New("user with id is required", goerrors.CategoryBadInput)
	}

	now := r.clock.Now()

	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", user.PasswordHash).
		Set("security_stamp = ?", user.SecurityStamp).
		Set("password_set_at = ?", user.PasswordSetAt).
		Set("revision = revision + 1").
		Set("updated_at = ?", now).
		Where("?TableAlias.id = ?", user.ID).
		Where("?TableAlias.revision = ?", user.Revision).
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user credentials")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read affected rows")
	}
	if rows == 0 {
		return nil, goerrors.New(ErrRevisionConflict.Message, ErrRevisionConflict.Category).
			WithTextCode(TextCodeRevisionConflict).
			WithMetadata(map[string]any{
				"user_id":  user.ID.String(),
				"revision": user.Revision,
			})
	}

	updated := *user
	updated.Revision = user.Revision + 1
	updated.UpdatedAt = &now
	return &updated, nil
}
