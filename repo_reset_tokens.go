package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PasswordResetTokens stores outstanding reset tokens. The table is keyed
// by the token text itself; expiry is enforced lazily by DeleteExpired
// sweeps before every read.
type PasswordResetTokens interface {
	Create(ctx context.Context, token *PasswordResetToken) error
	GetByToken(ctx context.Context, token string) (*PasswordResetToken, error)
	DeleteExpired(ctx context.Context, before time.Time) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
	DeleteAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
}

type passwordResetTokens struct {
	db *bun.DB
}

var _ PasswordResetTokens = (*passwordResetTokens)(nil)

// NewPasswordResetTokensRepository builds the token store over a bun
// database. The token column is a string primary key, which the generic
// uuid-keyed repository cannot model, so queries go through bun directly.
func NewPasswordResetTokensRepository(db *bun.DB) PasswordResetTokens {
	return &passwordResetTokens{db: db}
}

func (r *passwordResetTokens) Create(ctx context.Context, token *PasswordResetToken) error {
	if token == nil || token.Token == "" || token.UserID == uuid.Nil {
		return goerrors.New("reset token with token text and user id is required", goerrors.CategoryBadInput)
	}

	if _, err := r.db.NewInsert().Model(token).Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert password reset token")
	}
	return nil
}

// GetByToken returns the surviving row for token, or a not-found category
// error. Callers sweep expired rows first; this is a plain lookup.
func (r *passwordResetTokens) GetByToken(ctx context.Context, token string) (*PasswordResetToken, error) {
	record := &PasswordResetToken{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query password reset token")
	}
	return record, nil
}

func (r *passwordResetTokens) DeleteExpired(ctx context.Context, before time.Time) error {
	_, err := r.db.NewDelete().
		Model((*PasswordResetToken)(nil)).
		Where("?TableAlias.created_at < ?", before).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete expired reset tokens")
	}
	return nil
}

func (r *passwordResetTokens) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	return r.DeleteAllForUserTx(ctx, r.db, userID)
}

func (r *passwordResetTokens) DeleteAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*PasswordResetToken)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete reset tokens for user")
	}
	return nil
}
