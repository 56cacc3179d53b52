package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error

	Users() Users
	PasswordResetTokens() PasswordResetTokens
	SecurityEvents() SecurityEvents
}

type mngr struct {
	db          *bun.DB
	users       Users
	resetTokens PasswordResetTokens
	events      SecurityEvents
}

// NewRepositoryManager wires the three stores over one bun database.
func NewRepositoryManager(db *bun.DB, clock Clock) RepositoryManager {
	return &mngr{
		db:          db,
		users:       NewUsersRepository(db, clock),
		resetTokens: NewPasswordResetTokensRepository(db),
		events:      NewSecurityEventsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.resetTokens == nil {
		return errors.New("repository resetTokens should be initialized")
	}

	if m.events == nil {
		return errors.New("repository events should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) PasswordResetTokens() PasswordResetTokens {
	return m.resetTokens
}

func (m mngr) SecurityEvents() SecurityEvents {
	return m.events
}
