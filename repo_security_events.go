package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SecurityEvents is the append-only audit store.
type SecurityEvents interface {
	Append(ctx context.Context, event *SecurityEvent) error
	AppendTx(ctx context.Context, tx bun.IDB, event *SecurityEvent) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]SecurityEvent, error)
}

type securityEvents struct {
	db *bun.DB
}

var _ SecurityEvents = (*securityEvents)(nil)

// NewSecurityEventsRepository builds the audit store over a bun database.
func NewSecurityEventsRepository(db *bun.DB) SecurityEvents {
	return &securityEvents{db: db}
}

func (r *securityEvents) Append(ctx context.Context, event *SecurityEvent) error {
	return r.AppendTx(ctx, r.db, event)
}

func (r *securityEvents) AppendTx(ctx context.Context, tx bun.IDB, event *SecurityEvent) error {
	if event == nil || event.Name == "" {
		return goerrors.New("security event with a name is required", goerrors.CategoryBadInput)
	}

	if _, err := tx.NewInsert().Model(event).Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert security event")
	}
	return nil
}

// ListForUser returns the most recent events for a user, newest first.
func (r *securityEvents) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]SecurityEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var events []SecurityEvent
	err := r.db.NewSelect().
		Model(&events).
		Where("?TableAlias.user_id = ?", userID).
		OrderExpr("?TableAlias.occurred_at DESC, ?TableAlias.id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list security events")
	}
	return events, nil
}
