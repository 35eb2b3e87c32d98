package repository

import (
	"context"
	"time"

	"stagecall/internal/domain/model"
)

// -----------------------------
// Accounts
// -----------------------------

type AccountRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Account) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Account, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.Account, error)
	FindBySlug(ctx context.Context, tx Tx, slug string) (*model.Account, error)

	// ExtendSubscriptionIfInactive atomically sets subscription_ends_at to
	// `until` only when no paid period currently covers `now`. Returns true
	// when a row was updated; false means the subscription was already
	// active and the call was a no-op.
	ExtendSubscriptionIfInactive(ctx context.Context, tx Tx, id string, until, now time.Time) (bool, error)

	// SetBillingCustomerRefIfEmpty stores the processor customer id only if
	// none is recorded yet. The ref is written at most once per account.
	SetBillingCustomerRefIfEmpty(ctx context.Context, tx Tx, id, ref string) (bool, error)

	CountAccounts(ctx context.Context, tx Tx) (int, error)
	CountActiveSubscriptions(ctx context.Context, tx Tx, now time.Time) (int, error)
}
