package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"stagecall/internal/domain"
	"stagecall/internal/domain/model"
	"stagecall/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*accountRepo)(nil)

type accountRepo struct{ pool *pgxpool.Pool }

func NewAccountRepo(pool *pgxpool.Pool) *accountRepo {
	return &accountRepo{pool: pool}
}

const accountCols = `id, email, password_hash, display_name, slug, welcome_message, theme_color, tip_link, created_at, subscription_ends_at, billing_customer_ref`

// Save upserts the profile fields. created_at is written once and never
// updated; subscription_ends_at and billing_customer_ref are excluded from
// the update entirely because they are owned by the payment confirmation
// path and a stale in-memory account must not clobber a concurrent grant.
func (r *accountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (
  id, email, password_hash, display_name, slug, welcome_message, theme_color, tip_link, created_at, subscription_ends_at, billing_customer_ref
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (id) DO UPDATE SET
  email=$2, password_hash=$3, display_name=$4, slug=$5, welcome_message=$6, theme_color=$7, tip_link=$8;`

	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.Email, a.PasswordHash, a.DisplayName, a.Slug, a.WelcomeMessage, a.ThemeColor, a.TipLink, a.CreatedAt, a.SubscriptionEndsAt, a.BillingCustomerRef)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *accountRepo) findOne(ctx context.Context, tx repository.Tx, where string, arg interface{}) (*model.Account, error) {
	q := `SELECT ` + accountCols + ` FROM accounts WHERE ` + where + ` LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}

	a := &model.Account{}
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.Slug, &a.WelcomeMessage, &a.ThemeColor, &a.TipLink, &a.CreatedAt, &a.SubscriptionEndsAt, &a.BillingCustomerRef); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return a, nil
}

func (r *accountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	return r.findOne(ctx, tx, "id=$1", id)
}

func (r *accountRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.Account, error) {
	return r.findOne(ctx, tx, "email=$1", email)
}

func (r *accountRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Account, error) {
	return r.findOne(ctx, tx, "slug=$1", slug)
}

// ExtendSubscriptionIfInactive is the idempotency boundary for payment
// confirmation: the WHERE clause makes "already active" a no-op so two
// racing confirmations can never stack subscription time.
func (r *accountRepo) ExtendSubscriptionIfInactive(ctx context.Context, tx repository.Tx, id string, until, now time.Time) (bool, error) {
	const q = `
UPDATE accounts
   SET subscription_ends_at = $2
 WHERE id = $1
   AND (subscription_ends_at IS NULL OR subscription_ends_at <= $3);`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, until, now)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *accountRepo) SetBillingCustomerRefIfEmpty(ctx context.Context, tx repository.Tx, id, ref string) (bool, error) {
	const q = `UPDATE accounts SET billing_customer_ref=$2 WHERE id=$1 AND billing_customer_ref IS NULL;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, ref)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *accountRepo) CountAccounts(ctx context.Context, tx repository.Tx) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM accounts;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *accountRepo) CountActiveSubscriptions(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM accounts WHERE subscription_ends_at > $1;`, now)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}
