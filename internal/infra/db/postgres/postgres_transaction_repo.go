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

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const transactionCols = `id, account_id, amount, currency, session_ref, subscription_type, payment_status, created_at, updated_at, paid_at`

// Save inserts a new checkout attempt. The session_ref unique constraint is
// the guard against recording the same processor session twice.
func (r *transactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (
  id, account_id, amount, currency, session_ref, subscription_type, payment_status, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
) ON CONFLICT (id) DO UPDATE SET
  payment_status=$7, updated_at=$9, paid_at=$10;`

	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.AccountID, t.Amount, t.Currency, t.SessionRef, t.SubscriptionType, t.PaymentStatus, t.CreatedAt, t.UpdatedAt, t.PaidAt)
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

func (r *transactionRepo) findOne(ctx context.Context, tx repository.Tx, where string, arg interface{}) (*model.Transaction, error) {
	q := `SELECT ` + transactionCols + ` FROM transactions WHERE ` + where + ` LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}

	t := &model.Transaction{}
	if err := row.Scan(&t.ID, &t.AccountID, &t.Amount, &t.Currency, &t.SessionRef, &t.SubscriptionType, &t.PaymentStatus, &t.CreatedAt, &t.UpdatedAt, &t.PaidAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}

func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	return r.findOne(ctx, tx, "id=$1", id)
}

func (r *transactionRepo) FindBySessionRef(ctx context.Context, tx repository.Tx, sessionRef string) (*model.Transaction, error) {
	return r.findOne(ctx, tx, "session_ref=$1", sessionRef)
}

// UpdateStatusIfPending flips a pending transaction to a terminal status.
// The WHERE clause makes the pending -> terminal move happen at most once no
// matter how many confirmation paths race on the same session.
func (r *transactionRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paidAt *time.Time) (bool, error) {
	const q = `
UPDATE transactions
   SET payment_status = $2, paid_at = $3, updated_at = NOW()
 WHERE id = $1
   AND payment_status = 'pending';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, status, paidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *transactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	q := `SELECT ` + transactionCols + ` FROM transactions WHERE payment_status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		t := &model.Transaction{}
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &t.Currency, &t.SessionRef, &t.SubscriptionType, &t.PaymentStatus, &t.CreatedAt, &t.UpdatedAt, &t.PaidAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

// SumPaidByPeriod totals paid amounts for "day", "month" or "all". The
// period doubles as the DATE_TRUNC argument, so only those three values are
// accepted.
func (r *transactionRepo) SumPaidByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	var (
		row pgx.Row
		err error
	)
	switch period {
	case "all":
		row, err = pickRow(ctx, r.pool, tx, `SELECT COALESCE(SUM(amount),0) FROM transactions WHERE payment_status='paid';`)
	case "day", "month":
		row, err = pickRow(ctx, r.pool, tx, `SELECT COALESCE(SUM(amount),0) FROM transactions WHERE payment_status='paid' AND paid_at >= DATE_TRUNC($1, NOW());`, period)
	default:
		return 0, domain.ErrInvalidArgument
	}
	if err != nil {
		return 0, err
	}

	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return total, nil
}
