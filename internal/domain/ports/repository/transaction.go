package repository

import (
	"context"
	"time"

	"stagecall/internal/domain/model"
)

// -----------------------------
// Transactions (checkout attempts)
// -----------------------------

type TransactionRepository interface {
	Save(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Transaction, error)
	FindBySessionRef(ctx context.Context, tx Tx, sessionRef string) (*model.Transaction, error)

	// UpdateStatusIfPending atomically moves the transaction to a terminal
	// status only when it is still pending. Returns true when the row was
	// updated; false means another confirmation already landed.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, paidAt *time.Time) (bool, error)

	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Transaction, error)
	SumPaidByPeriod(ctx context.Context, tx Tx, period string) (int64, error)
}
