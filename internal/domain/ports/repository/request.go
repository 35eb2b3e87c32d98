package repository

import (
	"context"
	"time"

	"stagecall/internal/domain/model"
)

// -----------------------------
// Song requests
// -----------------------------

type RequestRepository interface {
	Save(ctx context.Context, tx Tx, r *model.SongRequest) error
	FindByID(ctx context.Context, tx Tx, accountID, id string) (*model.SongRequest, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string, includePlayed bool, limit int) ([]*model.SongRequest, error)

	// CountForAccountBetween counts requests created in [from, to),
	// including soft-deleted ones. This is the only read the entitlement
	// evaluator performs against the log.
	CountForAccountBetween(ctx context.Context, tx Tx, accountID string, from, to time.Time) (int, error)

	MarkPlayed(ctx context.Context, tx Tx, accountID, id string, playedAt time.Time) (bool, error)
	// Delete is a soft delete: the row is hidden from listings but keeps
	// counting toward the quota window it was created in.
	Delete(ctx context.Context, tx Tx, accountID, id string) error
	CountRequests(ctx context.Context, tx Tx) (int, error)
}
