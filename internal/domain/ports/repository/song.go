package repository

import (
	"context"

	"stagecall/internal/domain/model"
)

// -----------------------------
// Songs
// -----------------------------

type SongRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Song) error
	SaveAll(ctx context.Context, tx Tx, songs []*model.Song) error
	FindByID(ctx context.Context, tx Tx, accountID, id string) (*model.Song, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string) ([]*model.Song, error)
	Delete(ctx context.Context, tx Tx, accountID, id string) error
	MaxPosition(ctx context.Context, tx Tx, accountID string) (int, error)
}
