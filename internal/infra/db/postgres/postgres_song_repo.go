package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"stagecall/internal/domain"
	"stagecall/internal/domain/model"
	"stagecall/internal/domain/ports/repository"
)

var _ repository.SongRepository = (*songRepo)(nil)

type songRepo struct{ pool *pgxpool.Pool }

func NewSongRepo(pool *pgxpool.Pool) *songRepo {
	return &songRepo{pool: pool}
}

const songCols = `id, account_id, title, artist, position, created_at`

func (r *songRepo) Save(ctx context.Context, tx repository.Tx, s *model.Song) error {
	const q = `
INSERT INTO songs (id, account_id, title, artist, position, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET title=$3, artist=$4, position=$5;`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.AccountID, s.Title, s.Artist, s.Position, s.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// SaveAll writes imports row by row; callers wrap it in a transaction when
// the batch must land atomically.
func (r *songRepo) SaveAll(ctx context.Context, tx repository.Tx, songs []*model.Song) error {
	for _, s := range songs {
		if err := r.Save(ctx, tx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *songRepo) FindByID(ctx context.Context, tx repository.Tx, accountID, id string) (*model.Song, error) {
	q := `SELECT ` + songCols + ` FROM songs WHERE account_id=$1 AND id=$2 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, accountID, id)
	if err != nil {
		return nil, err
	}

	s := &model.Song{}
	if err := row.Scan(&s.ID, &s.AccountID, &s.Title, &s.Artist, &s.Position, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func (r *songRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.Song, error) {
	q := `SELECT ` + songCols + ` FROM songs WHERE account_id=$1 ORDER BY position ASC, created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Song
	for rows.Next() {
		s := &model.Song{}
		if err := rows.Scan(&s.ID, &s.AccountID, &s.Title, &s.Artist, &s.Position, &s.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

// Delete removes the catalog row outright. Requests that referenced the song
// keep their denormalized title/artist, so history survives the delete.
func (r *songRepo) Delete(ctx context.Context, tx repository.Tx, accountID, id string) error {
	const q = `DELETE FROM songs WHERE account_id=$1 AND id=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, accountID, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *songRepo) MaxPosition(ctx context.Context, tx repository.Tx, accountID string) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COALESCE(MAX(position),0) FROM songs WHERE account_id=$1;`, accountID)
	if err != nil {
		return 0, err
	}
	var max int
	if err := row.Scan(&max); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return max, nil
}
