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

var _ repository.RequestRepository = (*requestRepo)(nil)

type requestRepo struct{ pool *pgxpool.Pool }

func NewRequestRepo(pool *pgxpool.Pool) *requestRepo {
	return &requestRepo{pool: pool}
}

const requestCols = `id, account_id, song_id, title, artist, requester_name, note, created_at, played_at, deleted_at`

// Save appends one request to the log. Requests are insert-only; played and
// deleted are marker updates, never row rewrites.
func (r *requestRepo) Save(ctx context.Context, tx repository.Tx, req *model.SongRequest) error {
	const q = `
INSERT INTO song_requests (
  id, account_id, song_id, title, artist, requester_name, note, created_at, played_at, deleted_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`

	_, err := execSQL(ctx, r.pool, tx, q, req.ID, req.AccountID, req.SongID, req.Title, req.Artist, req.RequesterName, req.Note, req.CreatedAt, req.PlayedAt, req.DeletedAt)
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

func (r *requestRepo) FindByID(ctx context.Context, tx repository.Tx, accountID, id string) (*model.SongRequest, error) {
	q := `SELECT ` + requestCols + ` FROM song_requests WHERE account_id=$1 AND id=$2 AND deleted_at IS NULL LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, accountID, id)
	if err != nil {
		return nil, err
	}
	return scanRequest(row)
}

func (r *requestRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, includePlayed bool, limit int) ([]*model.SongRequest, error) {
	q := `SELECT ` + requestCols + ` FROM song_requests WHERE account_id=$1 AND deleted_at IS NULL`
	if !includePlayed {
		q += ` AND played_at IS NULL`
	}
	q += ` ORDER BY created_at ASC LIMIT $2;`

	rows, err := queryRows(ctx, r.pool, tx, q, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SongRequest
	for rows.Next() {
		req := &model.SongRequest{}
		if err := rows.Scan(&req.ID, &req.AccountID, &req.SongID, &req.Title, &req.Artist, &req.RequesterName, &req.Note, &req.CreatedAt, &req.PlayedAt, &req.DeletedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, req)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

// CountForAccountBetween intentionally ignores deleted_at and played_at: the
// quota window counts every admitted submission, and dashboard cleanup must
// not reopen used allowance.
func (r *requestRepo) CountForAccountBetween(ctx context.Context, tx repository.Tx, accountID string, from, to time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM song_requests WHERE account_id=$1 AND created_at >= $2 AND created_at < $3;`
	row, err := pickRow(ctx, r.pool, tx, q, accountID, from, to)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *requestRepo) MarkPlayed(ctx context.Context, tx repository.Tx, accountID, id string, playedAt time.Time) (bool, error) {
	const q = `
UPDATE song_requests
   SET played_at = $3
 WHERE account_id = $1 AND id = $2
   AND played_at IS NULL AND deleted_at IS NULL;`

	cmd, err := execSQL(ctx, r.pool, tx, q, accountID, id, playedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *requestRepo) Delete(ctx context.Context, tx repository.Tx, accountID, id string) error {
	const q = `UPDATE song_requests SET deleted_at = NOW() WHERE account_id=$1 AND id=$2 AND deleted_at IS NULL;`
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

func (r *requestRepo) CountRequests(ctx context.Context, tx repository.Tx) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM song_requests;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func scanRequest(row pgx.Row) (*model.SongRequest, error) {
	req := &model.SongRequest{}
	if err := row.Scan(&req.ID, &req.AccountID, &req.SongID, &req.Title, &req.Artist, &req.RequesterName, &req.Note, &req.CreatedAt, &req.PlayedAt, &req.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return req, nil
}
