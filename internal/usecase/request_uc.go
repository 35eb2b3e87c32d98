// File: internal/usecase/request_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stagecall/internal/domain"
	"stagecall/internal/domain/model"
	"stagecall/internal/domain/ports/repository"
	"stagecall/internal/infra/logging"
)

// Compile-time check
var _ RequestUseCase = (*requestUC)(nil)

// RequestUseCase owns the request log: audience submissions on the public
// page and the performer's dashboard over them.
type RequestUseCase interface {
	// Submit runs the admission gate and, if admitted, appends the request
	// to the log. The entitlement snapshot is returned in every outcome so
	// the transport can render quota state; on denial err is
	// ErrRequestQuotaExceeded and the request is nil.
	//
	// The gate's count and the insert below are not one atomic step: two
	// submissions racing at the quota boundary can both pass the count and
	// overshoot the limit by one. Accepted; see EntitlementUseCase.
	Submit(ctx context.Context, slug string, in SubmitInput) (*model.SongRequest, model.Entitlement, error)
	List(ctx context.Context, accountID string, includePlayed bool, limit int) ([]*model.SongRequest, error)
	MarkPlayed(ctx context.Context, accountID, requestID string) error
	Delete(ctx context.Context, accountID, requestID string) error
}

// SubmitInput is one audience submission. SongID picks a catalog song (its
// title/artist are copied onto the request); otherwise Title/Artist are
// free text and Title must be non-empty.
type SubmitInput struct {
	SongID        string
	Title         string
	Artist        string
	RequesterName string
	Note          string
}

type requestUC struct {
	accounts    repository.AccountRepository
	songs       repository.SongRepository
	requests    repository.RequestRepository
	entitlement EntitlementUseCase
	log         *zerolog.Logger
}

func NewRequestUseCase(
	accounts repository.AccountRepository,
	songs repository.SongRepository,
	requests repository.RequestRepository,
	entitlement EntitlementUseCase,
	logger *zerolog.Logger,
) *requestUC {
	return &requestUC{
		accounts:    accounts,
		songs:       songs,
		requests:    requests,
		entitlement: entitlement,
		log:         logger,
	}
}

func (u *requestUC) Submit(ctx context.Context, slug string, in SubmitInput) (*model.SongRequest, model.Entitlement, error) {
	defer logging.TraceDuration(u.log, "RequestUC.Submit")()

	acct, err := u.accounts.FindBySlug(ctx, repository.NoTX, slug)
	if err != nil {
		return nil, model.Entitlement{}, err
	}

	ent, err := u.entitlement.AdmitRequest(ctx, acct.ID)
	if err != nil {
		return nil, ent, err
	}

	title := in.Title
	artist := in.Artist
	var songID *string
	if in.SongID != "" {
		song, err := u.songs.FindByID(ctx, repository.NoTX, acct.ID, in.SongID)
		if err != nil {
			return nil, ent, err
		}
		title = song.Title
		artist = song.Artist
		songID = &song.ID
	}

	req, err := model.NewSongRequest(acct.ID, songID, title, artist, in.RequesterName, in.Note)
	if err != nil {
		return nil, ent, err
	}
	if err := u.requests.Save(ctx, repository.NoTX, req); err != nil {
		return nil, ent, err
	}

	u.log.Info().
		Str("account_id", acct.ID).
		Str("request_id", req.ID).
		Str("plan", string(ent.Plan)).
		Msg("request admitted")
	return req, ent, nil
}

func (u *requestUC) List(ctx context.Context, accountID string, includePlayed bool, limit int) ([]*model.SongRequest, error) {
	defer logging.TraceDuration(u.log, "RequestUC.List")()

	if limit <= 0 || limit > 200 {
		limit = 200
	}
	return u.requests.ListByAccount(ctx, repository.NoTX, accountID, includePlayed, limit)
}

func (u *requestUC) MarkPlayed(ctx context.Context, accountID, requestID string) error {
	defer logging.TraceDuration(u.log, "RequestUC.MarkPlayed")()

	changed, err := u.requests.MarkPlayed(ctx, repository.NoTX, accountID, requestID, time.Now())
	if err != nil {
		return err
	}
	if changed {
		return nil
	}
	// Not updated: either unknown/foreign, or already played. The latter is
	// a benign repeat from a double-tapped dashboard button.
	req, err := u.requests.FindByID(ctx, repository.NoTX, accountID, requestID)
	if err != nil {
		return err
	}
	if req.Played() {
		return nil
	}
	return domain.ErrNotFound
}

func (u *requestUC) Delete(ctx context.Context, accountID, requestID string) error {
	defer logging.TraceDuration(u.log, "RequestUC.Delete")()
	return u.requests.Delete(ctx, repository.NoTX, accountID, requestID)
}
