package model

import (
	"strings"
	"time"

	"stagecall/internal/domain"

	"github.com/oklog/ulid/v2"
)

// SongRequest is one audience submission against a performer's public page.
// IDs are ULIDs so the request log sorts by creation time. Title/Artist are
// denormalized at submission time: quota accounting counts rows by
// (AccountID, CreatedAt) and must not depend on catalog rows that may be
// edited or deleted later. Marking a request played or deleting it never
// removes it from the quota count.
type SongRequest struct {
	ID        string // ULID
	AccountID string // UUID of the performer account
	SongID    *string

	Title         string
	Artist        string
	RequesterName string
	Note          string

	CreatedAt time.Time
	PlayedAt  *time.Time
	// DeletedAt hides the request from listings without touching quota
	// accounting; rows are never hard-deleted.
	DeletedAt *time.Time
}

func NewSongRequest(accountID string, songID *string, title, artist, requesterName, note string) (*SongRequest, error) {
	title = strings.TrimSpace(title)
	if accountID == "" || title == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &SongRequest{
		ID:            ulid.Make().String(),
		AccountID:     accountID,
		SongID:        songID,
		Title:         title,
		Artist:        strings.TrimSpace(artist),
		RequesterName: strings.TrimSpace(requesterName),
		Note:          strings.TrimSpace(note),
		CreatedAt:     time.Now(),
	}, nil
}

func (r *SongRequest) Played() bool { return r.PlayedAt != nil }
