package model

import (
	"strings"
	"time"

	"stagecall/internal/domain"

	"github.com/google/uuid"
)

// Song is one catalog entry in a performer's repertoire.
type Song struct {
	ID        string // UUID
	AccountID string // UUID
	Title     string
	Artist    string
	Position  int // display order on the public page
	CreatedAt time.Time
}

func NewSong(id, accountID, title, artist string, position int) (*Song, error) {
	if id == "" {
		id = uuid.NewString()
	}
	title = strings.TrimSpace(title)
	if accountID == "" || title == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Song{
		ID:        id,
		AccountID: accountID,
		Title:     title,
		Artist:    strings.TrimSpace(artist),
		Position:  position,
		CreatedAt: time.Now(),
	}, nil
}
