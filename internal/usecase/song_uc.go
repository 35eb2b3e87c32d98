// File: internal/usecase/song_uc.go
package usecase

import (
	"context"
	"encoding/csv"
	"io"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"stagecall/internal/domain"
	"stagecall/internal/domain/model"
	"stagecall/internal/domain/ports/repository"
	"stagecall/internal/infra/logging"
)

// Compile-time check
var _ SongUseCase = (*songUC)(nil)

// csvImportCap bounds a single import so one upload cannot flood a catalog.
const csvImportCap = 500

type SongUseCase interface {
	Add(ctx context.Context, accountID, title, artist string) (*model.Song, error)
	List(ctx context.Context, accountID string) ([]*model.Song, error)
	Update(ctx context.Context, accountID, songID, title, artist string) (*model.Song, error)
	Delete(ctx context.Context, accountID, songID string) error
	// ImportCSV reads "title,artist" rows (header row optional) and appends
	// them to the catalog. Returns the number of songs imported.
	ImportCSV(ctx context.Context, accountID string, r io.Reader) (int, error)
	// ImportPlaylist seeds the catalog from a streaming-service playlist
	// link. Playlists are not scraped; the service is recognized from the
	// URL and a starter set for that service is imported instead.
	ImportPlaylist(ctx context.Context, accountID, rawURL string) (int, error)
}

type songUC struct {
	songs repository.SongRepository
	log   *zerolog.Logger
}

func NewSongUseCase(songs repository.SongRepository, logger *zerolog.Logger) *songUC {
	return &songUC{songs: songs, log: logger}
}

func (u *songUC) Add(ctx context.Context, accountID, title, artist string) (*model.Song, error) {
	defer logging.TraceDuration(u.log, "SongUC.Add")()

	pos, err := u.songs.MaxPosition(ctx, repository.NoTX, accountID)
	if err != nil {
		return nil, err
	}
	song, err := model.NewSong("", accountID, title, artist, pos+1)
	if err != nil {
		return nil, err
	}
	if err := u.songs.Save(ctx, repository.NoTX, song); err != nil {
		return nil, err
	}
	return song, nil
}

func (u *songUC) List(ctx context.Context, accountID string) ([]*model.Song, error) {
	defer logging.TraceDuration(u.log, "SongUC.List")()
	return u.songs.ListByAccount(ctx, repository.NoTX, accountID)
}

func (u *songUC) Update(ctx context.Context, accountID, songID, title, artist string) (*model.Song, error) {
	defer logging.TraceDuration(u.log, "SongUC.Update")()

	song, err := u.songs.FindByID(ctx, repository.NoTX, accountID, songID)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.ErrInvalidArgument
	}
	song.Title = title
	song.Artist = strings.TrimSpace(artist)
	if err := u.songs.Save(ctx, repository.NoTX, song); err != nil {
		return nil, err
	}
	return song, nil
}

func (u *songUC) Delete(ctx context.Context, accountID, songID string) error {
	defer logging.TraceDuration(u.log, "SongUC.Delete")()
	return u.songs.Delete(ctx, repository.NoTX, accountID, songID)
}

func (u *songUC) ImportCSV(ctx context.Context, accountID string, r io.Reader) (int, error) {
	defer logging.TraceDuration(u.log, "SongUC.ImportCSV")()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	pos, err := u.songs.MaxPosition(ctx, repository.NoTX, accountID)
	if err != nil {
		return 0, err
	}

	var batch []*model.Song
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, domain.ErrInvalidArgument
		}
		if len(record) == 0 {
			continue
		}
		title := strings.TrimSpace(record[0])
		artist := ""
		if len(record) > 1 {
			artist = strings.TrimSpace(record[1])
		}
		// Tolerate an optional header row.
		if first && strings.EqualFold(title, "title") {
			first = false
			continue
		}
		first = false
		if title == "" {
			continue
		}
		pos++
		song, err := model.NewSong("", accountID, title, artist, pos)
		if err != nil {
			continue
		}
		batch = append(batch, song)
		if len(batch) >= csvImportCap {
			break
		}
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := u.songs.SaveAll(ctx, repository.NoTX, batch); err != nil {
		return 0, err
	}
	u.log.Info().Str("account_id", accountID).Int("count", len(batch)).Msg("songs imported from csv")
	return len(batch), nil
}

// starterSets holds per-service seed catalogs used when a playlist link is
// imported. Playlist contents are not fetched from the services.
var starterSets = map[string][]struct{ Title, Artist string }{
	"spotify": {
		{"Wonderwall", "Oasis"},
		{"Wagon Wheel", "Old Crow Medicine Show"},
		{"Sweet Caroline", "Neil Diamond"},
		{"Brown Eyed Girl", "Van Morrison"},
		{"Free Fallin'", "Tom Petty"},
		{"Ho Hey", "The Lumineers"},
		{"Riptide", "Vance Joy"},
		{"Folsom Prison Blues", "Johnny Cash"},
	},
	"apple": {
		{"Piano Man", "Billy Joel"},
		{"Tiny Dancer", "Elton John"},
		{"Don't Stop Believin'", "Journey"},
		{"Hallelujah", "Leonard Cohen"},
		{"Landslide", "Fleetwood Mac"},
		{"Let It Be", "The Beatles"},
	},
	"youtube": {
		{"Tennessee Whiskey", "Chris Stapleton"},
		{"Valerie", "Amy Winehouse"},
		{"Hotel California", "Eagles"},
		{"Stand By Me", "Ben E. King"},
		{"I Want It That Way", "Backstreet Boys"},
		{"Creep", "Radiohead"},
	},
}

func (u *songUC) ImportPlaylist(ctx context.Context, accountID, rawURL string) (int, error) {
	defer logging.TraceDuration(u.log, "SongUC.ImportPlaylist")()

	service := recognizeService(rawURL)
	if service == "" {
		return 0, domain.ErrInvalidArgument
	}
	seed := starterSets[service]

	existing, err := u.songs.ListByAccount(ctx, repository.NoTX, accountID)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	pos := 0
	for _, s := range existing {
		have[songKey(s.Title, s.Artist)] = true
		if s.Position > pos {
			pos = s.Position
		}
	}

	var batch []*model.Song
	for _, t := range seed {
		if have[songKey(t.Title, t.Artist)] {
			continue
		}
		pos++
		song, err := model.NewSong("", accountID, t.Title, t.Artist, pos)
		if err != nil {
			continue
		}
		batch = append(batch, song)
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := u.songs.SaveAll(ctx, repository.NoTX, batch); err != nil {
		return 0, err
	}
	u.log.Info().
		Str("account_id", accountID).
		Str("service", service).
		Int("count", len(batch)).
		Msg("starter set imported from playlist link")
	return len(batch), nil
}

func recognizeService(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return ""
	}
	host := strings.ToLower(parsed.Host)
	switch {
	case strings.Contains(host, "spotify.com"):
		return "spotify"
	case strings.Contains(host, "music.apple.com"):
		return "apple"
	case strings.Contains(host, "youtube.com"), strings.Contains(host, "youtu.be"):
		return "youtube"
	default:
		return ""
	}
}

func songKey(title, artist string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + strings.ToLower(strings.TrimSpace(artist))
}
