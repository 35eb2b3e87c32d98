package web

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"stagecall/internal/domain"
	"stagecall/internal/domain/model"
	"stagecall/internal/infra/qr"
	"stagecall/internal/usecase"
)

var validate = validator.New()

// importBodyLimit caps catalog uploads; a full set list is a few KB.
const importBodyLimit = 1 << 20

// ---- JSON shapes ----

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"required,max=120"`
	Slug        string `json:"slug" validate:"omitempty,max=60"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type settingsRequest struct {
	DisplayName    *string `json:"display_name"`
	WelcomeMessage *string `json:"welcome_message"`
	ThemeColor     *string `json:"theme_color"`
	TipLink        *string `json:"tip_link"`
}

type accountResponse struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	DisplayName        string     `json:"display_name"`
	Slug               string     `json:"slug"`
	WelcomeMessage     string     `json:"welcome_message"`
	ThemeColor         string     `json:"theme_color"`
	TipLink            string     `json:"tip_link"`
	CreatedAt          time.Time  `json:"created_at"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at"`
}

func toAccountResponse(a *model.Account) accountResponse {
	return accountResponse{
		ID:                 a.ID,
		Email:              a.Email,
		DisplayName:        a.DisplayName,
		Slug:               a.Slug,
		WelcomeMessage:     a.WelcomeMessage,
		ThemeColor:         a.ThemeColor,
		TipLink:            a.TipLink,
		CreatedAt:          a.CreatedAt,
		SubscriptionEndsAt: a.SubscriptionEndsAt,
	}
}

type songResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Position int    `json:"position"`
}

func toSongResponse(s *model.Song) songResponse {
	return songResponse{ID: s.ID, Title: s.Title, Artist: s.Artist, Position: s.Position}
}

func toSongResponses(songs []*model.Song) []songResponse {
	out := make([]songResponse, 0, len(songs))
	for _, s := range songs {
		out = append(out, toSongResponse(s))
	}
	return out
}

type requestResponse struct {
	ID            string     `json:"id"`
	SongID        *string    `json:"song_id"`
	Title         string     `json:"title"`
	Artist        string     `json:"artist"`
	RequesterName string     `json:"requester_name"`
	Note          string     `json:"note"`
	CreatedAt     time.Time  `json:"created_at"`
	PlayedAt      *time.Time `json:"played_at"`
}

func toRequestResponse(r *model.SongRequest) requestResponse {
	return requestResponse{
		ID:            r.ID,
		SongID:        r.SongID,
		Title:         r.Title,
		Artist:        r.Artist,
		RequesterName: r.RequesterName,
		Note:          r.Note,
		CreatedAt:     r.CreatedAt,
		PlayedAt:      r.PlayedAt,
	}
}

// ---- Auth handlers ----

func registerHandler(accountUC usecase.AccountUseCase, auth *AuthManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}

		acct, err := accountUC.Register(r.Context(), usecase.RegisterInput{
			Email:       req.Email,
			Password:    req.Password,
			DisplayName: req.DisplayName,
			Slug:        req.Slug,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		token, err := auth.Mint(w, acct.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, struct {
			Token   string          `json:"token"`
			Account accountResponse `json:"account"`
		}{Token: token, Account: toAccountResponse(acct)})
	}
}

func loginHandler(accountUC usecase.AccountUseCase, auth *AuthManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, domain.ErrInvalidCredentials)
			return
		}

		acct, err := accountUC.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		token, err := auth.Mint(w, acct.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Token   string          `json:"token"`
			Account accountResponse `json:"account"`
		}{Token: token, Account: toAccountResponse(acct)})
	}
}

func logoutHandler(auth *AuthManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---- Profile handlers ----

func meHandler(accountUC usecase.AccountUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, err := accountUC.Profile(r.Context(), AccountID(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAccountResponse(acct))
	}
}

func meSettingsHandler(accountUC usecase.AccountUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}

		acct, err := accountUC.UpdateSettings(r.Context(), AccountID(r.Context()), usecase.SettingsInput{
			DisplayName:    req.DisplayName,
			WelcomeMessage: req.WelcomeMessage,
			ThemeColor:     req.ThemeColor,
			TipLink:        req.TipLink,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAccountResponse(acct))
	}
}

func meEntitlementHandler(entitlementUC usecase.EntitlementUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ent, err := entitlementUC.EvaluateByID(r.Context(), AccountID(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ent)
	}
}

func meQRHandler(accountUC usecase.AccountUseCase, gen *qr.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, err := accountUC.Profile(r.Context(), AccountID(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))
		png, err := gen.PagePNG(acct.Slug, size)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(png)
	}
}

func meFlyerHandler(accountUC usecase.AccountUseCase, gen *qr.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, err := accountUC.Profile(r.Context(), AccountID(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		pdf, err := gen.FlyerPDF(acct.DisplayName, acct.Slug)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", acct.Slug+"-flyer.pdf"))
		_, _ = w.Write(pdf)
	}
}

// ---- Song catalog handlers ----

type songRequest struct {
	Title  string `json:"title" validate:"required,max=200"`
	Artist string `json:"artist" validate:"max=200"`
}

func songsListHandler(songUC usecase.SongUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		songs, err := songUC.List(r.Context(), AccountID(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Data []songResponse `json:"data"`
		}{Data: toSongResponses(songs)})
	}
}

func songCreateHandler(songUC usecase.SongUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req songRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		song, err := songUC.Add(r.Context(), AccountID(r.Context()), req.Title, req.Artist)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSongResponse(song))
	}
}

func songUpdateHandler(songUC usecase.SongUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req songRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		song, err := songUC.Update(r.Context(), AccountID(r.Context()), chi.URLParam(r, "id"), req.Title, req.Artist)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSongResponse(song))
	}
}

func songDeleteHandler(songUC usecase.SongUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := songUC.Delete(r.Context(), AccountID(r.Context()), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// songsImportCSVHandler accepts either a multipart upload under "file" or a
// raw CSV body.
func songsImportCSVHandler(songUC usecase.SongUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, importBodyLimit)

		var src io.Reader = r.Body
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			file, _, err := r.FormFile("file")
			if err != nil {
				writeError(w, domain.ErrInvalidArgument)
				return
			}
			defer func(f multipart.File) { _ = f.Close() }(file)
			src = file
		}

		count, err := songUC.ImportCSV(r.Context(), AccountID(r.Context()), src)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Imported int `json:"imported"`
		}{Imported: count})
	}
}

func songsImportPlaylistHandler(songUC usecase.SongUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL string `json:"url" validate:"required,url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		count, err := songUC.ImportPlaylist(r.Context(), AccountID(r.Context()), req.URL)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Imported int `json:"imported"`
		}{Imported: count})
	}
}

// ---- Requests dashboard handlers ----

func requestsListHandler(requestUC usecase.RequestUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includePlayed := r.URL.Query().Get("include_played") == "true"
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		reqs, err := requestUC.List(r.Context(), AccountID(r.Context()), includePlayed, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]requestResponse, 0, len(reqs))
		for _, req := range reqs {
			out = append(out, toRequestResponse(req))
		}
		writeJSON(w, http.StatusOK, struct {
			Data []requestResponse `json:"data"`
		}{Data: out})
	}
}

func requestPlayedHandler(requestUC usecase.RequestUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requestUC.MarkPlayed(r.Context(), AccountID(r.Context()), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func requestDeleteHandler(requestUC usecase.RequestUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requestUC.Delete(r.Context(), AccountID(r.Context()), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---- Admin ----

func adminStatsHandler(statsUC usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, activeSubs, requests, err := statsUC.Totals(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		day, month, total, err := statsUC.Revenue(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			TotalAccounts       int `json:"total_accounts"`
			ActiveSubscriptions int `json:"active_subscriptions"`
			TotalRequests       int `json:"total_requests"`
			Revenue             struct {
				Day   int64 `json:"day"`
				Month int64 `json:"month"`
				Total int64 `json:"total"`
			} `json:"revenue_minor"`
		}{
			TotalAccounts:       accounts,
			ActiveSubscriptions: activeSubs,
			TotalRequests:       requests,
			Revenue: struct {
				Day   int64 `json:"day"`
				Month int64 `json:"month"`
				Total int64 `json:"total"`
			}{Day: day, Month: month, Total: total},
		})
	}
}
