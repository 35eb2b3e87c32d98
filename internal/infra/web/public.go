package web

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"stagecall/internal/domain"
	"stagecall/internal/infra/logging"
	"stagecall/internal/infra/metrics"
	"stagecall/internal/infra/redis"
	"stagecall/internal/usecase"
)

// publicPageHandler serves the audience-facing page data: performer profile
// plus the song catalog. No account internals beyond what the page shows.
func publicPageHandler(accountUC usecase.AccountUseCase, songUC usecase.SongUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, err := accountUC.BySlug(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			writeError(w, err)
			return
		}
		songs, err := songUC.List(r.Context(), acct.ID)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			DisplayName    string         `json:"display_name"`
			Slug           string         `json:"slug"`
			WelcomeMessage string         `json:"welcome_message"`
			ThemeColor     string         `json:"theme_color"`
			TipLink        string         `json:"tip_link"`
			Songs          []songResponse `json:"songs"`
		}{
			DisplayName:    acct.DisplayName,
			Slug:           acct.Slug,
			WelcomeMessage: acct.WelcomeMessage,
			ThemeColor:     acct.ThemeColor,
			TipLink:        acct.TipLink,
			Songs:          toSongResponses(songs),
		})
	}
}

type submitRequest struct {
	SongID        string `json:"song_id"`
	Title         string `json:"title" validate:"omitempty,max=200"`
	Artist        string `json:"artist" validate:"omitempty,max=200"`
	RequesterName string `json:"requester_name" validate:"omitempty,max=80"`
	Note          string `json:"note" validate:"omitempty,max=500"`
}

// publicSubmitHandler is the audience submission endpoint: per-IP rate limit
// first, then the admission gate, then the insert. The rate limiter fails
// closed; a broken redis turns the public page read-only rather than
// unmetered.
func publicSubmitHandler(
	requestUC usecase.RequestUseCase,
	limiter *redis.RateLimiter,
	rlRequests int,
	rlWindow time.Duration,
	logger *zerolog.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		ctx := logging.WithSlug(r.Context(), slug)
		l := logging.With(ctx, logger)

		allowed, err := limiter.Allow(ctx, redis.SubmitKey(slug, clientIP(r)), rlRequests, rlWindow)
		if err != nil {
			metrics.IncRateLimitCheck("submit", "error")
			metrics.IncRequestAdmission("error")
			l.Error().Err(err).Msg("rate limiter unavailable")
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Message: "try again in a moment"})
			return
		}
		if !allowed {
			metrics.IncRateLimitCheck("submit", "limited")
			metrics.IncRequestAdmission("rate_limited")
			w.Header().Set("Retry-After", strconv.Itoa(int(rlWindow.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Message: "too many requests, slow down"})
			return
		}
		metrics.IncRateLimitCheck("submit", "allowed")

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}

		created, ent, err := requestUC.Submit(ctx, slug, usecase.SubmitInput{
			SongID:        req.SongID,
			Title:         req.Title,
			Artist:        req.Artist,
			RequesterName: req.RequesterName,
			Note:          req.Note,
		})
		if errors.Is(err, domain.ErrRequestQuotaExceeded) {
			metrics.IncRequestAdmission("quota_denied")
			writeQuotaDenied(w, ent)
			return
		}
		if err != nil {
			metrics.IncRequestAdmission("error")
			writeError(w, err)
			return
		}

		metrics.IncRequestAdmission("admitted")
		writeJSON(w, http.StatusCreated, toRequestResponse(created))
	}
}

// clientIP prefers the first X-Forwarded-For hop (set by the front proxy)
// and falls back to the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
