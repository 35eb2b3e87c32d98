package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"stagecall/internal/config"
	"stagecall/internal/infra/metrics"
	"stagecall/internal/infra/qr"
	"stagecall/internal/infra/redis"
	"stagecall/internal/usecase"
)

const requestTimeout = 15 * time.Second

// Server owns the HTTP surface: the performer API, the public request page,
// billing callbacks and the admin/ops endpoints.
type Server struct {
	cfg *config.Config

	accounts    usecase.AccountUseCase
	songs       usecase.SongUseCase
	requests    usecase.RequestUseCase
	billing     usecase.BillingUseCase
	entitlement usecase.EntitlementUseCase
	stats       usecase.StatsUseCase

	auth    *AuthManager
	limiter *redis.RateLimiter
	assets  *qr.Generator
	log     *zerolog.Logger

	httpSrv *http.Server
}

func NewServer(
	cfg *config.Config,
	accounts usecase.AccountUseCase,
	songs usecase.SongUseCase,
	requests usecase.RequestUseCase,
	billing usecase.BillingUseCase,
	entitlement usecase.EntitlementUseCase,
	stats usecase.StatsUseCase,
	auth *AuthManager,
	limiter *redis.RateLimiter,
	assets *qr.Generator,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		cfg:         cfg,
		accounts:    accounts,
		songs:       songs,
		requests:    requests,
		billing:     billing,
		entitlement: entitlement,
		stats:       stats,
		auth:        auth,
		limiter:     limiter,
		assets:      assets,
		log:         logger,
	}
}

// Router builds the full route tree. Split out from Start so tests can mount
// it on an httptest server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	if len(s.cfg.Web.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Web.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(TraceID(s.log), RequestLog(s.log), Recover(s.log), Timeout(requestTimeout), Metrics())

	// Public surface
	r.Post("/api/v1/auth/register", registerHandler(s.accounts, s.auth))
	r.Post("/api/v1/auth/login", loginHandler(s.accounts, s.auth))
	r.Post("/api/v1/auth/logout", logoutHandler(s.auth))
	r.Get("/p/{slug}", publicPageHandler(s.accounts, s.songs))
	r.Post("/p/{slug}/requests", publicSubmitHandler(s.requests, s.limiter, s.cfg.RateLimit.Requests, s.cfg.RateLimit.Window, s.log))
	r.Get("/billing/return", billingReturnHandler(s.billing, s.log))
	r.Post("/api/v1/webhooks/stripe", stripeWebhookHandler(s.billing, s.cfg.Billing.WebhookSecret, s.log))

	// Performer surface, session required
	r.Group(func(pr chi.Router) {
		pr.Use(s.auth.Authenticate)

		pr.Get("/api/v1/me", meHandler(s.accounts))
		pr.Put("/api/v1/me/settings", meSettingsHandler(s.accounts))
		pr.Get("/api/v1/me/entitlement", meEntitlementHandler(s.entitlement))
		pr.Get("/api/v1/me/qr.png", meQRHandler(s.accounts, s.assets))
		pr.Get("/api/v1/me/flyer.pdf", meFlyerHandler(s.accounts, s.assets))

		pr.Get("/api/v1/songs", songsListHandler(s.songs))
		pr.Post("/api/v1/songs", songCreateHandler(s.songs))
		pr.Put("/api/v1/songs/{id}", songUpdateHandler(s.songs))
		pr.Delete("/api/v1/songs/{id}", songDeleteHandler(s.songs))
		pr.Post("/api/v1/songs/import", songsImportCSVHandler(s.songs))
		pr.Post("/api/v1/songs/import/playlist", songsImportPlaylistHandler(s.songs))

		pr.Get("/api/v1/requests", requestsListHandler(s.requests))
		pr.Post("/api/v1/requests/{id}/played", requestPlayedHandler(s.requests))
		pr.Delete("/api/v1/requests/{id}", requestDeleteHandler(s.requests))

		pr.Post("/api/v1/billing/checkout", billingCheckoutHandler(s.billing))
		pr.Get("/api/v1/billing/confirm", billingConfirmHandler(s.billing))
	})

	// Admin surface, static bearer key
	r.Group(func(ar chi.Router) {
		ar.Use(s.adminAuth)
		ar.Get("/api/v1/admin/stats", adminStatsHandler(s.stats))
	})

	// Ops
	r.Method(http.MethodGet, "/metrics",
		Chain(promhttp.Handler(), BasicAuth(s.cfg.Admin.MetricsUser, s.cfg.Admin.MetricsPass)))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}

// adminAuth provides simple Bearer token authentication for the admin API.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if s.cfg.Admin.Token == "" {
			s.log.Error().Msg("admin token is not configured")
			metrics.IncAdminRequest(endpoint, "unauthorized")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			metrics.IncAdminRequest(endpoint, "unauthorized")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			metrics.IncAdminRequest(endpoint, "unauthorized")
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if tokenParts[1] != s.cfg.Admin.Token {
			metrics.IncAdminRequest(endpoint, "unauthorized")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		metrics.IncAdminRequest(endpoint, "authorized")
		next.ServeHTTP(w, r)
	})
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Web.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", s.cfg.Web.Port).Msg("http server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
