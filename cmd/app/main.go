// File: cmd/app/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stagecall/internal/config"
	"stagecall/internal/domain/model"
	"stagecall/internal/domain/ports/adapter"
	"stagecall/internal/domain/ports/repository"
	"stagecall/internal/infra/db/postgres"
	"stagecall/internal/infra/logging"
	"stagecall/internal/infra/metrics"
	"stagecall/internal/infra/payment"
	"stagecall/internal/infra/qr"
	red "stagecall/internal/infra/redis"
	"stagecall/internal/infra/sched"
	"stagecall/internal/infra/web"
	"stagecall/internal/infra/worker"
	"stagecall/internal/usecase"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Secrets referenced as ${VAR} in config.yaml come from the environment;
	// a local .env is a convenience, its absence is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool := postgres.MustConnectPostgres(cfg.Database.URL)
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	accountRepo := postgres.NewAccountRepo(pool)
	songRepo := postgres.NewSongRepo(pool)
	requestRepo := postgres.NewRequestRepo(pool)
	trxRepo := postgres.NewTransactionRepo(pool)
	txm := postgres.NewTxManager(pool)

	// ---- Use cases ----
	entCfg := model.EntitlementConfig{
		TrialPeriod:      time.Duration(cfg.Entitlement.TrialDays) * 24 * time.Hour,
		QuotaWindow:      time.Duration(cfg.Entitlement.QuotaWindowDays) * 24 * time.Hour,
		FreeRequestLimit: cfg.Entitlement.FreeRequestLimit,
		GrantPeriod:      time.Duration(cfg.Entitlement.GrantDays) * 24 * time.Hour,
		PriceMinor:       cfg.Billing.PriceMinor,
		Currency:         cfg.Billing.Currency,
		SubscriptionType: cfg.Billing.SubscriptionType,
	}

	entitlementUC := usecase.NewEntitlementUseCase(accountRepo, requestRepo, entCfg, logger)
	accountUC := usecase.NewAccountUseCase(accountRepo, entitlementUC, logger)
	songUC := usecase.NewSongUseCase(songRepo, logger)
	requestUC := usecase.NewRequestUseCase(accountRepo, songRepo, requestRepo, entitlementUC, logger)
	// A missing Stripe key leaves the gateway nil; billing then fails with a
	// configuration error rather than quietly denying checkouts.
	var gateway adapter.CheckoutGateway
	if cfg.Billing.StripeKey != "" {
		sg := payment.NewStripeGateway(cfg.Billing.StripeKey)
		logger.Info().
			Str("gateway", sg.Name()).
			Str("api_key", logging.Redact(cfg.Billing.StripeKey, cfg.Runtime.Dev)).
			Msg("payment gateway configured")
		gateway = sg
	} else {
		logger.Warn().Msg("billing.stripe_key not set; checkout is disabled")
	}
	billingUC := usecase.NewBillingUseCase(accountRepo, trxRepo, txm, gateway, entCfg, cfg.Web.PublicURL, logger)
	statsUC := usecase.NewStatsUseCase(accountRepo, trxRepo, requestRepo, logger)

	// ---- Web server ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.CookieName, cfg.Auth.CookieDomain, cfg.Auth.SecureCookie, cfg.Auth.TTL)
	assets := qr.NewGenerator(cfg.Web.PublicURL)
	srv := web.NewServer(cfg, accountUC, songUC, requestUC, billingUC, entitlementUC, statsUC, auth, rateLimiter, assets, logger)

	// ---- Background jobs ----
	wp := worker.NewPool(cfg.Scheduler.Workers, logger)
	wp.Start(ctx)
	if gateway != nil {
		reconciler := sched.NewCheckoutReconciler(
			billingUC, trxRepo, wp,
			cfg.Scheduler.ReconcileInterval, cfg.Scheduler.PendingCutoff, cfg.Scheduler.BatchSize,
			logger,
		)
		go func() { _ = reconciler.Run(ctx) }()
	}

	// ---- Gauges: pool health and active subscriptions ----
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
				if n, err := accountRepo.CountActiveSubscriptions(ctx, repository.NoTX, time.Now()); err == nil {
					metrics.SetSubscriptionsActive(n)
				}
			}
		}
	}()

	go func() {
		logger.Info().Int("port", cfg.Web.Port).Str("public_url", cfg.Web.PublicURL).Msg("http server starting")
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	cancel()
	wp.Stop()
}
