package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"stagecall/internal/config"
	"stagecall/internal/domain"
	"stagecall/internal/domain/model"
	"stagecall/internal/domain/ports/repository"
	pg "stagecall/internal/infra/db/postgres"
	"stagecall/internal/infra/logging"
	"stagecall/internal/usecase"
)

// Seeds a demo performer with a small catalog so the public page and the
// dashboard have something to show on a fresh database.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool := pg.MustConnectPostgres(cfg.Database.URL)
	defer pool.Close()

	accountRepo := pg.NewAccountRepo(pool)
	songRepo := pg.NewSongRepo(pool)
	requestRepo := pg.NewRequestRepo(pool)

	entCfg := model.DefaultEntitlementConfig()
	entitlementUC := usecase.NewEntitlementUseCase(accountRepo, requestRepo, entCfg, logger)
	accountUC := usecase.NewAccountUseCase(accountRepo, entitlementUC, logger)
	songUC := usecase.NewSongUseCase(songRepo, logger)

	const demoEmail = "demo@stagecall.local"
	if _, err := accountRepo.FindByEmail(ctx, repository.NoTX, demoEmail); err == nil {
		fmt.Println("demo performer already present. No changes.")
		return
	} else if !errors.Is(err, domain.ErrNotFound) {
		log.Fatalf("check demo account: %v", err)
	}

	account, err := accountUC.Register(ctx, usecase.RegisterInput{
		Email:       demoEmail,
		Password:    "demo-password-change-me",
		DisplayName: "The Demo Duo",
		Slug:        "demo-duo",
	})
	if err != nil {
		log.Fatalf("register demo performer: %v", err)
	}
	fmt.Printf("seeded performer: %s (id=%s, slug=%s)\n", account.DisplayName, account.ID, account.Slug)

	catalog := []struct {
		Title  string
		Artist string
	}{
		{"Hallelujah", "Leonard Cohen"},
		{"Wonderwall", "Oasis"},
		{"Valerie", "Amy Winehouse"},
		{"Hotel California", "Eagles"},
		{"Wish You Were Here", "Pink Floyd"},
		{"Dock of the Bay", "Otis Redding"},
	}
	for _, c := range catalog {
		s, err := songUC.Add(ctx, account.ID, c.Title, c.Artist)
		if err != nil {
			log.Fatalf("add song %q: %v", c.Title, err)
		}
		fmt.Printf("seeded: %s — %s (id=%s)\n", s.Title, s.Artist, s.ID)
	}

	fmt.Printf("request page ready at %s/p/%s\n", cfg.Web.PublicURL, account.Slug)
}
