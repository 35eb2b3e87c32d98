package usecase

import (
	"context"
	"time"

	"stagecall/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	Totals(ctx context.Context) (accounts int, activeSubscriptions int, requests int, err error)
	Revenue(ctx context.Context) (day int64, month int64, total int64, err error)
}

type statsUC struct {
	accounts     repository.AccountRepository
	transactions repository.TransactionRepository
	requests     repository.RequestRepository

	log *zerolog.Logger
}

func NewStatsUseCase(accounts repository.AccountRepository, transactions repository.TransactionRepository, requests repository.RequestRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{accounts: accounts, transactions: transactions, requests: requests, log: logger}
}

func (s *statsUC) Totals(ctx context.Context) (int, int, int, error) {
	accounts, err := s.accounts.CountAccounts(ctx, repository.NoTX)
	if err != nil {
		return 0, 0, 0, err
	}
	active, err := s.accounts.CountActiveSubscriptions(ctx, repository.NoTX, time.Now())
	if err != nil {
		return 0, 0, 0, err
	}
	reqs, err := s.requests.CountRequests(ctx, repository.NoTX)
	if err != nil {
		return 0, 0, 0, err
	}
	return accounts, active, reqs, nil
}

func (s *statsUC) Revenue(ctx context.Context) (int64, int64, int64, error) {
	d, err := s.transactions.SumPaidByPeriod(ctx, repository.NoTX, "day")
	if err != nil {
		return 0, 0, 0, err
	}
	m, err := s.transactions.SumPaidByPeriod(ctx, repository.NoTX, "month")
	if err != nil {
		return 0, 0, 0, err
	}
	t, err := s.transactions.SumPaidByPeriod(ctx, repository.NoTX, "all")
	if err != nil {
		return 0, 0, 0, err
	}
	return d, m, t, nil
}
