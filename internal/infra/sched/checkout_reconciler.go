// Package sched holds the periodic background jobs that keep billing state
// converged when the interactive paths miss.
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stagecall/internal/domain/ports/repository"
	"stagecall/internal/infra/metrics"
	"stagecall/internal/infra/worker"
	"stagecall/internal/usecase"
)

// CheckoutReconciler periodically sweeps pending transactions whose checkout
// session was never confirmed — the performer closed the tab before the
// return redirect and the webhook got lost — and settles them through the
// same idempotent path the webhook uses. Sessions the processor still
// reports as open stay pending and are retried on the next pass.
type CheckoutReconciler struct {
	billing      usecase.BillingUseCase
	transactions repository.TransactionRepository
	pool         *worker.Pool
	interval     time.Duration
	staleAfter   time.Duration
	batchSize    int
	log          *zerolog.Logger
}

func NewCheckoutReconciler(
	billing usecase.BillingUseCase,
	transactions repository.TransactionRepository,
	pool *worker.Pool,
	interval, staleAfter time.Duration,
	batchSize int,
	logger *zerolog.Logger,
) *CheckoutReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	compLog := logger.With().Str("component", "CheckoutReconciler").Logger()
	return &CheckoutReconciler{
		billing:      billing,
		transactions: transactions,
		pool:         pool,
		interval:     interval,
		staleAfter:   staleAfter,
		batchSize:    batchSize,
		log:          &compLog,
	}
}

func (w *CheckoutReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting checkout reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping checkout reconciler")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *CheckoutReconciler) tick(ctx context.Context) {
	metrics.IncReconcileRun()

	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.transactions.ListPendingOlderThan(ctx, repository.NoTX, cutoff, w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending transactions failed")
		return
	}
	for _, trx := range pending {
		if trx.SessionRef == "" {
			continue
		}
		ref := trx.SessionRef
		if err := w.pool.Submit(func(ctx context.Context) error {
			w.reconcile(ctx, ref)
			return nil
		}); err != nil {
			metrics.IncReconcileSession("dropped")
			w.log.Warn().Err(err).Str("session_ref", ref).Msg("reconcile task dropped")
		}
	}
}

func (w *CheckoutReconciler) reconcile(ctx context.Context, sessionRef string) {
	trx, err := w.billing.ConfirmAuto(ctx, sessionRef)
	if err != nil {
		metrics.IncReconcileSession("error")
		w.log.Warn().Err(err).Str("session_ref", sessionRef).Msg("reconcile failed")
		return
	}
	if trx.PaymentStatus.Terminal() {
		metrics.IncReconcileSession("settled")
		w.log.Info().
			Str("session_ref", sessionRef).
			Str("status", string(trx.PaymentStatus)).
			Msg("stale checkout settled")
		return
	}
	metrics.IncReconcileSession("still_pending")
}
