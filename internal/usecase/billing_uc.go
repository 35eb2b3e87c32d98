// File: internal/usecase/billing_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"stagecall/internal/domain"
	"stagecall/internal/domain/model"
	"stagecall/internal/domain/ports/adapter"
	"stagecall/internal/domain/ports/repository"
	"stagecall/internal/infra/logging"
)

// Compile-time check
var _ BillingUseCase = (*billingUC)(nil)

// BillingUseCase brokers hosted checkout sessions and applies the
// subscription grant when a session is confirmed paid. Confirmation is
// reachable from three places (return-page poll, provider webhook, the
// background reconciler) and all of them funnel into the same settle step,
// which is safe to run any number of times for the same session.
type BillingUseCase interface {
	// StartCheckout creates a hosted checkout session for the account and
	// returns the redirect URL plus the session ref. The pending transaction
	// row is persisted before the URL is handed out, so a session can never
	// be paid without a trace on our side.
	StartCheckout(ctx context.Context, accountID string) (redirectURL, sessionRef string, err error)
	// Confirm re-checks the session state with the provider and settles the
	// transaction. A session that belongs to a different account is reported
	// as not found.
	Confirm(ctx context.Context, accountID, sessionRef string) (*model.Transaction, error)
	// ConfirmAuto settles a session by ref alone, no ownership check. Both
	// unauthenticated callers use it: the processor's return redirect and the
	// background reconciler.
	ConfirmAuto(ctx context.Context, sessionRef string) (*model.Transaction, error)
	// HandleCheckoutCompleted settles a session reported paid by the
	// provider's signed webhook. Unknown sessions are acknowledged and
	// dropped.
	HandleCheckoutCompleted(ctx context.Context, sessionRef, customerRef string) error
}

type billingUC struct {
	accounts     repository.AccountRepository
	transactions repository.TransactionRepository
	txm          repository.TransactionManager
	gateway      adapter.CheckoutGateway
	cfg          model.EntitlementConfig
	publicURL    string
	log          *zerolog.Logger
}

func NewBillingUseCase(
	accounts repository.AccountRepository,
	transactions repository.TransactionRepository,
	txm repository.TransactionManager,
	gateway adapter.CheckoutGateway,
	cfg model.EntitlementConfig,
	publicURL string,
	logger *zerolog.Logger,
) *billingUC {
	return &billingUC{
		accounts:     accounts,
		transactions: transactions,
		txm:          txm,
		gateway:      gateway,
		cfg:          cfg,
		publicURL:    publicURL,
		log:          logger,
	}
}

func (u *billingUC) StartCheckout(ctx context.Context, accountID string) (string, string, error) {
	defer logging.TraceDuration(u.log, "BillingUC.StartCheckout")()

	if u.gateway == nil {
		return "", "", domain.ErrGatewayNotConfigured
	}
	acct, err := u.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return "", "", err
	}

	spec := adapter.CheckoutSpec{
		AccountID:        acct.ID,
		Email:            acct.Email,
		AmountMinor:      u.cfg.PriceMinor,
		Currency:         u.cfg.Currency,
		ProductName:      "StageCall Pro (monthly)",
		SubscriptionType: u.cfg.SubscriptionType,
		SuccessURL:       fmt.Sprintf("%s/billing/return?session_id={CHECKOUT_SESSION_ID}", u.publicURL),
		CancelURL:        fmt.Sprintf("%s/billing/return?canceled=1", u.publicURL),
	}
	session, err := u.gateway.CreateSession(ctx, spec)
	if err != nil {
		u.log.Error().Err(err).Str("account_id", accountID).Msg("checkout session creation failed")
		return "", "", err
	}

	trx := &model.Transaction{
		ID:               uuid.NewString(),
		AccountID:        acct.ID,
		Amount:           u.cfg.PriceMinor,
		Currency:         u.cfg.Currency,
		SessionRef:       session.SessionRef,
		SubscriptionType: u.cfg.SubscriptionType,
		PaymentStatus:    model.PaymentStatusPending,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := u.transactions.Save(ctx, repository.NoTX, trx); err != nil {
		// The provider session exists but we could not record it; surface the
		// error instead of handing out a URL we cannot reconcile later.
		u.log.Error().Err(err).Str("session_ref", session.SessionRef).Msg("pending transaction not persisted")
		return "", "", err
	}

	u.log.Info().
		Str("account_id", acct.ID).
		Str("session_ref", session.SessionRef).
		Int64("amount", trx.Amount).
		Msg("checkout session created")
	return session.RedirectURL, session.SessionRef, nil
}

func (u *billingUC) Confirm(ctx context.Context, accountID, sessionRef string) (*model.Transaction, error) {
	defer logging.TraceDuration(u.log, "BillingUC.Confirm")()

	if u.gateway == nil {
		return nil, domain.ErrGatewayNotConfigured
	}
	trx, err := u.transactions.FindBySessionRef(ctx, repository.NoTX, sessionRef)
	if err != nil {
		return nil, err
	}
	// A session belonging to someone else must be indistinguishable from a
	// missing one.
	if trx.AccountID != accountID {
		return nil, domain.ErrNotFound
	}
	if trx.PaymentStatus.Terminal() {
		return trx, nil
	}

	state, err := u.gateway.SessionStatus(ctx, sessionRef)
	if err != nil {
		return nil, err
	}
	if err := u.settle(ctx, trx, state); err != nil {
		return nil, err
	}
	return trx, nil
}

func (u *billingUC) ConfirmAuto(ctx context.Context, sessionRef string) (*model.Transaction, error) {
	defer logging.TraceDuration(u.log, "BillingUC.ConfirmAuto")()

	if u.gateway == nil {
		return nil, domain.ErrGatewayNotConfigured
	}
	trx, err := u.transactions.FindBySessionRef(ctx, repository.NoTX, sessionRef)
	if err != nil {
		return nil, err
	}
	if trx.PaymentStatus.Terminal() {
		return trx, nil
	}
	state, err := u.gateway.SessionStatus(ctx, sessionRef)
	if err != nil {
		return nil, err
	}
	if err := u.settle(ctx, trx, state); err != nil {
		return nil, err
	}
	return trx, nil
}

func (u *billingUC) HandleCheckoutCompleted(ctx context.Context, sessionRef, customerRef string) error {
	defer logging.TraceDuration(u.log, "BillingUC.HandleCheckoutCompleted")()

	trx, err := u.transactions.FindBySessionRef(ctx, repository.NoTX, sessionRef)
	if err == domain.ErrNotFound {
		// Not a session we created (another environment, manual test event).
		// Acknowledge so the provider stops retrying.
		u.log.Warn().Str("session_ref", sessionRef).Msg("webhook for unknown checkout session")
		return nil
	}
	if err != nil {
		return err
	}
	return u.settle(ctx, trx, adapter.SessionState{
		PaymentStatus: adapter.SessionPaymentPaid,
		AmountMinor:   trx.Amount,
		Currency:      trx.Currency,
		CustomerRef:   customerRef,
	})
}

// settle moves the transaction out of pending according to the provider
// state and, on payment, applies the subscription grant in the same database
// transaction. The status flip is conditional on the row still being pending,
// so concurrent settlers (webhook racing the return-page poll) apply the
// grant exactly once.
func (u *billingUC) settle(ctx context.Context, trx *model.Transaction, state adapter.SessionState) error {
	switch state.PaymentStatus {
	case adapter.SessionPaymentPaid:
		now := time.Now()
		until := now.Add(u.cfg.GrantPeriod)
		err := u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			changed, err := u.transactions.UpdateStatusIfPending(ctx, tx, trx.ID, model.PaymentStatusPaid, &now)
			if err != nil {
				return err
			}
			if !changed {
				return nil
			}
			extended, err := u.accounts.ExtendSubscriptionIfInactive(ctx, tx, trx.AccountID, until, now)
			if err != nil {
				return err
			}
			if !extended {
				u.log.Warn().
					Str("account_id", trx.AccountID).
					Str("session_ref", trx.SessionRef).
					Msg("payment settled while subscription already active; no extension applied")
			}
			if state.CustomerRef != "" {
				if _, err := u.accounts.SetBillingCustomerRefIfEmpty(ctx, tx, trx.AccountID, state.CustomerRef); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		trx.PaymentStatus = model.PaymentStatusPaid
		trx.PaidAt = &now
		trx.UpdatedAt = now
		u.log.Info().
			Str("account_id", trx.AccountID).
			Str("session_ref", trx.SessionRef).
			Time("subscription_until", until).
			Msg("payment confirmed")
		return nil

	case adapter.SessionPaymentFailed:
		if _, err := u.transactions.UpdateStatusIfPending(ctx, repository.NoTX, trx.ID, model.PaymentStatusFailed, nil); err != nil {
			return err
		}
		trx.PaymentStatus = model.PaymentStatusFailed
		trx.UpdatedAt = time.Now()
		u.log.Info().
			Str("session_ref", trx.SessionRef).
			Msg("checkout session expired or failed")
		return nil

	default:
		// Still pending on the provider side; nothing to record.
		return nil
	}
}
