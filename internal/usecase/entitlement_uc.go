// File: internal/usecase/entitlement_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stagecall/internal/domain"
	"stagecall/internal/domain/model"
	"stagecall/internal/domain/ports/repository"
	"stagecall/internal/infra/logging"
	"stagecall/internal/infra/metrics"
)

// Compile-time check
var _ EntitlementUseCase = (*entitlementUC)(nil)

// EntitlementUseCase decides what a performer account may do right now.
// Every admission decision re-evaluates from storage; there is no cached
// entitlement state anywhere in the system.
type EntitlementUseCase interface {
	// Evaluate computes the entitlement snapshot for the account at `now`.
	Evaluate(ctx context.Context, acct *model.Account, now time.Time) (model.Entitlement, error)
	// EvaluateByID loads the account and evaluates it at the current time.
	EvaluateByID(ctx context.Context, accountID string) (model.Entitlement, error)
	// AdmitRequest decides whether one more audience request may land.
	// On denial it returns the snapshot together with ErrRequestQuotaExceeded
	// so the transport layer can render the full payment-required payload.
	AdmitRequest(ctx context.Context, accountID string) (model.Entitlement, error)
	// RequireCustomization gates display-setting writes to trial/pro plans.
	RequireCustomization(ctx context.Context, accountID string) error
}

type entitlementUC struct {
	accounts repository.AccountRepository
	requests repository.RequestRepository
	cfg      model.EntitlementConfig
	log      *zerolog.Logger
}

func NewEntitlementUseCase(accounts repository.AccountRepository, requests repository.RequestRepository, cfg model.EntitlementConfig, logger *zerolog.Logger) *entitlementUC {
	return &entitlementUC{accounts: accounts, requests: requests, cfg: cfg, log: logger}
}

// Evaluate runs the plan cascade in strict priority order:
//
//  1. trial:  now before CreatedAt+TrialPeriod (unlimited)
//  2. pro:    SubscriptionEndsAt set and in the future (unlimited)
//  3. free:   rolling quota window anchored at CreatedAt
//
// The free window advances from the signup instant in fixed QuotaWindow hops,
// so its boundaries are identical no matter when within a hop the evaluation
// runs. An account whose CreatedAt lies in the future (clock skew between
// nodes) falls into the trial branch by plain comparison; there is no special
// case for it.
func (u *entitlementUC) Evaluate(ctx context.Context, acct *model.Account, now time.Time) (model.Entitlement, error) {
	ent, err := u.evaluate(ctx, acct, now)
	if err != nil {
		return model.Entitlement{}, err
	}
	metrics.IncEntitlementEvaluation(string(ent.Plan))
	return ent, nil
}

func (u *entitlementUC) evaluate(ctx context.Context, acct *model.Account, now time.Time) (model.Entitlement, error) {
	trialEnd := acct.CreatedAt.Add(u.cfg.TrialPeriod)
	if now.Before(trialEnd) {
		return model.Entitlement{
			Plan:               model.PlanTrial,
			TrialEndsAt:        &trialEnd,
			SubscriptionEndsAt: acct.SubscriptionEndsAt,
			CanRequest:         true,
		}, nil
	}

	if acct.SubscriptionActiveAt(now) {
		return model.Entitlement{
			Plan:               model.PlanPro,
			TrialEndsAt:        &trialEnd,
			SubscriptionEndsAt: acct.SubscriptionEndsAt,
			CanRequest:         true,
		}, nil
	}

	windowStart := acct.CreatedAt
	for !windowStart.Add(u.cfg.QuotaWindow).After(now) {
		windowStart = windowStart.Add(u.cfg.QuotaWindow)
	}
	windowEnd := windowStart.Add(u.cfg.QuotaWindow)

	used, err := u.requests.CountForAccountBetween(ctx, repository.NoTX, acct.ID, windowStart, windowEnd)
	if err != nil {
		return model.Entitlement{}, err
	}

	limit := u.cfg.FreeRequestLimit
	return model.Entitlement{
		Plan:               model.PlanFree,
		RequestsUsed:       used,
		RequestsLimit:      &limit,
		TrialEndsAt:        &trialEnd,
		SubscriptionEndsAt: acct.SubscriptionEndsAt,
		NextResetAt:        &windowEnd,
		CanRequest:         used < limit,
	}, nil
}

func (u *entitlementUC) EvaluateByID(ctx context.Context, accountID string) (model.Entitlement, error) {
	defer logging.TraceDuration(u.log, "EntitlementUC.EvaluateByID")()

	acct, err := u.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return model.Entitlement{}, err
	}
	return u.Evaluate(ctx, acct, time.Now())
}

// AdmitRequest is deliberately check-then-act without a lock or transaction:
// the count and the caller's subsequent insert are separate operations, so
// two requests racing at the boundary can both be admitted and overshoot the
// limit by one. The quota is a soft product limit and the window is long, so
// the transient overshoot is accepted rather than serialized.
func (u *entitlementUC) AdmitRequest(ctx context.Context, accountID string) (model.Entitlement, error) {
	defer logging.TraceDuration(u.log, "EntitlementUC.AdmitRequest")()

	acct, err := u.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return model.Entitlement{}, err
	}
	ent, err := u.Evaluate(ctx, acct, time.Now())
	if err != nil {
		return model.Entitlement{}, err
	}
	if !ent.CanRequest {
		u.log.Debug().
			Str("account_id", accountID).
			Int("requests_used", ent.RequestsUsed).
			Msg("request denied by quota")
		return ent, domain.ErrRequestQuotaExceeded
	}
	return ent, nil
}

func (u *entitlementUC) RequireCustomization(ctx context.Context, accountID string) error {
	defer logging.TraceDuration(u.log, "EntitlementUC.RequireCustomization")()

	acct, err := u.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return err
	}
	ent, err := u.Evaluate(ctx, acct, time.Now())
	if err != nil {
		return err
	}
	if ent.Plan == model.PlanFree {
		return domain.ErrUpgradeRequired
	}
	return nil
}
