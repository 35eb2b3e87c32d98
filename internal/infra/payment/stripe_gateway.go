package payment

import (
	"context"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"

	"stagecall/internal/domain/ports/adapter"
)

var _ adapter.CheckoutGateway = (*StripeGateway)(nil)

// StripeGateway implements the checkout port against Stripe's hosted
// checkout API. Session creation builds the recurring price inline from the
// configured amount, so no dashboard-managed price object is required.
type StripeGateway struct {
	createSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getSession    func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewStripeGateway sets the global API key and returns a gateway bound to
// the stripe-go checkout session API.
func NewStripeGateway(apiKey string) *StripeGateway {
	stripe.Key = strings.TrimSpace(apiKey)
	return &StripeGateway{
		createSession: stripesession.New,
		getSession:    stripesession.Get,
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

// CreateSession opens a subscription-mode checkout session. The metadata
// keys are load-bearing: confirmation locates the account from them when the
// webhook fires.
func (g *StripeGateway) CreateSession(ctx context.Context, spec adapter.CheckoutSpec) (adapter.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params:        stripe.Params{Context: ctx},
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:    stripe.String(spec.SuccessURL),
		CancelURL:     stripe.String(spec.CancelURL),
		CustomerEmail: stripe.String(spec.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(spec.Currency),
					UnitAmount: stripe.Int64(spec.AmountMinor),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String("month"),
					},
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(spec.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"account_id":        spec.AccountID,
			"subscription_type": spec.SubscriptionType,
		},
	}

	sess, err := g.createSession(params)
	if err != nil {
		return adapter.CheckoutSession{}, fmt.Errorf("stripe checkout session create: %w", err)
	}
	if sess == nil || strings.TrimSpace(sess.URL) == "" {
		return adapter.CheckoutSession{}, fmt.Errorf("stripe returned empty checkout URL")
	}
	return adapter.CheckoutSession{
		SessionRef:  sess.ID,
		RedirectURL: strings.TrimSpace(sess.URL),
	}, nil
}

// SessionStatus polls the session and folds Stripe's two status fields into
// the provider-agnostic tri-state: a paid payment_status wins, an expired
// session is failed, anything else is still pending.
func (g *StripeGateway) SessionStatus(ctx context.Context, sessionRef string) (adapter.SessionState, error) {
	sess, err := g.getSession(sessionRef, &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return adapter.SessionState{}, fmt.Errorf("stripe checkout session get: %w", err)
	}
	if sess == nil {
		return adapter.SessionState{}, fmt.Errorf("stripe returned no session for %q", sessionRef)
	}

	state := adapter.SessionState{
		AmountMinor: sess.AmountTotal,
		Currency:    string(sess.Currency),
	}
	if sess.Customer != nil {
		state.CustomerRef = sess.Customer.ID
	}

	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		state.PaymentStatus = adapter.SessionPaymentPaid
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		state.PaymentStatus = adapter.SessionPaymentFailed
	default:
		state.PaymentStatus = adapter.SessionPaymentPending
	}
	return state, nil
}
