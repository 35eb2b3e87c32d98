//go:build !integration

package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"stagecall/internal/domain/ports/adapter"
)

func testSpec() adapter.CheckoutSpec {
	return adapter.CheckoutSpec{
		AccountID:        "acct-1",
		Email:            "band@example.com",
		AmountMinor:      999,
		Currency:         "usd",
		ProductName:      "StageCall Pro (monthly)",
		SubscriptionType: "pro_monthly",
		SuccessURL:       "https://stagecall.test/billing/return?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:        "https://stagecall.test/billing/return?canceled=1",
	}
}

func TestStripeGateway_CreateSession(t *testing.T) {
	t.Run("should build subscription params and return ref plus url", func(t *testing.T) {
		// Arrange
		var captured *stripe.CheckoutSessionParams
		g := &StripeGateway{
			createSession: func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				captured = params
				return &stripe.CheckoutSession{ID: "cs_123", URL: " https://checkout.stripe.test/cs_123 "}, nil
			},
		}

		// Act
		sess, err := g.CreateSession(context.Background(), testSpec())

		// Assert
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if sess.SessionRef != "cs_123" {
			t.Errorf("expected session ref cs_123, got %q", sess.SessionRef)
		}
		if sess.RedirectURL != "https://checkout.stripe.test/cs_123" {
			t.Errorf("expected trimmed redirect url, got %q", sess.RedirectURL)
		}
		if captured == nil {
			t.Fatal("expected params to be passed to the SDK")
		}
		if got := stripe.StringValue(captured.Mode); got != string(stripe.CheckoutSessionModeSubscription) {
			t.Errorf("expected subscription mode, got %q", got)
		}
		if captured.Metadata["account_id"] != "acct-1" || captured.Metadata["subscription_type"] != "pro_monthly" {
			t.Errorf("confirmation metadata missing: %v", captured.Metadata)
		}
		if len(captured.LineItems) != 1 || captured.LineItems[0].PriceData == nil {
			t.Fatal("expected one line item with inline price data")
		}
		price := captured.LineItems[0].PriceData
		if stripe.Int64Value(price.UnitAmount) != 999 || stripe.StringValue(price.Currency) != "usd" {
			t.Errorf("wrong price data: amount=%d currency=%q", stripe.Int64Value(price.UnitAmount), stripe.StringValue(price.Currency))
		}
		if price.Recurring == nil || stripe.StringValue(price.Recurring.Interval) != "month" {
			t.Error("expected a monthly recurring price")
		}
	})

	t.Run("should propagate SDK errors without retrying", func(t *testing.T) {
		// Arrange
		calls := 0
		wantErr := errors.New("stripe down")
		g := &StripeGateway{
			createSession: func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				calls++
				return nil, wantErr
			},
		}

		// Act
		_, err := g.CreateSession(context.Background(), testSpec())

		// Assert
		if !errors.Is(err, wantErr) {
			t.Errorf("expected wrapped SDK error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected exactly one SDK call, got %d", calls)
		}
	})

	t.Run("should reject a session without a redirect url", func(t *testing.T) {
		// Arrange
		g := &StripeGateway{
			createSession: func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				return &stripe.CheckoutSession{ID: "cs_nourl"}, nil
			},
		}

		// Act
		_, err := g.CreateSession(context.Background(), testSpec())

		// Assert
		if err == nil {
			t.Fatal("expected an error for an empty checkout URL")
		}
	})
}

func TestStripeGateway_SessionStatus(t *testing.T) {
	newGateway := func(sess *stripe.CheckoutSession) *StripeGateway {
		return &StripeGateway{
			getSession: func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				return sess, nil
			},
		}
	}

	t.Run("should map a paid session", func(t *testing.T) {
		g := newGateway(&stripe.CheckoutSession{
			Status:        stripe.CheckoutSessionStatusComplete,
			PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
			AmountTotal:   999,
			Currency:      stripe.CurrencyUSD,
			Customer:      &stripe.Customer{ID: "cus_42"},
		})

		state, err := g.SessionStatus(context.Background(), "cs_1")
		if err != nil {
			t.Fatalf("SessionStatus failed: %v", err)
		}
		if state.PaymentStatus != adapter.SessionPaymentPaid {
			t.Errorf("expected paid, got %s", state.PaymentStatus)
		}
		if state.CustomerRef != "cus_42" || state.AmountMinor != 999 || state.Currency != "usd" {
			t.Errorf("wrong session state: %+v", state)
		}
	})

	t.Run("should map an expired session to failed", func(t *testing.T) {
		g := newGateway(&stripe.CheckoutSession{
			Status:        stripe.CheckoutSessionStatusExpired,
			PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
		})

		state, err := g.SessionStatus(context.Background(), "cs_2")
		if err != nil {
			t.Fatalf("SessionStatus failed: %v", err)
		}
		if state.PaymentStatus != adapter.SessionPaymentFailed {
			t.Errorf("expected failed, got %s", state.PaymentStatus)
		}
	})

	t.Run("should leave an open unpaid session pending", func(t *testing.T) {
		g := newGateway(&stripe.CheckoutSession{
			Status:        stripe.CheckoutSessionStatusOpen,
			PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
		})

		state, err := g.SessionStatus(context.Background(), "cs_3")
		if err != nil {
			t.Fatalf("SessionStatus failed: %v", err)
		}
		if state.PaymentStatus != adapter.SessionPaymentPending {
			t.Errorf("expected pending, got %s", state.PaymentStatus)
		}
	})

	t.Run("should surface lookup errors", func(t *testing.T) {
		wantErr := errors.New("no such session")
		g := &StripeGateway{
			getSession: func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
				return nil, wantErr
			},
		}

		_, err := g.SessionStatus(context.Background(), "cs_missing")
		if !errors.Is(err, wantErr) {
			t.Errorf("expected wrapped SDK error, got %v", err)
		}
	})
}

func TestParseWebhookEvent(t *testing.T) {
	const secret = "whsec_test"
	payload := fmt.Sprintf(`{"id":"evt_1","type":%q,"data":{"object":{"id":"cs_9","customer":"cus_9"}}}`, EventCheckoutCompleted)

	t.Run("should accept a correctly signed payload", func(t *testing.T) {
		// Arrange
		signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
			Payload:   []byte(payload),
			Secret:    secret,
			Timestamp: time.Now(),
			Scheme:    "v1",
		})

		// Act
		event, err := ParseWebhookEvent(signed.Payload, signed.Header, secret)

		// Assert
		if err != nil {
			t.Fatalf("ParseWebhookEvent failed: %v", err)
		}
		if string(event.Type) != EventCheckoutCompleted {
			t.Errorf("expected %s, got %s", EventCheckoutCompleted, event.Type)
		}

		completed, err := ExtractCheckoutCompleted(event)
		if err != nil {
			t.Fatalf("ExtractCheckoutCompleted failed: %v", err)
		}
		if completed.SessionRef != "cs_9" || completed.CustomerRef != "cus_9" {
			t.Errorf("wrong event fields: %+v", completed)
		}
	})

	t.Run("should reject a payload signed with the wrong secret", func(t *testing.T) {
		// Arrange
		signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
			Payload:   []byte(payload),
			Secret:    "whsec_other",
			Timestamp: time.Now(),
			Scheme:    "v1",
		})

		// Act
		_, err := ParseWebhookEvent(signed.Payload, signed.Header, secret)

		// Assert
		if err == nil {
			t.Fatal("expected signature verification to fail")
		}
	})
}
