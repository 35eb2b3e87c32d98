package payment

import (
	"encoding/json"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// WebhookBodyLimit caps the accepted webhook payload size.
const WebhookBodyLimit = 1024 * 1024 // 1 MiB

// EventCheckoutCompleted is the only event type this service acts on; all
// other verified events are acknowledged and dropped.
const EventCheckoutCompleted = "checkout.session.completed"

// CheckoutCompletedEvent is the slice of a checkout.session.completed
// payload that payment confirmation consumes.
type CheckoutCompletedEvent struct {
	SessionRef  string
	CustomerRef string
	AmountMinor int64
	Currency    string
}

// ParseWebhookEvent verifies the Stripe-Signature header against the
// endpoint secret and returns the decoded event. API version mismatches are
// tolerated so a library upgrade does not start bouncing deliveries.
func ParseWebhookEvent(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// ExtractCheckoutCompleted pulls the session and customer refs out of a
// verified checkout.session.completed event.
func ExtractCheckoutCompleted(event stripe.Event) (CheckoutCompletedEvent, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return CheckoutCompletedEvent{}, fmt.Errorf("decode checkout.session: %w", err)
	}
	out := CheckoutCompletedEvent{
		SessionRef:  sess.ID,
		AmountMinor: sess.AmountTotal,
		Currency:    string(sess.Currency),
	}
	if sess.Customer != nil {
		out.CustomerRef = sess.Customer.ID
	}
	return out, nil
}
