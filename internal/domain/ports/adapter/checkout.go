package adapter

import "context"

// SessionPaymentStatus is the provider-agnostic tri-state of a checkout
// session's payment outcome.
type SessionPaymentStatus string

const (
	SessionPaymentPending SessionPaymentStatus = "pending"
	SessionPaymentPaid    SessionPaymentStatus = "paid"
	SessionPaymentFailed  SessionPaymentStatus = "failed"
)

// CheckoutSpec describes the recurring flat-rate purchase handed to the
// processor when a session is created.
type CheckoutSpec struct {
	AccountID        string
	Email            string
	AmountMinor      int64
	Currency         string
	ProductName      string
	SubscriptionType string
	SuccessURL       string // carries the processor's session-id placeholder
	CancelURL        string
}

// CheckoutSession is the processor's answer to a create call.
type CheckoutSession struct {
	SessionRef  string // processor session id, persisted on the Transaction
	RedirectURL string // hosted checkout page the client is sent to
}

// SessionState is the live state of an existing session as reported by the
// processor on a status poll.
type SessionState struct {
	PaymentStatus SessionPaymentStatus
	AmountMinor   int64
	Currency      string
	CustomerRef   string // processor customer id, if assigned
}

// CheckoutGateway is the hex port for hosted-checkout payment processors.
type CheckoutGateway interface {
	Name() string

	// CreateSession creates a checkout session for spec and returns its id
	// plus the redirect URL. Failures are returned unchanged; no retries.
	CreateSession(ctx context.Context, spec CheckoutSpec) (CheckoutSession, error)

	// SessionStatus queries the processor for the session's current state.
	SessionStatus(ctx context.Context, sessionRef string) (SessionState, error)
}
