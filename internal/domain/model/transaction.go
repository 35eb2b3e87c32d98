package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending" // checkout session created; awaiting processor outcome
	PaymentStatusPaid    PaymentStatus = "paid"    // processor confirmed payment
	PaymentStatusFailed  PaymentStatus = "failed"  // session expired or payment declined
)

// Terminal reports whether the status may never change again.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}

// Transaction records one checkout attempt against the payment processor.
// SessionRef is the processor's checkout-session id and is unique across all
// transactions; status moves pending -> paid|failed exactly once.
type Transaction struct {
	ID        string // UUID
	AccountID string // UUID of the performer account

	Amount   int64  // minor units, fixed at creation
	Currency string // ISO code, e.g. "usd"

	SessionRef       string // processor checkout-session id (unique)
	SubscriptionType string // product label carried in processor metadata, e.g. "pro_monthly"

	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time // set when paid
}
