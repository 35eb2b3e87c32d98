package model

import "time"

type Plan string

const (
	PlanTrial Plan = "trial"
	PlanFree  Plan = "free"
	PlanPro   Plan = "pro"
)

// Entitlement is the snapshot produced by one evaluation of an account.
// RequestsLimit is nil on unlimited plans (trial, pro); the JSON shape below
// is the payload body returned verbatim on quota denials.
type Entitlement struct {
	Plan               Plan       `json:"plan"`
	RequestsUsed       int        `json:"requests_used"`
	RequestsLimit      *int       `json:"requests_limit"`
	TrialEndsAt        *time.Time `json:"trial_ends_at"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at"`
	NextResetAt        *time.Time `json:"next_reset_at"`
	CanRequest         bool       `json:"can_make_request"`
}

// Unlimited reports whether the snapshot carries no request cap.
func (e Entitlement) Unlimited() bool { return e.RequestsLimit == nil }

// EntitlementConfig carries the plan parameters used by entitlement
// evaluation and checkout. Always injected through constructors; the zero
// value is not usable, start from DefaultEntitlementConfig.
type EntitlementConfig struct {
	TrialPeriod      time.Duration // length of the signup trial
	QuotaWindow      time.Duration // length of one free-tier quota window
	FreeRequestLimit int           // admitted requests per window on the free plan
	GrantPeriod      time.Duration // subscription time granted per confirmed payment
	PriceMinor       int64         // flat subscription price in minor units
	Currency         string
	SubscriptionType string // product label sent to the processor
}

func DefaultEntitlementConfig() EntitlementConfig {
	return EntitlementConfig{
		TrialPeriod:      7 * 24 * time.Hour,
		QuotaWindow:      30 * 24 * time.Hour,
		FreeRequestLimit: 20,
		GrantPeriod:      30 * 24 * time.Hour,
		PriceMinor:       999,
		Currency:         "usd",
		SubscriptionType: "pro_monthly",
	}
}
