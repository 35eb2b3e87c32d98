package model

import (
	"strings"
	"time"

	"stagecall/internal/domain"

	"github.com/google/uuid"
)

// Account is a domain entity representing a performer in our system.
// CreatedAt is immutable after signup: it anchors both the trial window and
// the rolling free-tier quota window, so every entitlement decision for the
// lifetime of the account derives from it.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Slug         string

	// Display settings shown on the public request page. Writes are
	// plan-gated (trial/pro only); values already set remain visible.
	WelcomeMessage string
	ThemeColor     string
	TipLink        string

	CreatedAt time.Time

	// SubscriptionEndsAt is set/extended exclusively by payment confirmation.
	// A future value means the paid plan is active.
	SubscriptionEndsAt *time.Time

	// BillingCustomerRef is the payment processor's customer id. Written at
	// most once and never cleared afterwards.
	BillingCustomerRef *string
}

func NewAccount(id, email, passwordHash, displayName, slug string) (*Account, error) {
	if id == "" {
		id = uuid.NewString()
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || passwordHash == "" {
		return nil, domain.ErrInvalidArgument
	}
	if slug == "" {
		return nil, domain.ErrInvalidArgument
	}
	a := &Account{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Slug:         slug,
		CreatedAt:    time.Now(),
	}
	return a, nil
}

func (a *Account) IsZero() bool { return a == nil || a.ID == "" }

// SubscriptionActiveAt reports whether the paid plan covers the given instant.
func (a *Account) SubscriptionActiveAt(now time.Time) bool {
	return a.SubscriptionEndsAt != nil && now.Before(*a.SubscriptionEndsAt)
}
