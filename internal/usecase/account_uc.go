// File: internal/usecase/account_uc.go
package usecase

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stagecall/internal/domain"
	"stagecall/internal/domain/model"
	"stagecall/internal/domain/ports/repository"
	"stagecall/internal/infra/logging"
	"stagecall/pkg/hash"
)

// Compile-time check
var _ AccountUseCase = (*accountUC)(nil)

// AccountUseCase owns performer identity: signup, login and the profile
// fields rendered on the public request page.
type AccountUseCase interface {
	Register(ctx context.Context, in RegisterInput) (*model.Account, error)
	Login(ctx context.Context, email, password string) (*model.Account, error)
	Profile(ctx context.Context, accountID string) (*model.Account, error)
	BySlug(ctx context.Context, slug string) (*model.Account, error)
	// UpdateSettings applies a partial profile update. Page customization
	// fields (welcome message, theme color, tip link) are reserved for
	// trial and pro plans; touching them on a free plan fails with
	// ErrUpgradeRequired before anything is written.
	UpdateSettings(ctx context.Context, accountID string, in SettingsInput) (*model.Account, error)
}

// RegisterInput carries the signup form. Slug may be empty, in which case
// one is derived from the display name.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Slug        string
}

// SettingsInput is a partial update; nil fields are left untouched.
type SettingsInput struct {
	DisplayName    *string
	WelcomeMessage *string
	ThemeColor     *string
	TipLink        *string
}

func (in SettingsInput) touchesCustomization() bool {
	return in.WelcomeMessage != nil || in.ThemeColor != nil || in.TipLink != nil
}

type accountUC struct {
	accounts    repository.AccountRepository
	entitlement EntitlementUseCase
	log         *zerolog.Logger
}

func NewAccountUseCase(accounts repository.AccountRepository, entitlement EntitlementUseCase, logger *zerolog.Logger) *accountUC {
	return &accountUC{accounts: accounts, entitlement: entitlement, log: logger}
}

func (u *accountUC) Register(ctx context.Context, in RegisterInput) (*model.Account, error) {
	defer logging.TraceDuration(u.log, "AccountUC.Register")()

	if len(in.Password) < 8 {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := u.accounts.FindByEmail(ctx, repository.NoTX, strings.ToLower(strings.TrimSpace(in.Email))); err == nil {
		return nil, domain.ErrEmailTaken
	} else if err != domain.ErrNotFound {
		return nil, err
	}

	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(in.DisplayName)
	}
	if slug == "" {
		slug = "performer"
	}
	slug, err := u.claimSlug(ctx, slug, in.Slug != "")
	if err != nil {
		return nil, err
	}

	hashed, err := hash.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	acct, err := model.NewAccount("", in.Email, hashed, in.DisplayName, slug)
	if err != nil {
		return nil, err
	}
	if err := u.accounts.Save(ctx, repository.NoTX, acct); err != nil {
		// The unique indexes are the source of truth; the pre-checks above
		// only exist for friendlier errors.
		if err == domain.ErrAlreadyExists {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}

	u.log.Info().Str("account_id", acct.ID).Str("slug", acct.Slug).Msg("account registered")
	return acct, nil
}

// claimSlug ensures the slug is free. When the slug was auto-derived a short
// random suffix is appended on collision; an explicitly requested slug fails
// instead.
func (u *accountUC) claimSlug(ctx context.Context, slug string, explicit bool) (string, error) {
	_, err := u.accounts.FindBySlug(ctx, repository.NoTX, slug)
	if err == domain.ErrNotFound {
		return slug, nil
	}
	if err != nil {
		return "", err
	}
	if explicit {
		return "", domain.ErrSlugTaken
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	candidate := slug + "-" + suffix
	if _, err := u.accounts.FindBySlug(ctx, repository.NoTX, candidate); err == domain.ErrNotFound {
		return candidate, nil
	} else if err != nil {
		return "", err
	}
	return "", domain.ErrSlugTaken
}

func (u *accountUC) Login(ctx context.Context, email, password string) (*model.Account, error) {
	defer logging.TraceDuration(u.log, "AccountUC.Login")()

	acct, err := u.accounts.FindByEmail(ctx, repository.NoTX, strings.ToLower(strings.TrimSpace(email)))
	if err == domain.ErrNotFound {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !hash.CheckPasswordHash(password, acct.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return acct, nil
}

func (u *accountUC) Profile(ctx context.Context, accountID string) (*model.Account, error) {
	defer logging.TraceDuration(u.log, "AccountUC.Profile")()
	return u.accounts.FindByID(ctx, repository.NoTX, accountID)
}

func (u *accountUC) BySlug(ctx context.Context, slug string) (*model.Account, error) {
	defer logging.TraceDuration(u.log, "AccountUC.BySlug")()
	return u.accounts.FindBySlug(ctx, repository.NoTX, Slugify(slug))
}

func (u *accountUC) UpdateSettings(ctx context.Context, accountID string, in SettingsInput) (*model.Account, error) {
	defer logging.TraceDuration(u.log, "AccountUC.UpdateSettings")()

	if in.touchesCustomization() {
		if err := u.entitlement.RequireCustomization(ctx, accountID); err != nil {
			return nil, err
		}
	}
	acct, err := u.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return nil, err
	}
	if in.DisplayName != nil && strings.TrimSpace(*in.DisplayName) != "" {
		acct.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	if in.WelcomeMessage != nil {
		acct.WelcomeMessage = strings.TrimSpace(*in.WelcomeMessage)
	}
	if in.ThemeColor != nil {
		acct.ThemeColor = strings.TrimSpace(*in.ThemeColor)
	}
	if in.TipLink != nil {
		acct.TipLink = strings.TrimSpace(*in.TipLink)
	}
	if err := u.accounts.Save(ctx, repository.NoTX, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// Slugify lowers the input and collapses anything outside ASCII [a-z0-9]
// into single hyphens. It can return "" for inputs with no usable characters.
func Slugify(s string) string {
	var b strings.Builder
	prevHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
