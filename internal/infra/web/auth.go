package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"stagecall/internal/domain"
	"stagecall/internal/infra/logging"
)

// ===== Session/JWT primitives =====

type AuthConfig struct {
	HMACSecret   []byte
	CookieName   string
	CookieDomain string
	SecureCookie bool
	TTL          time.Duration
}

type AuthManager struct{ cfg AuthConfig }

func NewAuthManager(secret, cookieName, cookieDomain string, secure bool, ttl time.Duration) *AuthManager {
	if cookieName == "" {
		cookieName = "stagecall_session"
	}
	return &AuthManager{cfg: AuthConfig{
		HMACSecret:   []byte(secret),
		CookieName:   cookieName,
		CookieDomain: cookieDomain, // "" is fine for a host-only cookie
		SecureCookie: secure,       // true in prod (TLS)
		TTL:          ttl,
	}}
}

// SessionClaims carries the performer account id in the registered Subject.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// Mint signs a session token for the account and sets it as an HttpOnly
// cookie. The token is also returned so API clients can use a Bearer header
// instead.
func (a *AuthManager) Mint(w http.ResponseWriter, accountID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.cfg.HMACSecret)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    signed,
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		MaxAge:   int(a.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return signed, nil
}

func (a *AuthManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// ParseFromRequest extracts the account id from the Authorization header or
// the session cookie, header first.
func (a *AuthManager) ParseFromRequest(r *http.Request) (string, error) {
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	if c, err := r.Cookie(a.cfg.CookieName); err == nil {
		return a.parse(c.Value)
	}
	return "", domain.ErrInvalidCredentials
}

func (a *AuthManager) parse(tok string) (string, error) {
	claims := &SessionClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.cfg.HMACSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return "", domain.ErrInvalidCredentials
	}
	return claims.Subject, nil
}

type ctxKey int

const ctxAccountID ctxKey = iota

// AccountID returns the authenticated account id placed by Authenticate.
func AccountID(ctx context.Context) string {
	id, _ := ctx.Value(ctxAccountID).(string)
	return id
}

// Authenticate rejects requests without a valid session and stores the
// account id in the request context for handlers and log lines downstream.
func (a *AuthManager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, err := a.ParseFromRequest(r)
		if err != nil {
			writeError(w, domain.ErrInvalidCredentials)
			return
		}
		ctx := context.WithValue(r.Context(), ctxAccountID, accountID)
		ctx = logging.WithAccountID(ctx, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
