package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"rollsheet/internal/auth"
	"rollsheet/internal/domain/models"
	"rollsheet/internal/httputil"

	"github.com/google/uuid"
)

const (
	identityCookieName   = "auth"
	identityCookieMaxAge = 365 * 24 * time.Hour
)

// IdentityConfig configures the identity middleware.
type IdentityConfig struct {
	Codec *auth.IdentityCodec
	// External verifies bearer tokens from a third-party issuer.
	// Optional; when nil, bearer tokens are ignored.
	External auth.Verifier
	// Issuer is recorded on users minted by this middleware.
	Issuer string
	// CookieDomain scopes the identity cookie. Empty means host-only.
	CookieDomain string
	// SecureCookies marks the identity cookie Secure. Disabled for
	// plain-HTTP local development.
	SecureCookies bool
	Logger        *slog.Logger
}

// Identity resolves the caller's user and stores it in the request
// context. First-time visitors get a fresh anonymous identity, minted
// and set as a signed cookie on the response. Every request downstream
// of this middleware carries a user.
func Identity(cfg IdentityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, ok := userFromCookie(cfg, r); ok {
				next.ServeHTTP(w, httputil.WithUser(r, user))
				return
			}

			if user, ok := userFromBearer(cfg, r); ok {
				cfg.setCookie(w, user)
				next.ServeHTTP(w, httputil.WithUser(r, user))
				return
			}

			user := models.User{
				ID:     uuid.NewString(),
				Issuer: cfg.Issuer,
			}
			cfg.setCookie(w, user)
			cfg.Logger.Debug("minted anonymous identity", "user_id", user.ID)

			next.ServeHTTP(w, httputil.WithUser(r, user))
		})
	}
}

func userFromCookie(cfg IdentityConfig, r *http.Request) (models.User, bool) {
	cookie, err := r.Cookie(identityCookieName)
	if err != nil {
		return models.User{}, false
	}

	user, err := cfg.Codec.Verify(cookie.Value)
	if err != nil {
		// Invalid or expired cookie. A fresh identity is minted
		// instead of failing the request.
		cfg.Logger.Debug("identity cookie rejected", "error", err)
		return models.User{}, false
	}
	return user, true
}

func userFromBearer(cfg IdentityConfig, r *http.Request) (models.User, bool) {
	if cfg.External == nil {
		return models.User{}, false
	}

	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return models.User{}, false
	}

	user, err := cfg.External.Verify(token)
	if err != nil {
		cfg.Logger.Debug("bearer token rejected", "error", err)
		return models.User{}, false
	}
	return user, true
}

func (cfg IdentityConfig) setCookie(w http.ResponseWriter, user models.User) {
	token, err := cfg.Codec.Mint(user, time.Now())
	if err != nil {
		cfg.Logger.Error("failed to mint identity token", "error", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     identityCookieName,
		Value:    token,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   int(identityCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
