package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rollsheet/internal/domain"
	"rollsheet/internal/domain/models"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// JWKSVerifier implements Verifier for tokens issued by an external
// identity provider, validated against the provider's JWKS endpoint.
type JWKSVerifier struct {
	jwks   keyfunc.Keyfunc
	issuer string
	logger *slog.Logger
}

type externalClaims struct {
	Username string `json:"preferred_username"`
	jwt.RegisteredClaims
}

// NewJWKSVerifier creates a verifier that fetches public keys from the
// issuer's JWKS endpoint. Keys are cached and refreshed automatically
// based on HTTP cache headers.
func NewJWKSVerifier(jwksURL, issuer string, logger *slog.Logger) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	jwks, err := keyfunc.NewDefaultCtx(context.Background(), []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("JWKS verifier initialized", "jwks_url", jwksURL, "issuer", issuer)

	return &JWKSVerifier{
		jwks:   jwks,
		issuer: issuer,
		logger: logger,
	}, nil
}

// Verify validates an externally issued bearer token and maps its
// claims onto a user. Only asymmetric algorithms are accepted.
func (v *JWKSVerifier) Verify(tokenString string) (models.User, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &externalClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.Keyfunc, opts...)
	if err != nil {
		v.logger.Debug("external token rejected", "error", err)
		return models.User{}, domain.ErrUnauthorized
	}
	if !token.Valid {
		return models.User{}, domain.ErrUnauthorized
	}

	if claims.Subject == "" {
		v.logger.Debug("external token missing subject claim")
		return models.User{}, domain.ErrUnauthorized
	}

	return models.User{
		ID:       claims.Subject,
		Issuer:   v.issuer,
		Username: claims.Username,
	}, nil
}
