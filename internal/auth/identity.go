package auth

import (
	"errors"
	"fmt"
	"time"

	"rollsheet/internal/domain"
	"rollsheet/internal/domain/models"

	"github.com/golang-jwt/jwt/v5"
)

const identityTokenLifetime = 365 * 24 * time.Hour

// IdentityCodec mints and parses the signed identity tokens carried in
// the session cookie. Tokens are signed with HS256 using a shared secret.
type IdentityCodec struct {
	secret []byte
	issuer string
}

type identityClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

func NewIdentityCodec(secret, issuer string) (*IdentityCodec, error) {
	if secret == "" {
		return nil, errors.New("identity secret cannot be empty")
	}
	return &IdentityCodec{secret: []byte(secret), issuer: issuer}, nil
}

// Mint signs a token identifying the given user.
func (c *IdentityCodec) Mint(user models.User, now time.Time) (string, error) {
	claims := identityClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  user.ID,
			Issuer:   user.Issuer,
			IssuedAt: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(
				now.Add(identityTokenLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign identity token: %w", err)
	}
	return signed, nil
}

// Verify parses a previously minted token back into a user. Only HS256
// tokens signed with this codec's secret are accepted.
func (c *IdentityCodec) Verify(tokenString string) (models.User, error) {
	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(_ *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil || !token.Valid {
		return models.User{}, domain.ErrUnauthorized
	}
	if claims.Subject == "" {
		return models.User{}, domain.ErrUnauthorized
	}

	return models.User{
		ID:       claims.Subject,
		Issuer:   claims.Issuer,
		Username: claims.Username,
	}, nil
}
