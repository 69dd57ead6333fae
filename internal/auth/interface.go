package auth

import "rollsheet/internal/domain/models"

// Verifier turns a bearer token into an authenticated user.
type Verifier interface {
	// Verify validates a token string and returns the user it identifies.
	// Returns an error if the token is invalid, expired, or has an invalid signature.
	Verify(tokenString string) (models.User, error)
}
