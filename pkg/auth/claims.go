package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload is the application data embedded into an access token.
type AccessTokenPayload struct {
	UserID uuid.UUID
	JTI    string
}

// AccessTokenClaims are the typed JWT claims the API mints and verifies.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"uid"`
	jwt.RegisteredClaims
}
