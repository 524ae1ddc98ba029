package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService verifies the bearer tokens issued by the identity provider.
type JWTService interface {
	// ValidateToken validates the provided token string and extracts the claims.
	// Returns the claims containing user information if the token is valid,
	// or an error if validation fails (expired, invalid signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)

	// GenerateToken signs a token for userID that expires after lifetime.
	// Production tokens come from the identity provider; this serves local
	// development and tests.
	GenerateToken(ctx context.Context, userID uuid.UUID, lifetime time.Duration) (string, error)
}

// Claims represents the verified claims of a bearer token.
type Claims struct {
	// UserID is the unique identifier of the user the token was issued for.
	UserID uuid.UUID `json:"uid,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	Issuer    string    `json:"iss,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
