package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is an authenticated player session issued by the backend.
type Session struct {
	Message          string  `json:"message"`
	PlayerID         string  `json:"playerId"`
	Username         string  `json:"username"`
	Token            string  `json:"token"`
	SelectedSkinName *string `json:"selectedSkinName"`
}

// ExpiresAt returns the token's exp claim. The token is not verified here;
// the backend is the only party that can do that. ok is false when the token
// is opaque or carries no expiry.
func (s *Session) ExpiresAt() (time.Time, bool) {
	return TokenExpiry(s.Token)
}

// TokenExpiry reads the exp claim from a JWT without verifying it.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ExpiresWithin reports whether the token expires within d of now.
// Tokens without a readable expiry never report true.
func (s *Session) ExpiresWithin(d time.Duration, now time.Time) bool {
	exp, ok := s.ExpiresAt()
	if !ok {
		return false
	}
	return !exp.After(now.Add(d))
}
