package credentials

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiresAt reads the exp claim of a JWT access token. The signature is not
// verified; the backend remains the authority on validity.
func ExpiresAt(token string) (time.Time, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time.UTC(), true
}

// ExpiresWithin reports whether token expires within window of now. Opaque
// tokens never do.
func ExpiresWithin(token string, now time.Time, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	exp, ok := ExpiresAt(token)
	if !ok {
		return false
	}
	return exp.Sub(now) <= window
}
