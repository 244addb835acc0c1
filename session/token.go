package session

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// tokenExpiry reads the exp claim of a JWT without verifying it. Verification
// is the service's job; the client only needs to know when to ask the user to
// log in again. Opaque tokens have no known expiry.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	switch exp := claims["exp"].(type) {
	case float64:
		return time.Unix(int64(exp), 0).UTC()
	case json.Number:
		if v, err := exp.Int64(); err == nil {
			return time.Unix(v, 0).UTC()
		}
	}
	return time.Time{}
}
