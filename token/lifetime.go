package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// DefaultLifetime applies when the token response carries no usable expires_in
// and the access token is not a JWT with an exp claim.
const DefaultLifetime = time.Hour

// Lifetime returns how long tok is valid from issuedAt, before the safety margin.
func Lifetime(tok *oauth2.Token, issuedAt time.Time) time.Duration {
	if tok.ExpiresIn > 0 {
		return time.Duration(tok.ExpiresIn) * time.Second
	}
	if exp, ok := jwtExpiry(tok.AccessToken); ok && exp.After(issuedAt) {
		return exp.Sub(issuedAt)
	}
	return DefaultLifetime
}

// jwtExpiry reads the exp claim without verifying the signature. The access
// token is opaque to this client; exp is only a hint for scheduling renewal.
func jwtExpiry(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
