package token

import (
	"time"

	"golang.org/x/oauth2"
)

// SafetyMargin is subtracted from every server-reported lifetime so a token is
// renewed before the server starts rejecting it.
const SafetyMargin = 60 * time.Second

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// State is the session's current token material. The zero value holds no token
// and is never valid.
type State struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the access token is present and now is before ExpiresAt.
func (s State) Valid(now time.Time) bool {
	return s.AccessToken != "" && now.Before(s.ExpiresAt)
}

// HasRefreshToken reports whether a refresh grant can be attempted.
func (s State) HasRefreshToken() bool {
	return s.RefreshToken != ""
}

// Issue builds the state for a token obtained through a full login.
func Issue(tok *oauth2.Token, issuedAt time.Time) State {
	return State{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    ExpiresAt(tok, issuedAt),
	}
}

// Renew applies a refresh grant response. The previous refresh token is kept
// when the server does not rotate it.
func (s State) Renew(tok *oauth2.Token, issuedAt time.Time) State {
	next := State{
		AccessToken:  tok.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    ExpiresAt(tok, issuedAt),
	}
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	return next
}

// ExpiresAt is issuedAt plus the token lifetime minus SafetyMargin.
func ExpiresAt(tok *oauth2.Token, issuedAt time.Time) time.Time {
	return issuedAt.Add(Lifetime(tok, issuedAt) - SafetyMargin)
}
