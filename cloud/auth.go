package cloud

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-fermax-cloud/metrics"
	"github.com/jrsteele09/go-fermax-cloud/token"
	"golang.org/x/oauth2"
)

const (
	grantPassword     = "password"
	grantRefreshToken = "refresh_token"
)

// RefreshOutcome reports which path a token refresh took.
type RefreshOutcome int

const (
	RefreshFailed RefreshOutcome = iota
	Refreshed
	FellBackToLogin
)

func (o RefreshOutcome) String() string {
	switch o {
	case Refreshed:
		return "refreshed"
	case FellBackToLogin:
		return "fell_back_to_login"
	default:
		return "failed"
	}
}

// Login performs the password grant and replaces the token state.
// A rejected login returns *AuthError; a network failure returns *ConnectionError.
func (c *Client) Login(ctx context.Context) error {
	c.tokenLock.Lock()
	defer c.tokenLock.Unlock()
	return c.loginLocked(ctx)
}

// RefreshToken renews the access token with the refresh grant. A missing or
// rejected refresh token falls back to a full login; only that login can fail.
func (c *Client) RefreshToken(ctx context.Context) (RefreshOutcome, error) {
	c.tokenLock.Lock()
	defer c.tokenLock.Unlock()
	return c.refreshLocked(ctx)
}

// EnsureToken makes sure a valid access token is held, refreshing it when it is
// missing or expired. Concurrent callers share one refresh.
func (c *Client) EnsureToken(ctx context.Context) error {
	_, err := c.accessToken(ctx)
	return err
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenLock.Lock()
	defer c.tokenLock.Unlock()

	if !c.tokens.Valid(c.nowFunc()) {
		c.logger.Debug().Msg("token expired or missing, refreshing")
		if _, err := c.refreshLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.tokens.AccessToken, nil
}

// forceRefresh is used after a 401: the server rejected a token we considered valid.
func (c *Client) forceRefresh(ctx context.Context) (string, error) {
	c.tokenLock.Lock()
	defer c.tokenLock.Unlock()

	if _, err := c.refreshLocked(ctx); err != nil {
		return "", err
	}
	return c.tokens.AccessToken, nil
}

func (c *Client) loginLocked(ctx context.Context) error {
	creds := c.Credentials()
	c.logger.Debug().Str("email", creds.Email).Msg("attempting login")

	issuedAt := c.nowFunc()
	tok, err := c.oauth.PasswordCredentialsToken(c.oauthContext(ctx), creds.Email, creds.Password)
	if err != nil {
		c.metrics.ObserveTokenExchange(grantPassword, metrics.ResultFailure)
		loginErr := classifyLoginError(err)
		c.logger.Error().Err(loginErr).Msg("login failed")
		return loginErr
	}

	c.tokens = token.Issue(tok, issuedAt)
	c.metrics.ObserveTokenExchange(grantPassword, metrics.ResultSuccess)
	c.logger.Info().
		Dur("lifetime", token.Lifetime(tok, issuedAt)).
		Bool("refresh_token", c.tokens.HasRefreshToken()).
		Msg("login successful")
	return nil
}

func (c *Client) refreshLocked(ctx context.Context) (RefreshOutcome, error) {
	if !c.tokens.HasRefreshToken() {
		c.logger.Debug().Msg("no refresh token available, performing full login")
		return c.fallBackToLogin(ctx)
	}

	issuedAt := c.nowFunc()
	source := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: c.tokens.RefreshToken})
	tok, err := source.Token()
	if err != nil {
		c.metrics.ObserveTokenExchange(grantRefreshToken, metrics.ResultFallback)
		c.logger.Warn().
			Int("status", retrieveStatus(err)).
			Bool("network", isTransportError(err)).
			Msg("token refresh failed, will perform full login")
		return c.fallBackToLogin(ctx)
	}

	c.tokens = c.tokens.Renew(tok, issuedAt)
	c.metrics.ObserveTokenExchange(grantRefreshToken, metrics.ResultSuccess)
	c.logger.Info().Msg("token refreshed successfully")
	return Refreshed, nil
}

func (c *Client) fallBackToLogin(ctx context.Context) (RefreshOutcome, error) {
	if err := c.loginLocked(ctx); err != nil {
		return RefreshFailed, err
	}
	return FellBackToLogin, nil
}

// oauthContext routes the oauth2 token exchange through the client's transport.
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func classifyLoginError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &AuthError{
			StatusCode: retrieveStatus(err),
			Body:       truncate(retrieveErr.Body),
			Err:        err,
		}
	}
	if isTransportError(err) {
		return &ConnectionError{Op: "Login", Err: err}
	}
	return &AuthError{Err: err}
}

func retrieveStatus(err error) int {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return retrieveErr.Response.StatusCode
	}
	return 0
}
