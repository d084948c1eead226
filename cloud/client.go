package cloud

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-fermax-cloud/metrics"
	"github.com/jrsteele09/go-fermax-cloud/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	DefaultOAuthBaseURL = "https://oauth-pro-duoxme.fermax.io"
	DefaultAPIBaseURL   = "https://pro-duoxme.fermax.io"

	tokenPath = "/oauth/token"

	// base64(client_id:client_secret) of the public mobile app identity. It is the
	// same for every user and identifies the app, not the account.
	publicClientIdentity = "ZHB2N2lxejZlZTVtYXptMWlxOWR3MWQ0MnNseXV0NDhrajBtcDVmdm81OGo1aWg6Yzd5bGtxcHVqd2FoODV5aG5wcnYwd2R2eXp1dGxjbmt3NHN6OTBidWxkYnVsazE="
)

// Credentials are the account email and password used for the password grant.
type Credentials struct {
	Email    string
	Password string
}

// Client is an authenticated session against the Fermax cloud API.
// It owns the token state; all token mutation happens under tokenLock.
type Client struct {
	httpClient   *http.Client
	oauthBaseURL string
	apiBaseURL   string
	clientID     string
	clientSecret string
	oauth        *oauth2.Config
	logger       zerolog.Logger
	metrics      *metrics.Collector
	nowFunc      func() time.Time

	credsLock sync.RWMutex
	creds     Credentials

	tokenLock sync.Mutex
	tokens    token.State
}

type Option func(*Client)

// WithHTTPClient replaces the default transport. The mobile identity headers are
// still added to every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = wrapHTTPClient(hc)
	}
}

func WithBaseURLs(oauthBaseURL, apiBaseURL string) Option {
	return func(c *Client) {
		if oauthBaseURL != "" {
			c.oauthBaseURL = strings.TrimSuffix(oauthBaseURL, "/")
		}
		if apiBaseURL != "" {
			c.apiBaseURL = strings.TrimSuffix(apiBaseURL, "/")
		}
	}
}

// WithClientIdentity overrides the public app client id and secret sent as
// Basic auth to the token endpoint.
func WithClientIdentity(clientID, clientSecret string) Option {
	return func(c *Client) {
		c.clientID = clientID
		c.clientSecret = clientSecret
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithNowFunc sets the clock used for token expiry (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(c *Client) {
		c.nowFunc = now
	}
}

// New creates a client for the given account. No network call is made until
// the first operation or an explicit Login.
func New(creds Credentials, options ...Option) (*Client, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}

	clientID, clientSecret := defaultClientIdentity()
	c := &Client{
		httpClient:   newHTTPClient(),
		oauthBaseURL: DefaultOAuthBaseURL,
		apiBaseURL:   DefaultAPIBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       log.Logger,
		nowFunc:      token.NowTimeFunc,
		creds:        creds,
	}

	for _, opt := range options {
		opt(c)
	}

	c.oauth = &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.oauthBaseURL + tokenPath,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	return c, nil
}

// Credentials returns the account currently used for login.
func (c *Client) Credentials() Credentials {
	c.credsLock.RLock()
	defer c.credsLock.RUnlock()
	return c.creds
}

// SetCredentials rotates the account credentials and discards the current
// tokens, so the next operation performs a fresh login.
func (c *Client) SetCredentials(creds Credentials) error {
	if err := creds.validate(); err != nil {
		return err
	}

	c.tokenLock.Lock()
	defer c.tokenLock.Unlock()

	c.credsLock.Lock()
	c.creds = creds
	c.credsLock.Unlock()

	c.tokens = token.State{}
	c.logger.Info().Msg("credentials rotated; session reset")
	return nil
}

func (cr Credentials) validate() error {
	if strings.TrimSpace(cr.Email) == "" {
		return errors.New("[cloud Credentials] email is required")
	}
	if cr.Password == "" {
		return errors.New("[cloud Credentials] password is required")
	}
	return nil
}

func defaultClientIdentity() (string, string) {
	decoded, err := base64.StdEncoding.DecodeString(publicClientIdentity)
	if err != nil {
		return "", ""
	}
	clientID, clientSecret, _ := strings.Cut(string(decoded), ":")
	return clientID, clientSecret
}
