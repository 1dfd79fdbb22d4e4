package graph

import (
	"context"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"net/http"
	"strings"
	"sync"
)

const DefaultScope = "https://graph.microsoft.com/.default"

// DelegatedScopes are requested by the device flow, offline_access gives us a refresh token.
var DelegatedScopes = []string{
	"User.Read",
	"Mail.Read",
	"Calendars.Read",
	"Contacts.Read",
	"Tasks.ReadWrite",
	"offline_access",
}

// TokenProvider hands out a bearer token for Microsoft Graph, failures are AuthError.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Endpoint of the Microsoft identity platform v2.0 for a tenant.
func Endpoint(authority string, tenantID string) oauth2.Endpoint {
	base := strings.TrimRight(authority, "/") + "/" + tenantID + "/oauth2/v2.0"
	return oauth2.Endpoint{
		AuthURL:       base + "/authorize",
		TokenURL:      base + "/token",
		DeviceAuthURL: base + "/devicecode",
		AuthStyle:     oauth2.AuthStyleInParams,
	}
}

func authError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		result := &models.Error{Kind: models.AuthError, Body: retrieveErr.ErrorDescription}
		if result.Body == "" {
			result.Body = strings.TrimSpace(string(retrieveErr.Body))
		}
		if retrieveErr.Response != nil {
			result.Status = retrieveErr.Response.StatusCode
		}
		return result
	}
	if models.KindOf(err) == models.AuthError {
		return err
	}
	return models.NewError(models.AuthError, err)
}

func withHTTPClient(ctx context.Context, httpClient *http.Client) context.Context {
	if httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, httpClient)
}

type clientCredentials struct {
	config     *clientcredentials.Config
	tenantID   string
	httpClient *http.Client

	mu     sync.Mutex
	source oauth2.TokenSource
}

// NewClientCredentials is the app-only login with a client secret.
// Tokens are reused until they expire.
func NewClientCredentials(authority string, tenantID string, clientID string, clientSecret string, httpClient *http.Client) TokenProvider {
	return &clientCredentials{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     Endpoint(authority, tenantID).TokenURL,
			Scopes:       []string{DefaultScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		tenantID:   tenantID,
		httpClient: httpClient,
	}
}

func (c *clientCredentials) Token(_ context.Context) (string, error) {
	if c.config.ClientID == "" || c.config.ClientSecret == "" || c.tenantID == "" {
		return "", models.Errorf(models.AuthError, "MS_CLIENT_ID, MS_CLIENT_SECRET and MS_TENANT_ID are required for client credentials")
	}

	c.mu.Lock()
	if c.source == nil {
		// The source outlives the request, so it gets its own context.
		c.source = c.config.TokenSource(withHTTPClient(context.Background(), c.httpClient))
	}
	source := c.source
	c.mu.Unlock()

	tok, err := source.Token()
	if err != nil {
		return "", authError(err)
	}
	return tok.AccessToken, nil
}

type DeviceCode struct {
	config      *oauth2.Config
	tenantID    string
	cache       *TokenCache
	httpClient  *http.Client
	interactive bool

	// Prompt shows the user where to enter the code, logs by default.
	Prompt func(resp *oauth2.DeviceAuthResponse)

	mu sync.Mutex
}

// NewDeviceCode logs in as a user. Tokens live in cache, when interactive is false
// and the cache has nothing usable Token fails instead of starting a login.
func NewDeviceCode(authority string, tenantID string, clientID string, cache *TokenCache, httpClient *http.Client, interactive bool) *DeviceCode {
	return &DeviceCode{
		config: &oauth2.Config{
			ClientID: clientID,
			Endpoint: Endpoint(authority, tenantID),
			Scopes:   DelegatedScopes,
		},
		tenantID:    tenantID,
		cache:       cache,
		httpClient:  httpClient,
		interactive: interactive,
		Prompt:      logPrompt,
	}
}

func logPrompt(resp *oauth2.DeviceAuthResponse) {
	log.Warn().Str("verification_uri", resp.VerificationURI).Str("user_code", resp.UserCode).Time("expiry", resp.Expiry).Msg("Microsoft login required, open the page and enter the code")
}

func (d *DeviceCode) configured() error {
	if d.config.ClientID == "" || d.tenantID == "" {
		return models.Errorf(models.AuthError, "MS_CLIENT_ID and MS_TENANT_ID are required for the device login")
	}
	return nil
}

func (d *DeviceCode) Token(ctx context.Context) (string, error) {
	if err := d.configured(); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ctx = withHTTPClient(ctx, d.httpClient)

	cached, err := d.cache.Load()
	if err != nil {
		log.Warn().Err(err).Msg("ignoring unreadable token cache")
		cached = nil
	}
	if cached != nil {
		if cached.Valid() {
			return cached.AccessToken, nil
		}
		if cached.RefreshToken != "" {
			tok, refreshErr := d.config.TokenSource(ctx, cached).Token()
			if refreshErr == nil {
				d.persist(tok)
				log.Info().Time("expiry", tok.Expiry).Msg("Microsoft token refreshed")
				return tok.AccessToken, nil
			}
			log.Warn().Err(refreshErr).Msg("Microsoft token refresh failed")
		}
	}

	if !d.interactive {
		return "", models.Errorf(models.AuthError, "no usable token in %s, run graph_login first", d.cache.Path())
	}
	tok, err := d.login(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Login always runs the device flow and stores the result.
func (d *DeviceCode) Login(ctx context.Context) (*oauth2.Token, error) {
	if err := d.configured(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.login(withHTTPClient(ctx, d.httpClient))
}

func (d *DeviceCode) login(ctx context.Context) (*oauth2.Token, error) {
	resp, err := d.config.DeviceAuth(ctx)
	if err != nil {
		return nil, authError(errors.Wrap(err, "cannot start device login"))
	}
	if resp.UserCode == "" {
		return nil, models.Errorf(models.AuthError, "device login returned no user code")
	}
	d.Prompt(resp)

	tok, err := d.config.DeviceAccessToken(ctx, resp)
	if err != nil {
		return nil, authError(errors.Wrap(err, "device login failed"))
	}
	d.persist(tok)
	log.Info().Time("expiry", tok.Expiry).Msg("Microsoft login successful, token stored")
	return tok, nil
}

func (d *DeviceCode) persist(tok *oauth2.Token) {
	if err := d.cache.Save(tok); err != nil {
		log.Error().Err(err).Msg("cannot store Microsoft token")
	}
}

type chain struct {
	providers []TokenProvider
}

// NewChain tries the providers in order and returns the first token.
func NewChain(providers ...TokenProvider) TokenProvider {
	return &chain{providers: providers}
}

func (c *chain) Token(ctx context.Context) (token string, err error) {
	err = models.Errorf(models.AuthError, "no credential provider configured")
	for i, provider := range c.providers {
		token, err = provider.Token(ctx)
		if err == nil {
			return
		}
		if i < len(c.providers)-1 {
			log.Warn().Err(err).Int("provider", i).Msg("credential provider failed, trying the next one")
		}
	}
	return "", err
}
