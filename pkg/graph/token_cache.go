package graph

import (
	"encoding/json"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/oauth2"
	"os"
	"time"
)

// CachedToken is the on-disk layout, the `token` key stays compatible with caches holding nothing else.
type CachedToken struct {
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

type TokenCache struct {
	fs   afero.Fs
	path string
}

func NewTokenCache(fs afero.Fs, path string) *TokenCache {
	return &TokenCache{fs: fs, path: path}
}

func (c *TokenCache) Path() string {
	return c.path
}

// Load returns nil without an error when there is no cache yet.
// A cache without expiry is treated as never expiring.
func (c *TokenCache) Load() (*oauth2.Token, error) {
	data, err := afero.ReadFile(c.fs, c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read token cache %s", c.path)
	}

	var cached CachedToken
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, errors.Wrapf(err, "corrupted token cache %s", c.path)
	}
	if cached.AccessToken == "" && cached.RefreshToken == "" {
		return nil, nil
	}
	return &oauth2.Token{
		AccessToken:  cached.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: cached.RefreshToken,
		Expiry:       cached.Expiry,
	}, nil
}

// Save replaces the cache file through a rename so readers never see half a file.
func (c *TokenCache) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(CachedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	})
	if err != nil {
		return errors.Wrap(err, "cannot encode token cache")
	}
	tmpPath := c.path + ".tmp"
	if err := afero.WriteFile(c.fs, tmpPath, data, 0o600); err != nil {
		return errors.Wrapf(err, "cannot write token cache %s", tmpPath)
	}
	if err := c.fs.Rename(tmpPath, c.path); err != nil {
		return errors.Wrapf(err, "cannot move token cache into %s", c.path)
	}
	return nil
}
