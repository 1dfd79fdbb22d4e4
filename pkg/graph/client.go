package graph

import (
	"context"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	maxErrorBody = 512

	// maxResponseBytes caps every Graph response, $top keeps real answers far below it.
	maxResponseBytes = 4 << 20
)

// Client reads Microsoft Graph v1.0 with a caller-supplied bearer token.
// No retries, no pagination beyond $top.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) get(ctx context.Context, token string, path string, query url.Values) (gjson.Result, error) {
	startTime := time.Now()
	if token == "" {
		return gjson.Result{}, models.Errorf(models.AuthError, "missing Microsoft Graph token")
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "cannot build request for %s", path)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, models.NewError(models.VendorError, errors.Wrapf(err, "GET %s", path))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Str("path", path).Msg("cannot close Microsoft Graph body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return gjson.Result{}, models.NewError(models.VendorError, errors.Wrapf(err, "cannot read %s", path))
	}
	if len(body) > maxResponseBytes {
		return gjson.Result{}, models.Errorf(models.VendorError, "response from %s exceeds %d bytes", path, maxResponseBytes)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Str("path", path).Int("status", resp.StatusCode).Msg("Microsoft Graph request failed")
		return gjson.Result{}, models.NewVendorError(resp.StatusCode, truncate(string(body), maxErrorBody))
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, models.Errorf(models.VendorError, "invalid JSON from %s", path)
	}

	log.Debug().Str("path", path).Dur("duration", time.Since(startTime)).Msg("Microsoft Graph request done")
	return gjson.ParseBytes(body), nil
}

func top(limit int) url.Values {
	query := url.Values{}
	if limit > 0 {
		query.Set("$top", strconv.Itoa(limit))
	}
	return query
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + " ... (truncated)"
}

func orDefault(value gjson.Result, fallback string) string {
	if s := strings.TrimSpace(value.String()); s != "" {
		return s
	}
	return fallback
}

// Me returns the display name of the signed-in user.
func (c *Client) Me(ctx context.Context, token string) (string, error) {
	result, err := c.get(ctx, token, "/me", nil)
	if err != nil {
		return "", err
	}
	return orDefault(result.Get("displayName"), result.Get("userPrincipalName").String()), nil
}
