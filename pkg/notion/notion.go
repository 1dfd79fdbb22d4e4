package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	APIVersion     = "2022-06-28"

	// TitleProperty is the title column of the notes database.
	TitleProperty = "Name"

	maxResponseBytes = 4 << 20
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	databaseID string
}

// NewClient does not fail on missing credentials, every call returns an AuthError instead.
func NewClient(httpClient *http.Client, baseURL string, token string, databaseID string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		databaseID: databaseID,
	}
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (gjson.Result, error) {
	startTime := time.Now()
	if c.token == "" {
		return gjson.Result{}, models.Errorf(models.AuthError, "NOTION_TOKEN is not set")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "cannot encode notion payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "cannot build request for %s", path)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, models.NewError(models.VendorError, errors.Wrapf(err, "POST %s", path))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Str("path", path).Msg("cannot close Notion body")
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return gjson.Result{}, models.NewError(models.VendorError, errors.Wrapf(err, "cannot read %s", path))
	}
	if len(respBody) > maxResponseBytes {
		return gjson.Result{}, models.Errorf(models.VendorError, "response from %s exceeds %d bytes", path, maxResponseBytes)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Str("path", path).Int("status", resp.StatusCode).Str("code", gjson.GetBytes(respBody, "code").String()).Msg("Notion request failed")
		return gjson.Result{}, models.NewVendorError(resp.StatusCode, strings.TrimSpace(gjson.GetBytes(respBody, "message").String()+" "+gjson.GetBytes(respBody, "code").String()))
	}

	log.Debug().Str("path", path).Dur("duration", time.Since(startTime)).Msg("Notion request done")
	return gjson.ParseBytes(respBody), nil
}

func (c *Client) requireDatabase() error {
	if c.databaseID == "" {
		return models.Errorf(models.AuthError, "NOTION_DATABASE_ID is not set")
	}
	return nil
}

// pageTitle concatenates the plain text of the first title property.
func pageTitle(page gjson.Result) string {
	var title string
	page.Get("properties").ForEach(func(_, property gjson.Result) bool {
		if property.Get("type").String() != "title" {
			return true
		}
		var sb strings.Builder
		for _, part := range property.Get("title").Array() {
			sb.WriteString(part.Get("plain_text").String())
		}
		title = strings.TrimSpace(sb.String())
		return false
	})
	return title
}

// Notes lists the first pages of the notes database.
func (c *Client) Notes(ctx context.Context, limit int) ([]string, error) {
	if err := c.requireDatabase(); err != nil {
		return nil, err
	}
	payload := map[string]interface{}{}
	if limit > 0 {
		payload["page_size"] = limit
	}
	result, err := c.post(ctx, "/databases/"+url.PathEscape(c.databaseID)+"/query", payload)
	if err != nil {
		return nil, err
	}

	lines := []string{}
	result.Get("results").ForEach(func(_, page gjson.Result) bool {
		title := pageTitle(page)
		if title == "" {
			title = "Ohne Titel"
		}
		lines = append(lines, "🗒️ "+title)
		return true
	})
	return lines, nil
}

// CreateNote adds a page with the given title and returns the title Notion stored.
func (c *Client) CreateNote(ctx context.Context, title string) (string, error) {
	if err := c.requireDatabase(); err != nil {
		return "", err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Neue Notiz"
	}
	payload := map[string]interface{}{
		"parent": map[string]string{"database_id": c.databaseID},
		"properties": map[string]interface{}{
			TitleProperty: map[string]interface{}{
				"title": []interface{}{
					map[string]interface{}{"text": map[string]string{"content": title}},
				},
			},
		},
	}
	result, err := c.post(ctx, "/pages", payload)
	if err != nil {
		return "", err
	}
	if stored := pageTitle(result); stored != "" {
		title = stored
	}
	log.Info().Str("page_id", result.Get("id").String()).Msg("Notion page created")
	return title, nil
}

type Database struct {
	ID    string
	Title string
}

// Databases searches every database shared with the integration, used to find NOTION_DATABASE_ID.
func (c *Client) Databases(ctx context.Context) ([]Database, error) {
	result, err := c.post(ctx, "/search", map[string]interface{}{
		"filter": map[string]string{"property": "object", "value": "database"},
	})
	if err != nil {
		return nil, err
	}

	var databases []Database
	for _, db := range result.Get("results").Array() {
		var sb strings.Builder
		for _, part := range db.Get("title").Array() {
			sb.WriteString(part.Get("plain_text").String())
		}
		databases = append(databases, Database{ID: db.Get("id").String(), Title: strings.TrimSpace(sb.String())})
	}
	return databases, nil
}
