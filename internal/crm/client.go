// Package crm is a retryless REST client for the CRM people resource.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veriops/contactsync/internal/payload"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultSearchOrder = "createdAt[AscNullsFirst]"
	maxResponseBytes   = 1 << 20
)

type Client struct {
	baseURL     string
	apiKey      string
	searchOrder string
	logger      *slog.Logger
	http        *http.Client
}

// Options holds the tenant-independent client settings.
type Options struct {
	Timeout     time.Duration
	SearchOrder string
}

func New(log *slog.Logger, baseURL, apiKey string, opts Options) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("crm client: base url is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("crm client: api key is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.SearchOrder == "" {
		opts.SearchOrder = defaultSearchOrder
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/rest"),
		apiKey:      apiKey,
		searchOrder: opts.SearchOrder,
		logger:      log.With(slog.String("client", "crm")),
		http: &http.Client{
			Timeout: opts.Timeout,
		},
	}, nil
}

// Factory builds per-tenant clients sharing the same options.
type Factory struct {
	Logger  *slog.Logger
	Options Options
}

func (f Factory) New(baseURL, apiKey string) (*Client, error) {
	return New(f.Logger, baseURL, apiKey, f.Options)
}

// Search returns people matching filter, oldest first. No match is an empty result.
func (c *Client) Search(ctx context.Context, filter Filter) ([]Person, error) {
	if filter == "" {
		return nil, nil
	}
	query := url.Values{}
	query.Set("filter", string(filter))
	query.Set("depth", "1")
	query.Set("limit", "1")
	query.Set("order_by", c.searchOrder)

	status, body, err := c.do(ctx, http.MethodGet, "/rest/people?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if !success(status) {
		return nil, &StatusError{Op: "search", Status: status, Body: string(body)}
	}
	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("crm search: decode response: %w", err)
	}
	return parsed.Data.People, nil
}

// Create posts a new person and returns its id. A 2xx response without a recognizable
// id returns an empty id and no error.
func (c *Client) Create(ctx context.Context, body payload.Body) (string, error) {
	status, resp, err := c.do(ctx, http.MethodPost, "/rest/people?depth=1", body)
	if err != nil {
		return "", err
	}
	if !success(status) {
		return "", &StatusError{Op: "create", Status: status, Body: string(resp)}
	}
	return c.extractID("create", resp), nil
}

// Update patches the person with id. A missing person yields an error matching
// ErrNotFound. When the response carries no id, id itself is returned.
func (c *Client) Update(ctx context.Context, id string, body payload.Body) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("crm update: id is required")
	}
	status, resp, err := c.do(ctx, http.MethodPatch, "/rest/people/"+url.PathEscape(id)+"?depth=1", body)
	if err != nil {
		return "", err
	}
	if !success(status) {
		return "", &StatusError{Op: "update", Status: status, Body: string(resp)}
	}
	if extracted := c.extractID("update", resp); extracted != "" {
		return extracted, nil
	}
	return id, nil
}

func (c *Client) extractID(op string, body []byte) string {
	id, strategy, err := ExtractID(body)
	if err != nil {
		c.logger.Warn("crm response id extraction failed", slog.String("op", op), slog.Any("error", err))
		return ""
	}
	c.logger.Debug("crm response id extracted", slog.String("op", op), slog.String("strategy", strategy))
	return id
}

func (c *Client) do(ctx context.Context, method, path string, body payload.Body) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, b, nil
}

func success(status int) bool {
	return status >= 200 && status < 300
}
