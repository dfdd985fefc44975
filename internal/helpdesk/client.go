package helpdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client calls the helpdesk application API with a per-tenant bot token.
type Client struct {
	baseURL string
	token   string
	logger  *slog.Logger
	http    *http.Client
}

func NewClient(log *slog.Logger, baseURL, token string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("helpdesk client: base url is required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("helpdesk client: token is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		logger:  log.With(slog.String("client", "helpdesk")),
		http: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Factory builds per-tenant clients.
type Factory struct {
	Logger  *slog.Logger
	Timeout time.Duration
}

func (f Factory) New(baseURL, token string) (*Client, error) {
	return NewClient(f.Logger, baseURL, token, f.Timeout)
}

// SetCustomAttributes updates the custom attribute bag of a helpdesk contact.
func (c *Client) SetCustomAttributes(ctx context.Context, accountID int64, contactID string, attrs map[string]string) error {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return fmt.Errorf("helpdesk contact id is required")
	}
	if len(attrs) == 0 {
		return nil
	}
	body, err := json.Marshal(map[string]any{"custom_attributes": attrs})
	if err != nil {
		return err
	}
	endpoint := c.baseURL + "/api/v1/accounts/" + strconv.FormatInt(accountID, 10) +
		"/contacts/" + url.PathEscape(contactID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api_access_token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("helpdesk update contact %s: status %d: %s", contactID, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	c.logger.Debug("helpdesk contact attributes updated",
		slog.Int64("account_id", accountID),
		slog.String("helpdesk_contact_id", contactID),
	)
	return nil
}
