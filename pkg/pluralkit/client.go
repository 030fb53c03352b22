package pluralkit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultBaseURL is the public PluralKit API root.
const DefaultBaseURL = "https://api.pluralkit.me/v2"

const (
	requestTimeout = 15 * time.Second
	maxAPIRetries  = 3
)

// Client is a minimal PluralKit API client authenticated with a system
// token. It retries on rate limits and transient server errors.
type Client struct {
	BaseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for the given system token.
func NewClient(token string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return json.NewDecoder(resp.Body).Decode(out)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body)
			slog.Warn("pluralkit api retryable error", "path", path, "status", resp.StatusCode)
			return fmt.Errorf("pluralkit: status %d for %s", resp.StatusCode, path)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(fmt.Errorf("pluralkit: token rejected (status %d)", resp.StatusCode))
		default:
			return backoff.Permanent(fmt.Errorf("pluralkit: status %d for %s", resp.StatusCode, path))
		}
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAPIRetries-1)
	return backoff.Retry(op, backoff.WithContext(policy, ctx))
}

// TestConnection verifies the token by fetching the caller's own system.
func (c *Client) TestConnection(ctx context.Context) (*System, error) {
	var sys System
	if err := c.get(ctx, "/systems/@me", &sys); err != nil {
		return nil, err
	}
	return &sys, nil
}

// FetchMembers returns all members of the caller's own system.
func (c *Client) FetchMembers(ctx context.Context) ([]Member, error) {
	var members []Member
	if err := c.get(ctx, "/systems/@me/members", &members); err != nil {
		return nil, err
	}
	return members, nil
}
