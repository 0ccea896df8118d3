package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tucoflyer/botclient/internal/logging"
)

const (
	// DefaultTimeout is the per-request timeout of a lookup.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the delay before the first retry.
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay caps the exponential retry delay.
	DefaultMaxRetryDelay = 30 * time.Second

	maxResponseSize = 64 << 10
)

// Client looks up websocket endpoints over HTTP.
type Client struct {
	HTTPClient    *http.Client
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewClient returns a Client with the default timeout and retry policy.
func NewClient() *Client {
	return &Client{
		HTTPClient:    &http.Client{Timeout: DefaultTimeout},
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// SetRetry configures the retry policy.
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// Lookup resolves the websocket endpoint for d, retrying retryable
// failures with exponential backoff.
func (c *Client) Lookup(ctx context.Context, d Descriptor) (string, error) {
	var lastErr error
	delay := c.RetryDelay

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Debug("Retrying endpoint lookup",
				zap.String("endpoint", d.LookupURL()),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", NewNetworkError("lookup cancelled", d.LookupURL(), ctx.Err())
			}
			delay *= 2
			if c.MaxRetryDelay > 0 && delay > c.MaxRetryDelay {
				delay = c.MaxRetryDelay
			}
		}

		endpoint, err := c.lookupAttempt(ctx, d)
		if err == nil {
			logging.Info("Resolved bot endpoint",
				zap.String("lookup", d.LookupURL()),
				zap.String("endpoint", endpoint),
			)
			return endpoint, nil
		}

		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) lookupAttempt(ctx context.Context, d Descriptor) (string, error) {
	lookupURL := d.LookupURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return "", NewNetworkError("failed to create lookup request", lookupURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", NewNetworkError("lookup request failed", lookupURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", NewHTTPError(resp.StatusCode, lookupURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", NewNetworkError("failed to read lookup response", lookupURL, err)
	}
	return parseEndpoint(body, lookupURL)
}

// parseEndpoint accepts a JSON string or plain text naming a ws(s) URL.
// http(s) URLs are mapped to ws(s).
func parseEndpoint(body []byte, lookupURL string) (string, error) {
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return "", NewParseError("lookup response is not a JSON string", lookupURL, err)
		}
		text = strings.TrimSpace(s)
	}
	if text == "" {
		return "", NewParseError("lookup response is empty", lookupURL, nil)
	}

	u, err := url.Parse(text)
	if err != nil {
		return "", NewParseError("lookup response is not a URL", lookupURL, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", NewParseError(fmt.Sprintf("unsupported endpoint scheme %q", u.Scheme), lookupURL, nil)
	}
	if u.Host == "" {
		return "", NewParseError("endpoint has no host", lookupURL, nil)
	}
	return u.String(), nil
}

// Resolve reads the descriptor at path and looks up its endpoint.
func Resolve(ctx context.Context, c *Client, path string) (Descriptor, string, error) {
	d, err := ReadDescriptorFile(path)
	if err != nil {
		return Descriptor{}, "", err
	}
	endpoint, err := c.Lookup(ctx, d)
	if err != nil {
		return Descriptor{}, "", err
	}
	return d, endpoint, nil
}
