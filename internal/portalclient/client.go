package portalclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/radio"
	"github.com/muurk/wifiportal/internal/version"
)

const (
	// DefaultTimeout is the per-request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the number of retries after a failed request
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the delay before the first retry
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay caps exponential backoff
	DefaultMaxRetryDelay = 10 * time.Second

	// maxBody bounds how much of a response is read
	maxBody = 1 << 20
)

// Client talks to a captive portal from a machine joined to its access point
type Client struct {
	// BaseURL is the portal root, e.g. "http://192.168.4.1"
	BaseURL string

	HTTPClient *http.Client

	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewClient creates a client for the portal at host:port
func NewClient(host string, port int) *Client {
	return NewClientWithURL(fmt.Sprintf("http://%s:%d", host, port))
}

// NewClientWithURL creates a client for a full base URL
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
			// Unknown paths redirect to the form; report them instead.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// Ping checks that the portal form is being served. It does not retry.
func (c *Client) Ping(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return newHTTPError(status, body)
	}
	return nil
}

// Scan asks the portal to scan for nearby networks
func (c *Client) Scan(ctx context.Context) ([]radio.Network, error) {
	var networks []radio.Network

	err := c.retry(ctx, "scan", func() error {
		status, body, err := c.do(ctx, http.MethodGet, "/scan", nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return newHTTPError(status, body)
		}
		networks = nil
		if err := json.Unmarshal([]byte(body), &networks); err != nil {
			return newParseError("invalid scan response", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return networks, nil
}

// Save submits credentials to the portal. On success the device restarts
// shortly afterwards and the portal goes away; see WaitGone.
func (c *Client) Save(ctx context.Context, ssid, password string) error {
	form := url.Values{}
	form.Set("ssid", ssid)
	form.Set("password", password)

	return c.retry(ctx, "save", func() error {
		status, body, err := c.do(ctx, http.MethodPost, "/save", form)
		if err != nil {
			return err
		}
		switch {
		case status == http.StatusOK:
			return nil
		case status == http.StatusBadRequest:
			return newRejectedError(status, body)
		default:
			return newHTTPError(status, body)
		}
	})
}

// WaitGone polls the portal until it stops answering, which is how a
// successful save shows from outside. It returns ctx.Err() if the portal is
// still up when ctx ends.
func (c *Client) WaitGone(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := c.Ping(ctx)
		if IsUnreachable(err) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// retry runs fn until it succeeds, fails with a non-retryable error or the
// attempts run out. Delays double up to MaxRetryDelay.
func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	delay := c.RetryDelay

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Debug("Retrying portal request",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}

			delay *= 2
			if delay > c.MaxRetryDelay {
				delay = c.MaxRetryDelay
			}
		}

		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values) (int, string, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return 0, "", &PortalError{Type: ErrTypeNetwork, Message: "failed to create request", Err: err}
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, "", classifyNetworkError(method+" "+path+" failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, "", classifyNetworkError("failed to read response body", err)
	}
	return resp.StatusCode, string(data), nil
}
