// Package api is the REST client for the remote audit service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/runnerr0/llmredi/internal/logger"
)

// TokenStore durably stores the bearer token between runs.
type TokenStore interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Options configures a Client.
type Options struct {
	// BaseURL is the service root; requests go to BaseURL + "/api" + endpoint.
	BaseURL string
	// Timeout of zero leaves requests to the transport defaults.
	Timeout time.Duration
	// RateLimit in requests per second; zero disables limiting.
	RateLimit float64
	Burst     int

	HTTPClient *http.Client
	Logger     logger.Logger
	Tokens     TokenStore
}

// Client issues authenticated JSON requests against the audit service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logger.Logger
	tokens     TokenStore

	mu             sync.RWMutex
	token          string
	onUnauthorized func()
}

// New creates a Client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/") + "/api",
		httpClient: httpClient,
		log:        log,
		tokens:     opts.Tokens,
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// LoadToken restores the persisted token, if any.
func (c *Client) LoadToken(ctx context.Context) error {
	if c.tokens == nil {
		return nil
	}
	tok, err := c.tokens.LoadToken(ctx)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
	return nil
}

// Token returns the bearer token currently held.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken holds and persists token for subsequent requests.
func (c *Client) SetToken(ctx context.Context, token string) error {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	if c.tokens != nil {
		return c.tokens.SaveToken(ctx, token)
	}
	return nil
}

// UseToken holds token in memory without persisting it, for sessions
// restored from storage.
func (c *Client) UseToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken drops the held token and its persisted copy.
func (c *Client) ClearToken(ctx context.Context) error {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	if c.tokens != nil {
		return c.tokens.ClearToken(ctx)
	}
	return nil
}

// OnUnauthorized registers fn to run whenever the backend answers 401.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// send performs the request and returns the response for any status.
func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Error("API request failed",
			logger.String("method", req.Method),
			logger.String("url", req.URL.String()),
			logger.Error(err),
		)
		return nil, &NetworkError{Op: req.Method + " " + req.URL.Path, Err: err}
	}

	c.log.Debug("API request",
		logger.String("method", req.Method),
		logger.String("url", req.URL.String()),
		logger.Int("status", resp.StatusCode),
		logger.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

// Do sends a JSON request to endpoint and decodes a 2xx JSON response into
// out (which may be nil). Non-2xx responses become *HTTPError and transport
// failures *NetworkError. Nothing is retried.
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out any) error {
	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := newHTTPError(resp.StatusCode, serverMessage(respBody))
		c.log.Warn("API error response",
			logger.String("endpoint", endpoint),
			logger.Int("status", resp.StatusCode),
			logger.String("message", httpErr.Message),
		)
		if resp.StatusCode == http.StatusUnauthorized {
			c.notifyUnauthorized()
		}
		return httpErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) notifyUnauthorized() {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// serverMessage extracts {"message": ...} or {"error": ...} from an error body.
func serverMessage(body []byte) string {
	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return ""
	}
	if errResp.Message != "" {
		return errResp.Message
	}
	return errResp.Error
}
