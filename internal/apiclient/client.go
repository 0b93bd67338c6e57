// Package apiclient is the only way the portal talks to the Submita backend.
// It attaches the session bearer token, normalizes failures into *Error and
// turns a backend 401 into a forced logout of the owning session.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Retries   int
	UserAgent string
	Envelope  EnvelopeMode
}

// TokenStore is the narrow view of a session the client needs.
type TokenStore interface {
	Token() string
	Clear()
}

// Observer receives one call per backend round trip.
type Observer interface {
	ObserveBackendCall(method string, status int, d time.Duration)
}

type Option func(*Client)

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithClock replaces time.Now for error timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

type Client struct {
	base     *url.URL
	cfg      Config
	http     *http.Client
	log      zerolog.Logger
	observer Observer
	now      func() time.Time

	tokens         TokenStore
	onUnauthorized func()
}

func New(cfg Config, httpClient *http.Client, log zerolog.Logger, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", cfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Envelope == "" {
		cfg.Envelope = EnvelopeDetect
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "submita-portal"
	}

	c := &Client{
		base: base,
		cfg:  cfg,
		http: httpClient,
		log:  log.With().Str("component", "apiclient").Logger(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithSession returns a client bound to one browsing session. The shared
// transport and settings are reused; only the token source differs.
func (c *Client) WithSession(tokens TokenStore, onUnauthorized func()) *Client {
	clone := *c
	clone.tokens = tokens
	clone.onUnauthorized = onUnauthorized
	return &clone
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

// Do sends a JSON request and decodes the (possibly enveloped) response into out.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet && c.cfg.Retries > 0 {
		attempts += c.cfg.Retries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return c.transportError(ctx.Err())
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		err := c.roundTrip(ctx, method, path, query, reader, "application/json", -1, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
		c.log.Debug().Err(err).Str("path", path).Int("attempt", attempt+1).Msg("retrying backend call")
	}
	return lastErr
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, length int64, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, bearer, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
		if length >= 0 {
			req.ContentLength = length
		}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, 0, start)
		return c.transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.observe(method, resp.StatusCode, start)
	if err != nil {
		return c.transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(method, path, resp.StatusCode, data, bearer)
	}
	return decodeBody(data, resp.Header, c.cfg.Envelope, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, bool, error) {
	target := c.resolve(path, query)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	bearer := false
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
			bearer = true
		}
	}
	return req, bearer, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	target := strings.TrimSuffix(c.base.String(), "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// statusError normalizes a non-2xx response. A 401 on an authenticated call
// purges the session before the error is returned.
func (c *Client) statusError(method, path string, status int, body []byte, bearer bool) error {
	apiErr := newStatusError(status, body, c.now())

	// without a bearer a 401 is a failed login: the backend message is kept for the form
	if status == http.StatusUnauthorized && bearer {
		apiErr.Message = unauthorizedMessage
		if c.tokens != nil {
			c.tokens.Clear()
		}
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		c.log.Info().Str("method", method).Str("path", path).Msg("backend rejected session token")
		return apiErr
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Str("message", apiErr.Message).
		Msg("backend call failed")
	return apiErr
}

func (c *Client) transportError(err error) error {
	if isTimeout(err) {
		return &Error{Message: timeoutMessage, Timeout: true, Timestamp: c.now(), err: err}
	}
	return &Error{Message: unreachableMessage, Timestamp: c.now(), err: err}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.Timeout)
}

func (c *Client) observe(method string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveBackendCall(method, status, time.Since(start))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// retryable is true only for transport failures that are not timeouts or
// cancellations.
func retryable(err error) bool {
	apiErr, ok := AsError(err)
	if !ok || apiErr.Status != 0 || apiErr.Timeout {
		return false
	}
	return apiErr.err != nil && !errors.Is(apiErr.err, context.Canceled)
}
