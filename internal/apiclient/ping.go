package apiclient

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Ping checks that the backend answers at all. Any response below 500
// counts as reachable; the health route may be missing or protected.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, _, err := c.newRequest(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(http.MethodGet, 0, start)
		return c.transportError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	c.observe(http.MethodGet, resp.StatusCode, start)

	if resp.StatusCode >= 500 {
		return &Error{Status: resp.StatusCode, Message: statusFallback(resp.StatusCode), Timestamp: c.now()}
	}
	return nil
}
