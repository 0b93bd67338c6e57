package apiclient

import (
	"context"
	"io"
	"net/http"
	"time"
)

// RawResponse is a streamed backend response. Callers must close Body.
type RawResponse struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Header        http.Header
}

type cancelBody struct {
	io.ReadCloser
	cancel func()
}

func (b cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// Raw fetches a binary resource without envelope handling. Errors follow the
// same normalization as Do, including the 401 purge.
func (c *Client) Raw(ctx context.Context, path string) (*RawResponse, error) {
	return c.raw(ctx, http.MethodGet, path)
}

// Head asks the backend whether the session may read path without
// transferring the body.
func (c *Client) Head(ctx context.Context, path string) error {
	resp, err := c.raw(ctx, http.MethodHead, path)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) raw(ctx context.Context, method, path string) (*RawResponse, error) {
	ctx, cancel := c.withTimeout(ctx)

	req, bearer, err := c.newRequest(ctx, method, path, nil, nil)
	if err != nil {
		cancel()
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		c.observe(method, 0, start)
		return nil, c.transportError(err)
	}
	c.observe(method, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, c.statusError(method, path, resp.StatusCode, data, bearer)
	}

	return &RawResponse{
		Body:          cancelBody{ReadCloser: resp.Body, cancel: cancel},
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Header:        resp.Header,
	}, nil
}
