package http

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ClientOption configures Client.
type ClientOption func(*resty.Client)

// Client is a JSON client bound to one base URL.
type Client struct {
	rc *resty.Client
}

// NewClient creates a client for baseURL with a 30s timeout and no retries.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")

	for _, opt := range opts {
		opt(rc)
	}
	return &Client{rc: rc}
}

// PostJSON posts body as JSON to path and decodes the reply into dest.
// dest may be nil.
func (c *Client) PostJSON(ctx context.Context, path string, body, dest interface{}) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	return decode(resp, err, dest)
}

// GetJSON issues a GET to path and decodes the reply into dest.
func (c *Client) GetJSON(ctx context.Context, path string, dest interface{}) error {
	resp, err := c.rc.R().SetContext(ctx).Get(path)
	return decode(resp, err, dest)
}

// Replies are decoded by hand since upstreams do not always label JSON.
func decode(resp *resty.Response, err error, dest interface{}) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), resp.String())
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), dest); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// WithTimeout sets client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(rc *resty.Client) {
		if timeout > 0 {
			rc.SetTimeout(timeout)
		}
	}
}

// WithRetry allows up to attempts tries in total. Transport errors and 5xx
// replies are retried, waiting at least wait between tries.
func WithRetry(attempts int, wait time.Duration) ClientOption {
	return func(rc *resty.Client) {
		if attempts <= 1 {
			return
		}
		rc.SetRetryCount(attempts - 1).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(wait * time.Duration(attempts)).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= 500
			})
	}
}
