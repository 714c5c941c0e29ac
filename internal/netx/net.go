// Package netx is the HTTP plumbing shared by the provider clients: bounded
// timeouts, request ids, and a small retry budget for transient failures.
package netx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultTimeout = 15 * time.Second
	DefaultBackoff = 500 * time.Millisecond

	maxBodyBytes = 1 << 20
)

// Options configures a Client. Zero values fall back to defaults, except
// MaxRetries where zero means a single attempt.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	MaxRetries uint64
	Backoff    time.Duration
	UserAgent  string
}

// Client issues provider requests. Transport errors, 429 and 5xx responses
// are retried up to MaxRetries times with exponential backoff; every other
// response is handed back to the caller to interpret.
type Client struct {
	http      *http.Client
	retries   uint64
	backoff   time.Duration
	userAgent string
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if hc.Timeout == 0 {
		clone := *hc
		clone.Timeout = opts.Timeout
		hc = &clone
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}

	return &Client{http: hc, retries: opts.MaxRetries, backoff: opts.Backoff, userAgent: opts.UserAgent}
}

// PostForm sends an application/x-www-form-urlencoded POST.
func (c *Client) PostForm(ctx context.Context, endpoint string, form url.Values) (*Response, error) {
	encoded := form.Encode()
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

// GetJSON sends a GET with an optional bearer token.
func (c *Client) GetJSON(ctx context.Context, endpoint, bearer string) (*Response, error) {
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		setBearer(req, bearer)
		return req, nil
	})
}

// PostJSON marshals body and POSTs it with an optional bearer token.
func (c *Client) PostJSON(ctx context.Context, endpoint, bearer string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		setBearer(req, bearer)
		return req, nil
	})
}

type statusError struct {
	resp *Response
}

func (e *statusError) Error() string {
	return fmt.Sprintf("transient status %s", e.resp.Status)
}

// Do builds and sends a request, retrying transient failures. The builder is
// called once per attempt so bodies are fresh.
func (c *Client) Do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*Response, error) {
	b := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))

	var out *Response
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := build(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set(common.RequestIDHeader, uuid.NewString())
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read response: %w", err))
		}

		out = &Response{StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return retry.RetryableError(&statusError{resp: out})
		}
		return nil
	})

	var se *statusError
	if errors.As(err, &se) {
		return se.resp, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func setBearer(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// ProviderMessage extracts the most descriptive error text a provider put in
// a JSON body, falling back to the HTTP status.
func ProviderMessage(resp *Response) string {
	if resp == nil {
		return ""
	}

	var payload struct {
		ErrorDescription string `json:"error_description"`
		Error            any    `json:"error"`
		Message          string `json:"message"`
		ErrorMessage     string `json:"errorMessage"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err == nil {
		switch {
		case payload.ErrorDescription != "":
			return payload.ErrorDescription
		case payload.ErrorMessage != "":
			return payload.ErrorMessage
		case payload.Message != "":
			return payload.Message
		}
		if s, ok := payload.Error.(string); ok && s != "" {
			return s
		}
	}

	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
