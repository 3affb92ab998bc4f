// Package httpx is a small JSON HTTP client with a fixed retry policy:
// a bounded number of attempts separated by a constant delay, no jitter.
// Responses with status 429 or 5xx and transport-level failures are
// retried; any other non-2xx status fails immediately.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wilhg/conduit/pkg/errmodel"
)

const (
	// DefaultAttempts is the total number of tries per request.
	DefaultAttempts = 3
	// DefaultDelay separates consecutive tries.
	DefaultDelay = 2 * time.Second
	// DefaultMaxBody caps how many response bytes are read.
	DefaultMaxBody = 4 << 20
)

// Client issues JSON requests with retries. The zero value is not usable;
// construct with New.
type Client struct {
	hc       *http.Client
	attempts uint
	delay    time.Duration
	maxBody  int64
	log      *slog.Logger
}

// Options configures a Client. The zero value of each field selects the
// package default.
type Options struct {
	// Timeout bounds a single attempt, not the whole retry loop.
	Timeout time.Duration

	// Attempts is the total number of tries per request.
	Attempts uint

	// Delay is the constant pause between tries.
	Delay time.Duration

	// MaxBody caps how many response bytes are read.
	MaxBody int64

	// Transport overrides the base round tripper. It is always wrapped with
	// otelhttp instrumentation.
	Transport http.RoundTripper

	// Logger receives retry notices. Defaults to slog.Default().
	Logger *slog.Logger
}

// New builds a Client. Pass nil for defaults.
func New(opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		hc:       &http.Client{Transport: otelhttp.NewTransport(base), Timeout: timeout},
		attempts: opts.Attempts,
		delay:    opts.Delay,
		maxBody:  opts.MaxBody,
		log:      opts.Logger,
	}
	if c.attempts == 0 {
		c.attempts = DefaultAttempts
	}
	if c.delay <= 0 {
		c.delay = DefaultDelay
	}
	if c.maxBody <= 0 {
		c.maxBody = DefaultMaxBody
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// GetJSON issues a GET and unmarshals the response body into out.
func (c *Client) GetJSON(ctx context.Context, url string, hdr http.Header, out any) error {
	body, err := c.Do(ctx, http.MethodGet, url, hdr, nil)
	if err != nil {
		return err
	}
	return decodeJSON(body, out)
}

// PostJSON issues a POST with a JSON-encoded body and unmarshals the
// response into out. A nil out discards the response body.
func (c *Client) PostJSON(ctx context.Context, url string, hdr http.Header, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errmodel.Validation("bad_request_body", err.Error(), nil)
		}
		payload = b
	}
	if hdr == nil {
		hdr = http.Header{}
	}
	if hdr.Get("Content-Type") == "" {
		hdr = hdr.Clone()
		hdr.Set("Content-Type", "application/json")
	}
	body, err := c.Do(ctx, http.MethodPost, url, hdr, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeJSON(body, out)
}

// Do issues one request with the retry policy and returns the raw body.
func (c *Client) Do(ctx context.Context, method, url string, hdr http.Header, body []byte) ([]byte, error) {
	op := func() ([]byte, error) {
		return c.once(ctx, method, url, hdr, body)
	}
	notify := func(err error, _ time.Duration) {
		c.log.Warn("retrying request", "method", method, "url", url, "err", err)
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.delay)),
		backoff.WithMaxTries(c.attempts),
		backoff.WithNotify(notify),
	)
}

func (c *Client) once(ctx context.Context, method, url string, hdr http.Header, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, backoff.Permanent(errmodel.Validation("bad_request", err.Error(), map[string]any{"url": url}))
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, errmodel.Network("transport", err.Error(), map[string]any{"url": url}, nil).Transient()
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, errmodel.Network("read_body", err.Error(), map[string]any{"url": url}, nil).Transient()
	}
	if int64(len(raw)) > c.maxBody {
		return nil, backoff.Permanent(errmodel.Network("body_too_large", "response exceeds body cap", map[string]any{"url": url, "cap": c.maxBody}, nil))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}

	herr := statusError(resp.StatusCode, url, raw)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, herr.Transient()
	}
	return nil, backoff.Permanent(herr)
}

func statusError(status int, url string, body []byte) *errmodel.Error {
	code := "http_status"
	if status == http.StatusTooManyRequests {
		code = "rate_limited"
	}
	msg := fmt.Sprintf("unexpected status %d", status)
	ctx := map[string]any{"url": url, "status": status}
	if len(body) > 0 {
		ctx["body"] = string(body)
	}
	return errmodel.Network(code, msg, ctx, nil)
}

func decodeJSON(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errmodel.Network("bad_json", err.Error(), nil, nil)
	}
	return nil
}
