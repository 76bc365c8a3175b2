package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/genrelay/server/internal/port/outbound"
)

const (
	// DefaultTimeout bounds one provider call.
	DefaultTimeout = 60 * time.Second

	maxResponseBytes = 32 << 20
	maxErrorSnippet  = 512
)

// Response is a fully read provider response.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// CallerOptions configures a Caller.
type CallerOptions struct {
	Provider string
	Timeout  time.Duration
	RPS      float64
	Burst    int
}

// Caller performs single provider calls with a deadline and optional rate limit.
// Every failure is returned as *outbound.ProviderError.
type Caller struct {
	client   *http.Client
	provider string
	timeout  time.Duration
	limiter  *rate.Limiter
}

// NewCaller creates a caller for one provider.
func NewCaller(client *http.Client, opts CallerOptions) *Caller {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	c := &Caller{
		client:   client,
		provider: opts.Provider,
		timeout:  opts.Timeout,
	}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return c
}

// PostJSON sends body as JSON and returns the response.
func (c *Caller) PostJSON(ctx context.Context, url string, header http.Header, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, c.fail("marshal request", 0, err)
	}
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/json")
	return c.Do(ctx, http.MethodPost, url, header, payload)
}

// Get performs a GET request.
func (c *Caller) Get(ctx context.Context, url string, header http.Header) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, header, nil)
}

// Do performs one request. The rate limit wait counts against the timeout.
func (c *Caller) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.fail("rate limited", 0, err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, c.fail("create request", 0, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, c.fail("timeout", 0, err)
		}
		return nil, c.fail("request failed", 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, c.fail("timeout", resp.StatusCode, err)
		}
		return nil, c.fail("read response", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.fail("unexpected status", resp.StatusCode, errors.New(snippet(data)))
	}

	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// Fail builds a provider error for a decoding problem found by the adapter.
func (c *Caller) Fail(reason string, err error) error {
	return c.fail(reason, 0, err)
}

func (c *Caller) fail(reason string, status int, err error) error {
	return &outbound.ProviderError{Provider: c.provider, Reason: reason, Status: status, Err: err}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorSnippet {
		s = s[:maxErrorSnippet] + "..."
	}
	if s == "" {
		return "empty body"
	}
	return fmt.Sprintf("body: %s", s)
}
