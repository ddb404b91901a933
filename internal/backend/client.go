// Package backend talks to the external backend service: visitor-stats
// forwarding and the reverse proxy for the LLM demo endpoints.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/aiatlas/internal/resilience"
)

// StatsRecordPath is the backend endpoint that stores one visit.
const StatsRecordPath = "/api/visitor-stats/record"

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 2048

// Recorder receives backend call outcomes. Implemented by the metrics
// package.
type Recorder interface {
	BackendCall(operation, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) BackendCall(string, string) {}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.rec = r
		}
	}
}

// Client calls the backend through the resilience executor.
type Client struct {
	base   *url.URL
	http   *http.Client
	exec   *resilience.Executor
	logger *slog.Logger
	rec    Recorder
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration, exec *resilience.Executor, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend: url must be absolute: %q", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: timeout},
		exec:   exec,
		logger: slog.Default(),
		rec:    nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Visit is the caller metadata forwarded with a stats record.
type Visit struct {
	UserAgent    string
	ForwardedFor string
}

// RecordVisit posts a JSON payload to the visitor-stats endpoint. A non-2xx
// answer is returned as *resilience.StatusError; transport failures are
// returned unchanged.
func (c *Client) RecordVisit(ctx context.Context, payload []byte, v Visit) error {
	const op = "visitor_stats"
	endpoint := c.base.JoinPath(StatsRecordPath).String()

	err := c.exec.Execute(ctx, op, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("backend: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", v.UserAgent)
		req.Header.Set("X-Forwarded-For", v.ForwardedFor)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &resilience.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}, resilience.ClassifyHTTP)

	c.rec.BackendCall(op, outcome(err))
	return err
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if resilience.IsCircuitOpen(err) {
		return "circuit_open"
	}
	var se *resilience.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("status_%dxx", se.StatusCode/100)
	}
	return "error"
}
