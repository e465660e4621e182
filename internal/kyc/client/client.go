// Package client is the HTTP adapter for the verification backend. It
// implements the upload and status capabilities the sequencer and poller
// depend on, plus the admin console operations.
package client

//go:generate mockgen -source=client.go -destination=mocks/mocks.go -package=mocks HTTPDoer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"kycflow/internal/kyc/kycerrors"
	"kycflow/internal/kyc/poller"
	"kycflow/internal/kyc/tracer"
	"kycflow/internal/kyc/upload"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultTimeout = 30 * time.Second

	// maxBodyBytes bounds how much of a response body is read.
	maxBodyBytes = 4 << 20
	// maxImageBytes bounds a downloaded image.
	maxImageBytes = 16 << 20

	headerRequestID  = "X-Request-ID"
	headerAdminToken = "X-Admin-Token"
)

// DefaultUserAgent identifies this client and its platform to the backend.
var DefaultUserAgent = fmt.Sprintf("kycflow/1.0 (%s; %s)", runtime.GOOS, runtime.GOARCH)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the verification backend over HTTP.
type Client struct {
	baseURL    string
	http       HTTPDoer
	timeout    time.Duration
	adminToken string
	userAgent  string
	logger     *slog.Logger
	tracer     tracer.Tracer
	now        func() time.Time
}

var (
	_ upload.Uploader      = (*Client)(nil)
	_ poller.StatusFetcher = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithTimeout sets the timeout of the default *http.Client. It has no effect
// when WithHTTPClient supplies a client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithAdminToken sets the token sent to the admin endpoints.
func WithAdminToken(token string) Option {
	return func(c *Client) {
		c.adminToken = token
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithLogger sets the logger; nil keeps slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer sets the tracer for request spans.
func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithClock sets the time source stamped on fetched snapshots.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a client for the backend at baseURL. An empty baseURL uses
// DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
		logger:    slog.Default(),
		tracer:    tracer.NoopTracer{},
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

// BaseURL returns the backend address requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one backend call.
type request struct {
	op          string
	method      string
	path        string
	body        []byte
	contentType string
	admin       bool
	// raw returns a 2xx body as is instead of unwrapping an envelope.
	raw bool
	// rejected builds the error for an envelope with success=false.
	rejected func(op, message, code string) *kycerrors.Error
}

// response is a decoded success envelope, or the plain body of a raw request.
type response struct {
	status      int
	data        json.RawMessage
	body        []byte
	contentType string
}

// envelope is the response wrapper every backend endpoint uses.
type envelope struct {
	Success   *bool           `json:"success"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorCode"`
}

// do executes r and unwraps the envelope. Any body that decodes to
// success=false is a rejection whatever the HTTP status; bodies that are not
// an envelope are bad responses, except behind a 5xx status where the
// backend itself was not reached.
func (c *Client) do(ctx context.Context, r request) (response, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return response{}, kycerrors.New(kycerrors.CategoryBadResponse, r.op, "failed to create request", err)
	}

	requestID := uuid.NewString()
	accept, limit := "application/json", int64(maxBodyBytes)
	if r.raw {
		accept, limit = "*/*", maxImageBytes
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(headerRequestID, requestID)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.admin && c.adminToken != "" {
		req.Header.Set(headerAdminToken, c.adminToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "backend request failed",
			"op", r.op,
			"request_id", requestID,
			"error", err,
		)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return response{}, kycerrors.New(kycerrors.CategoryTransport, r.op, "request timeout", err)
		}
		return response{}, kycerrors.Transport(r.op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return response{}, kycerrors.Transport(r.op, fmt.Errorf("reading response: %w", err))
	}

	c.logger.DebugContext(ctx, "backend request completed",
		"op", r.op,
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if r.raw && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return response{
			status:      resp.StatusCode,
			body:        raw,
			contentType: resp.Header.Get("Content-Type"),
		}, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Success == nil {
		if err == nil {
			err = errors.New("missing success field")
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return response{status: resp.StatusCode}, kycerrors.Transport(r.op,
				fmt.Errorf("backend unavailable: %d", resp.StatusCode))
		}
		return response{status: resp.StatusCode}, kycerrors.BadResponse(r.op,
			fmt.Sprintf("unexpected response body (HTTP %d)", resp.StatusCode), err)
	}

	if !*env.Success {
		message := env.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		rejected := r.rejected
		if rejected == nil {
			rejected = kycerrors.Rejected
		}
		return response{status: resp.StatusCode}, rejected(r.op, message, env.ErrorCode)
	}

	return response{status: resp.StatusCode, data: env.Data}, nil
}

// decodeData unmarshals the envelope payload into v.
func decodeData(op string, resp response, v any) error {
	if len(resp.data) == 0 || bytes.Equal(resp.data, []byte("null")) {
		return kycerrors.BadResponse(op, "response has no data", nil)
	}
	if err := json.Unmarshal(resp.data, v); err != nil {
		return kycerrors.BadResponse(op, "failed to decode response data", err)
	}
	return nil
}

// Health checks that the backend answers on /health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return kycerrors.Transport("health", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return kycerrors.Transport("health", fmt.Errorf("unhealthy status: %d", resp.StatusCode))
	}
	return nil
}

func endSpan(span tracer.Span, resp response, err error) {
	if resp.status != 0 {
		span.SetAttributes(tracer.Int64(tracer.AttrHTTPStatus, int64(resp.status)))
	}
	span.End(err)
}
