package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Actor is the capability boundary to the social backend. Every method is
// invoked by name with JSON-encodable arguments; reply must be a pointer.
// A null result leaves reply unchanged.
type Actor interface {
	Call(ctx context.Context, method string, args []any, reply any) error
}

// Pinger reports whether the backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ensure Client implements Actor and Pinger at compile time.
var (
	_ Actor  = (*Client)(nil)
	_ Pinger = (*Client)(nil)
)

// ErrUnavailable reports that the backend could not be reached.
var ErrUnavailable = errors.New("actor unavailable")

// CallError is returned when the backend rejects a call.
type CallError struct {
	Method  string
	Status  int
	Message string
}

func (e *CallError) Error() string {
	if e.Message == "" {
		return "call " + e.Method + ": status " + http.StatusText(e.Status)
	}
	return "call " + e.Method + ": " + e.Message
}

// Client talks to the actor gateway over HTTP.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	identity  string
	limiter   *rate.Limiter
}

const (
	defaultAddr      = "127.0.0.1:4943"
	defaultUserAgent = "feedsync/0.1"
	requestTimeout   = 10 * time.Second
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRateLimit caps outgoing calls at rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithIdentity sets the caller identity sent with every call.
func WithIdentity(id string) ClientOption {
	return func(c *Client) {
		c.identity = strings.TrimSpace(id)
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient builds a Client for the gateway at addr (host:port or URL).
func NewClient(addr string, opts ...ClientOption) (*Client, error) {
	base, err := parseBaseURL(addr)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Identity returns the caller identity, if any.
func (c *Client) Identity() string {
	return c.identity
}

// Call invokes method with args and decodes the result into reply.
func (c *Client) Call(ctx context.Context, method string, args []any, reply any) error {
	if c == nil {
		return errors.New("client is nil")
	}
	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return errors.Wrapf(err, "encode %s arguments", method)
	}
	rel := &url.URL{Path: "/api/call/" + url.PathEscape(method)}
	return c.do(ctx, http.MethodPost, method, rel, body, reply)
}

// Ping checks that the gateway is up. Transport failures wrap ErrUnavailable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("client is nil")
	}
	return c.do(ctx, http.MethodGet, "status", &url.URL{Path: "/api/status"}, nil, nil)
}

func (c *Client) do(ctx context.Context, httpMethod, method string, rel *url.URL, body []byte, dest any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limit")
		}
	}

	reqURL := c.baseURL.ResolveReference(rel)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, reqURL.String(), reader)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.identity != "" {
		req.Header.Set("X-Caller", c.identity)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(ErrUnavailable, "execute request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeCallError(method, resp)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrapf(err, "decode %s response", method)
	}
	return nil
}

func decodeCallError(method string, resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(data))
	}
	return &CallError{Method: method, Status: resp.StatusCode, Message: payload.Error}
}

func parseBaseURL(addr string) (*url.URL, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		trimmed = defaultAddr
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, errors.Wrapf(err, "parse actor_url %q", addr)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
