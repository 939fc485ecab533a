// Package hub is an HTTP client for model repositories speaking the
// Hugging Face hub download surface: repository metadata, revisioned file
// resolution, and a local snapshot cache shared with the Python tooling.
//
// A Client satisfies the repository interfaces of package pretrained, so it
// plugs directly into FromPretrained and the built-in pusher.
package hub

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/samcharles93/hubkit/internal/version"
)

const (
	// DefaultBaseURL is the public hub endpoint, overridable with
	// HF_ENDPOINT or WithBaseURL.
	DefaultBaseURL = "https://huggingface.co"

	// DefaultRevision is used when a call leaves the revision empty.
	DefaultRevision = "main"

	defaultTimeout    = 10 * time.Minute
	defaultMaxRetries = 3
	retryDelay        = 500 * time.Millisecond
)

// Client talks to one hub endpoint. The zero value is not usable; call
// NewClient. Methods are safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userAgent  string
	cacheDir   string
	maxRetries int
	limiter    *rate.Limiter
	log        *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithBaseURL points the client at a different hub endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithUserAgent replaces the User-Agent header value.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithTimeout bounds each request including the body transfer.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithCacheDir sets the client's default snapshot cache root. Per-call
// cache directories still win.
func WithCacheDir(dir string) ClientOption {
	return func(c *Client) { c.cacheDir = dir }
}

// WithMaxRetries bounds retries of idempotent requests on 5xx and
// transport errors.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithRateLimit throttles outgoing requests client-side.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithLogger enables debug logging of requests and transfers.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient builds a Client. Defaults come from the environment: HF_ENDPOINT
// for the base URL and HF_TOKEN for the credential; options override both.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    DefaultBaseURL,
		token:      os.Getenv(EnvToken),
		userAgent:  "hubkit/" + version.Resolve().Version,
		maxRetries: defaultMaxRetries,
		log:        slog.New(slog.DiscardHandler),
	}
	if ep := os.Getenv(EnvEndpoint); ep != "" {
		c.baseURL = strings.TrimRight(ep, "/")
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL reports the endpoint the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) resolveURL(repoID, revision, filename string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", c.baseURL, repoID, url.PathEscape(revision), escapePath(filename))
}

func (c *Client) apiURL(parts ...string) string {
	return c.baseURL + "/api/" + strings.Join(parts, "/")
}

// escapePath escapes each segment of a slash-separated repository path so
// names with spaces, percent signs or query metacharacters survive URL
// parsing. The separating slashes stay.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// newRequest builds a request with the standard headers. An empty token
// falls back to the client's own.
func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader, token string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("hub: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if token == "" {
		token = c.token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// send applies the rate limit and dispatches through the client for the
// call's proxy configuration.
func (c *Client) send(req *http.Request, proxies map[string]string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	hc, err := c.clientFor(proxies)
	if err != nil {
		return nil, err
	}
	return hc.Do(req)
}

// get retries idempotent requests on transport errors and 5xx responses.
// notFound names the 404 sentinel for this request.
func (c *Client) get(ctx context.Context, u, token string, proxies map[string]string, notFound error) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.log.Debug("retrying request", "url", u, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
		req, err := c.newRequest(ctx, http.MethodGet, u, nil, token)
		if err != nil {
			return nil, err
		}
		resp, err := c.send(req, proxies)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = responseError(resp, notFound)
			continue
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, responseError(resp, notFound)
		}
		return resp, nil
	}
	return nil, lastErr
}

// clientFor returns the shared HTTP client, or a copy with a per-scheme
// proxy function when the call forwarded proxies.
func (c *Client) clientFor(proxies map[string]string) (*http.Client, error) {
	if len(proxies) == 0 {
		return c.httpClient, nil
	}
	for scheme, p := range proxies {
		if _, err := url.Parse(p); err != nil {
			return nil, fmt.Errorf("hub: proxy for %s: %w", scheme, err)
		}
	}
	var tr *http.Transport
	if base, ok := c.httpClient.Transport.(*http.Transport); ok {
		tr = base.Clone()
	} else {
		tr = http.DefaultTransport.(*http.Transport).Clone()
	}
	tr.Proxy = func(req *http.Request) (*url.URL, error) {
		if p, ok := proxies[req.URL.Scheme]; ok {
			return url.Parse(p)
		}
		return http.ProxyFromEnvironment(req)
	}
	hc := *c.httpClient
	hc.Transport = tr
	return &hc, nil
}

func orDefault(revision string) string {
	if revision == "" {
		return DefaultRevision
	}
	return revision
}
