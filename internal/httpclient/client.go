package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"Blindtime/internal/logger"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// ErrTimeout is returned (wrapped) by Send when the request exceeded its per-request timeout.
var ErrTimeout = errors.New("request timed out")

// ErrTransport is returned (wrapped) by Send for every other network-level failure.
var ErrTransport = errors.New("transport failure")

// maxBodySize caps how much of a response body is kept in memory.
const maxBodySize = 5 << 20

// GrepFunc inspects a response that was sent with SendOptions.Grep set.
type GrepFunc func(resp *Response)

// Client represents a custom HTTP client for Blindtime, encapsulating http.Client and custom behaviors.
type Client struct {
	httpClient   *http.Client      // The underlying standard HTTP client.
	logger       *logger.Logger    // Logger for client-related messages.
	userAgent    string            // Custom User-Agent header for requests.
	maxRetries   int               // Maximum number of retries for SendOptions.Retry requests.
	requestDelay time.Duration     // Delay between retries.
	authHeaders  map[string]string // Authentication headers to be added to requests.
	timeout      time.Duration     // Timeout applied when a request carries none.
	limiter      *rate.Limiter     // Optional outbound rate limit.
	cache        *expirable.LRU[string, *Response]
	nextID       atomic.Int64

	grepMu sync.RWMutex
	greps  []GrepFunc
}

// ClientOptions holds configuration parameters for initializing the HTTP Client.
type ClientOptions struct {
	Timeout            time.Duration     // Default timeout for HTTP requests.
	FollowRedirects    bool              // Whether to follow HTTP redirects.
	InsecureSkipVerify bool              // Whether to skip TLS certificate verification.
	UserAgent          string            // Custom User-Agent string.
	MaxRetries         int               // Maximum number of retries for requests.
	RequestDelay       time.Duration     // Delay between retries.
	RateLimit          float64           // Requests per second; 0 disables limiting.
	CacheSize          int               // Entries in the GET response cache; 0 uses the default.
	CacheTTL           time.Duration     // Lifetime of cached responses.
	TargetBaseURL      string            // Base URL of the target, used for cookie scope.
	AuthCookie         string            // Static cookie string for authentication.
	AuthHeaders        map[string]string // Static headers for authentication.
}

// SendOptions controls a single Send call.
type SendOptions struct {
	Timeout     time.Duration // Hard per-request timeout; 0 uses the client default.
	UseCache    bool          // Allow serving an identical GET from the response cache.
	Grep        bool          // Pass the response to registered grep hooks.
	Retry       bool          // Retry failures and 429/5xx answers up to MaxRetries times.
	DebuggingID string        // Correlation token for log lines.
}

// NewClient creates and returns a new HTTP client instance with specified options.
func NewClient(log *logger.Logger, opts ClientOptions) *Client {
	// Set default User-Agent if not provided.
	if opts.UserAgent == "" {
		opts.UserAgent = "Blindtime-Scanner/1.0"
	}
	// Set default timeout if not provided.
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	// Ensure max retries is not negative.
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	// Initialize cookie jar for session management.
	jar, _ := cookiejar.New(nil)
	transport := &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify},
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &Client{
		// No client-wide timeout: every request carries its own deadline through its context,
		// delay probes need deadlines well above the default.
		httpClient: &http.Client{
			Transport: transport,
			Jar:       jar,
		},
		logger:       log,
		userAgent:    opts.UserAgent,
		maxRetries:   opts.MaxRetries,
		requestDelay: opts.RequestDelay,
		authHeaders:  opts.AuthHeaders,
		timeout:      opts.Timeout,
		cache:        expirable.NewLRU[string, *Response](opts.CacheSize, nil, opts.CacheTTL),
	}
	if opts.RateLimit > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	// Set static authentication cookie if provided.
	if opts.AuthCookie != "" {
		log.Info("Static cookie authentication configured.")
		targetURL, err := url.Parse(opts.TargetBaseURL)
		if err != nil {
			log.Error("Failed to parse target URL for setting cookie: %v", err)
		} else {
			header := http.Header{}
			header.Add("Cookie", opts.AuthCookie)
			request := http.Request{Header: header}
			client.httpClient.Jar.SetCookies(targetURL, request.Cookies())
			log.Debug("Static session cookie set for domain %s", targetURL.Host)
		}
	}

	if len(opts.AuthHeaders) > 0 {
		log.Info("Static header authentication configured.")
	}

	client.httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if !opts.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= 10 {
			log.Warn("Exceeded maximum redirects (10).")
			return http.ErrUseLastResponse
		}
		return nil
	}
	return client
}

// RegisterGrep adds a hook that sees every response sent with SendOptions.Grep.
func (c *Client) RegisterGrep(fn GrepFunc) {
	c.grepMu.Lock()
	defer c.grepMu.Unlock()
	c.greps = append(c.greps, fn)
}

// rateLimitBackoff is how long a retried request waits after a 429.
var rateLimitBackoff = 5 * time.Second

// Send performs a timed request. By default it is sent exactly once; with SendOptions.Retry
// set, transport failures, 429 and 5xx answers are retried up to MaxRetries times.
// Delay measurements never set Retry: a retry would hide the wait time being observed.
//
// A request that exceeds its timeout fails with an error matching ErrTimeout; any other
// network failure matches ErrTransport. Non-2xx statuses are not errors.
func (c *Client) Send(ctx context.Context, req *http.Request, opts SendOptions) (*Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	cacheKey := ""
	if opts.UseCache && req.Method == http.MethodGet {
		cacheKey = req.Method + " " + req.URL.String()
		if cached, ok := c.cache.Get(cacheKey); ok {
			c.logger.Trace("[did=%s] Cache hit: %s", opts.DebuggingID, cacheKey)
			return cached, nil
		}
	}

	attempts := 1
	if opts.Retry {
		attempts += c.maxRetries
	}

	var out *Response
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if werr := sleepContext(ctx, c.requestDelay); werr != nil {
				return nil, fmt.Errorf("%w: %v", ErrTransport, werr)
			}
			c.logger.Debug("[did=%s] Retrying %s %s (attempt %d/%d)", opts.DebuggingID, req.Method, req.URL, i+1, attempts)
		}

		out, err = c.send(ctx, req, timeout, opts.DebuggingID)
		if err != nil {
			if errors.Is(err, ErrTimeout) || ctx.Err() != nil {
				break
			}
			continue
		}
		if out.StatusCode != http.StatusTooManyRequests && (out.StatusCode < 500 || out.StatusCode > 599) {
			break
		}
		if out.StatusCode == http.StatusTooManyRequests && i+1 < attempts {
			c.logger.Warn("Rate limit detected (429 Too Many Requests). Waiting for %v before retrying...", rateLimitBackoff)
			if werr := sleepContext(ctx, rateLimitBackoff); werr != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		c.cache.Add(cacheKey, out)
	}
	if opts.Grep {
		c.grep(out)
	}
	return out, nil
}

// send performs one attempt and reads the whole body.
func (c *Client) send(ctx context.Context, req *http.Request, timeout time.Duration, debuggingID string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", ErrTransport, err)
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	httpReq := req.Clone(reqCtx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("%w: rewind body: %v", ErrTransport, err)
		}
		httpReq.Body = body
	}
	c.prepare(httpReq)

	c.logger.Trace("[did=%s] Sending request: %s %s (timeout=%s)", debuggingID, httpReq.Method, httpReq.URL.String(), timeout)
	if cookies := c.httpClient.Jar.Cookies(httpReq.URL); len(cookies) > 0 {
		var cookieStrings []string
		for _, cookie := range cookies {
			cookieStrings = append(cookieStrings, cookie.Name+"="+cookie.Value)
		}
		c.logger.Trace("  -> Cookies from Jar to be sent: %s", strings.Join(cookieStrings, "; "))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.classify(reqCtx, err, timeout)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.classify(reqCtx, err, timeout)
	}
	wait := time.Since(start)

	out := &Response{
		ID:         c.nextID.Add(1),
		URL:        httpReq.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		WaitTime:   wait,
	}
	c.logger.Trace("[did=%s] Response id=%d status=%d wait=%.3fs", debuggingID, out.ID, out.StatusCode, wait.Seconds())
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NewNoContentResponse builds a placeholder response for a request that produced none,
// so callers always have an ID and a wait time to work with.
func (c *Client) NewNoContentResponse(req *http.Request, wait time.Duration) *Response {
	u := ""
	if req != nil && req.URL != nil {
		u = req.URL.String()
	}
	return &Response{
		ID:         c.nextID.Add(1),
		URL:        u,
		StatusCode: http.StatusNoContent,
		Header:     http.Header{},
		WaitTime:   wait,
	}
}

// classify maps an http.Client error onto ErrTimeout or ErrTransport.
func (c *Client) classify(reqCtx context.Context, err error, timeout time.Duration) error {
	var netErr net.Error
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

func (c *Client) grep(resp *Response) {
	c.grepMu.RLock()
	hooks := make([]GrepFunc, len(c.greps))
	copy(hooks, c.greps)
	c.grepMu.RUnlock()
	for _, fn := range hooks {
		fn(resp)
	}
}

// prepare sets the User-Agent and any configured authentication headers.
func (c *Client) prepare(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	for key, value := range c.authHeaders {
		req.Header.Set(key, value)
	}
}
