// Package reddit provides a small client for the reddit JSON API.
//
// The client authenticates with the OAuth2 password grant of a script app,
// paces requests with a token bucket, retries transient transport failures
// through retryablehttp and converts responses into the models package.
// Rate-limit responses are surfaced as *RateLimitError so callers decide how
// to back off.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"srtools/internal/config"
	"srtools/internal/logger"
	"srtools/internal/retry"
)

const (
	// maxResponseBytes bounds the size of a decoded response body.
	maxResponseBytes = 16 * 1024 * 1024
	// defaultRateLimitSleep is used when a 429 carries no reset header.
	defaultRateLimitSleep = 60 * time.Second
)

// Client talks to one reddit site.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
	site       config.SiteConfig
	token      string
	expiry     time.Time
	mu         sync.Mutex
	static     bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the retrying transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken uses a fixed bearer token and skips the password grant.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
		c.static = true
	}
}

// WithSleep replaces the function used for rate-limit back-off.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// WithLimiter replaces the request pacing limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// NewClient creates a client for site using policy for transport retries.
func NewClient(site config.SiteConfig, policy config.RetryPolicy, log *logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.Discard()
	}

	perMinute := site.RequestsPerMinute
	if perMinute < 1 {
		perMinute = 60
	}

	c := &Client{
		httpClient: newRetryingHTTPClient(policy, log),
		limiter:    rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
		logger:     log.With("component", "reddit"),
		sleep:      retry.SleepContext,
		now:        time.Now,
		site:       site,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// newRetryingHTTPClient builds a retryablehttp client whose backoff follows policy.
// 429 responses are not retried here; they become *RateLimitError.
func newRetryingHTTPClient(policy config.RetryPolicy, log *logger.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Transport = cleanhttp.DefaultPooledTransport()
	rc.RetryMax = max(policy.MaxAttempts-1, 0)
	rc.RetryWaitMin = time.Duration(policy.InitialDelayMs) * time.Millisecond
	rc.RetryWaitMax = time.Duration(policy.MaxDelayMs) * time.Millisecond
	rc.Logger = retryablehttp.LeveledLogger(log.Retry())
	rc.CheckRetry = checkRetry
	rc.Backoff = func(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		return policy.GetRetryDelay(attemptNum + 1)
	}

	hc := rc.StandardClient()
	hc.Timeout = policy.GetTimeout()

	return hc
}

type resendableKey struct{}

// resendable marks the requests made with ctx as safe to send more than once.
func resendable(ctx context.Context) context.Context {
	return context.WithValue(ctx, resendableKey{}, true)
}

// checkRetry retries transport failures and 5xx responses of resendable
// requests only. A POST such as /api/submit may have taken effect even when
// its response was lost.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if ok, _ := ctx.Value(resendableKey{}).(bool); !ok {
		return false, nil
	}

	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}

	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Username returns the account the client authenticates as.
func (c *Client) Username() string {
	return c.site.Username
}

// get performs an authenticated GET against the API host and decodes JSON into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}

	params.Set("raw_json", "1")

	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

// post performs an authenticated form POST and decodes JSON into out.
func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	if form == nil {
		form = url.Values{}
	}

	form.Set("api_type", "json")

	return c.do(ctx, http.MethodPost, path, nil, form, out)
}

func (c *Client) do(ctx context.Context, method, path string, params, form url.Values, out any) error {
	err := c.doOnce(ctx, method, path, params, form, out)

	// An expired token is refreshed once.
	var se *StatusError
	if err != nil && !c.static && errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()

		return c.doOnce(ctx, method, path, params, form, out)
	}

	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, params, form url.Values, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := strings.TrimRight(c.site.APIURL, "/") + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	reqCtx := ctx
	if method == http.MethodGet {
		reqCtx = resendable(ctx)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.site.UserAgent)
	req.Header.Set("Accept", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.logger.Debug("request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{SleepTime: resetDuration(resp.Header)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method:     method,
			URL:        path,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(data), 200),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response of %s: %w", path, err)
	}

	return nil
}

// withBackoff repeats op while it reports rate limiting, sleeping for the
// server supplied hint in between.
func (c *Client) withBackoff(ctx context.Context, op func(ctx context.Context) error) error {
	return retry.Run(ctx, c.rateLimitPolicy(), op)
}

func (c *Client) rateLimitPolicy() retry.Policy {
	return retry.Policy{
		Classify: RateLimitClassifier,
		Sleep:    c.sleep,
		OnRetry: func(err error, attempt int, wait time.Duration) {
			c.logger.Info("sleeping for rate limit", "seconds", int(wait.Seconds()), "attempt", attempt)
		},
	}
}

// RateLimitClassifier retries *RateLimitError for the duration it signals.
func RateLimitClassifier(err error, _ int) (retry.Decision, time.Duration) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return retry.Retry, rle.SleepTime
	}

	return retry.Fail, 0
}

// resetDuration reads the X-Ratelimit-Reset header (seconds until reset).
func resetDuration(h http.Header) time.Duration {
	raw := h.Get("X-Ratelimit-Reset")
	if raw == "" {
		raw = h.Get("Retry-After")
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || secs <= 0 {
		return defaultRateLimitSleep
	}

	return time.Duration(secs * float64(time.Second))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
