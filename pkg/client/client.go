package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	errs "sgsync/pkg/errors"
	"sgsync/pkg/logger"
	"sgsync/pkg/ratelimit"
	"sgsync/pkg/retry"

	"golang.org/x/net/publicsuffix"
)

// SessionCookie is the name of the SteamGifts session cookie
const SessionCookie = "PHPSESSID"

// Options configures a Client
type Options struct {
	// BaseURL scopes the session cookie
	BaseURL   string
	Cookie    string
	UserAgent string
	Timeout   time.Duration
	// Limiter is waited on before every attempt. Nil disables rate limiting.
	Limiter ratelimit.Limiter
	// Retry controls transient failure handling. Nil uses retry.DefaultConfig.
	Retry  *retry.Config
	Logger logger.Logger
}

// Client is a rate limited HTTP client carrying the SteamGifts session
type Client struct {
	httpClient       *http.Client
	noRedirectClient *http.Client
	jar              *cookiejar.Jar
	baseURL          *url.URL
	headers          map[string]string
	limiter          ratelimit.Limiter
	retryConfig      *retry.Config
	logger           logger.Logger
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// URL is the final URL after any followed redirects
	URL string
}

// IsRedirect reports whether the response is a 3xx
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// Text returns the body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// New creates a client from opts
func New(opts Options) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	retryCfg := opts.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	if retryCfg.Logger == nil {
		retryCfg.Logger = log
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "sgsync"
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		noRedirectClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		jar:     jar,
		baseURL: base,
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
		},
		limiter:     opts.Limiter,
		retryConfig: retryCfg,
		logger:      log,
	}

	if opts.Cookie != "" {
		c.SetCookie(opts.Cookie)
	}
	return c, nil
}

// SetCookie installs the session cookie for the base URL
func (c *Client) SetCookie(value string) {
	c.jar.SetCookies(c.baseURL, []*http.Cookie{{
		Name:  SessionCookie,
		Value: value,
		Path:  "/",
	}})
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// BaseURL returns the configured base URL without a trailing slash
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.baseURL.String(), "/")
}

// Request performs a rate limited request with retries on transient failures.
// Non-retryable statuses come back as a normal response.
func (c *Client) Request(ctx context.Context, method, rawURL string, params url.Values, allowRedirects bool) (*Response, error) {
	target, err := withParams(rawURL, params)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "invalid url %q", rawURL)
	}

	resp, err := retry.DoWithResult(func() (*Response, error) {
		return c.attempt(ctx, method, target, allowRedirects)
	}, c.retryConfig.WithContext(ctx))
	if err != nil {
		if errors.Is(err, retry.ErrMaxAttempts) {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeRequestFailed,
				Message: fmt.Sprintf("%s gave up", method),
				URL:     target,
				Err:     err,
			}
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) attempt(ctx context.Context, method, target string, allowRedirects bool) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	hc := c.httpClient
	if !allowRedirects {
		hc = c.noRedirectClient
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":      method,
			"url":         target,
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		e := errs.Wrap(errs.ErrorTypeNetwork, err, "network error")
		e.URL = target
		return nil, e
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e := errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body")
		e.Code = resp.StatusCode
		e.URL = target
		return nil, e
	}
	logger.LogRequest(c.logger, method, target, resp.StatusCode, time.Since(start))

	if errs.IsRetryableStatusCode(resp.StatusCode) {
		e := errs.New(errs.TypeForStatus(resp.StatusCode), resp.StatusCode, "server returned status %d", resp.StatusCode)
		e.URL = target
		return nil, e
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		URL:        resp.Request.URL.String(),
	}, nil
}

// Get follows redirects
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	return c.Request(ctx, http.MethodGet, rawURL, params, true)
}

// GetNoRedirect returns redirects as responses
func (c *Client) GetNoRedirect(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	return c.Request(ctx, http.MethodGet, rawURL, params, false)
}

// Probe issues a HEAD without following redirects; ok is false when the
// server answered with a redirect.
func (c *Client) Probe(ctx context.Context, rawURL string) (bool, error) {
	resp, err := c.Request(ctx, http.MethodHead, rawURL, nil, false)
	if err != nil {
		return false, err
	}
	return !resp.IsRedirect(), nil
}

// GetJSON performs a GET and decodes a 200 response into target
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, target interface{}) error {
	resp, err := c.Get(ctx, rawURL, params)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		t := errs.TypeForStatus(resp.StatusCode)
		e := errs.New(t, resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
		e.URL = resp.URL
		return e
	}

	if err := json.Unmarshal(resp.Body, target); err != nil {
		bodyPreview := resp.Text()
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          resp.URL,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		e := errs.Wrap(errs.ErrorTypeMalformed, err, "failed to parse JSON")
		e.URL = resp.URL
		return e
	}
	return nil
}

func withParams(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for key, values := range params {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
