// Package httpcheck implements the URL liveness check over plain HTTP.
package httpcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/linkchecker-service/internal/entity"
)

const userAgent = "linkchecker/1.0 (+https://github.com/user/linkchecker-service)"

// DefaultTimeout applies when New is given a non-positive timeout.
const DefaultTimeout = 10 * time.Second

// Checker issues a HEAD request per URL, falling back to GET when the
// server refuses HEAD. Requests share one rate limiter.
type Checker struct {
	client  *http.Client
	limiter *rate.Limiter
}

// Option configures a Checker.
type Option func(*Checker)

// WithRateLimit caps outbound requests per second. Zero or negative disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(c *Checker) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Checker) { c.client.Transport = rt }
}

// New returns a Checker whose requests give up after timeout.
func New(timeout time.Duration, opts ...Option) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Checker{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check never returns an error: every failure is a Broken result with a reason.
func (c *Checker) Check(ctx context.Context, url string) entity.CheckResult {
	if err := c.limiter.Wait(ctx); err != nil {
		return entity.CheckResult{Status: entity.StatusBroken, Reason: reasonFor(err)}
	}

	code, err := c.do(ctx, http.MethodHead, url)
	if err == nil && (code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented) {
		code, err = c.do(ctx, http.MethodGet, url)
	}
	if err != nil {
		return entity.CheckResult{Status: entity.StatusBroken, Reason: reasonFor(err)}
	}
	return Classify(code)
}

func (c *Checker) do(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode, nil
}

// Classify maps an HTTP status code to a verdict. 2xx and 3xx are Ok.
func Classify(code int) entity.CheckResult {
	reason := fmt.Sprintf("%d %s", code, http.StatusText(code))
	if code >= 200 && code < 400 {
		return entity.CheckResult{Status: entity.StatusOk, Reason: reason}
	}
	return entity.CheckResult{Status: entity.StatusBroken, Reason: reason}
}

// reasonFor names the error class of a failed request.
func reasonFor(err error) string {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &dnsErr):
		return "dns: " + dnsErr.Err
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	}
	return "request failed: " + err.Error()
}
