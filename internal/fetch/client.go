// Package fetch retrieves remote documents with bounded, jittered retries.
// It knows nothing about payload semantics.
package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"escrutinio/internal/bootstrap/logging"
	"escrutinio/internal/errs"
	"escrutinio/internal/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 30 * time.Second
	defaultTimeout     = 30 * time.Second
	defaultUserAgent   = "escrutinio/1.0 (+open parliamentary data)"
)

var retryableStatus = map[int]struct{}{
	http.StatusRequestTimeout:      {},
	http.StatusTooEarly:            {},
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// FetchError is the only error returned by Client.Get.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Retryable  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Kind() string { return "FetchError" }

type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	UserAgent   string
	InsecureTLS bool
}

type Request struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

type Response struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

type Client struct {
	http    *http.Client
	opts    Options
	metrics *metrics.Metrics

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
	now    func() time.Time
}

func New(opts Options, m *metrics.Metrics) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // debug flag for misconfigured origins
	}

	return &Client{
		http:    &http.Client{Transport: transport},
		opts:    opts,
		metrics: m,
		sleep:   sleepContext,
		jitter:  rand.Float64,
		now:     time.Now,
	}
}

// Get retrieves req.URL, retrying transient failures. Exhausted retries return
// the last observed error.
func (c *Client) Get(ctx context.Context, req Request) (Response, error) {
	ctx = logging.WithAttrs(ctx, slog.String("component", "fetch.client"), slog.String("url", req.URL))

	for attempt := 1; ; attempt++ {
		started := c.now()
		resp, retryAfter, err := c.attempt(ctx, req)
		elapsed := c.now().Sub(started).Seconds()
		if err == nil {
			c.metrics.FetchAttempt("ok", elapsed)
			return resp, nil
		}

		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			fetchErr = &FetchError{URL: req.URL, Err: err}
		}
		fetchErr.Attempts = attempt
		if !fetchErr.Retryable || attempt >= c.opts.MaxAttempts {
			c.metrics.FetchAttempt("error", elapsed)
			logging.Warn(ctx, "fetch failed",
				slog.Int("attempt", attempt),
				slog.Int("status", fetchErr.StatusCode),
				slog.Any("err", errs.Loggable(fetchErr)),
			)
			return Response{}, fetchErr
		}

		delay := c.backoff(attempt, retryAfter)
		c.metrics.FetchAttempt("retry", elapsed)
		c.metrics.FetchRetry()
		logging.Debug(ctx, "fetch retry scheduled",
			slog.Int("attempt", attempt),
			slog.Int("status", fetchErr.StatusCode),
			slog.Duration("delay", delay),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return Response{}, &FetchError{URL: req.URL, Attempts: attempt, Err: err}
		}
	}
}

// attempt performs one request. retryAfter is >= 0 when the server sent a
// usable Retry-After header.
func (c *Client) attempt(ctx context.Context, req Request) (Response, time.Duration, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Response{}, -1, &FetchError{URL: req.URL, Err: err}
	}
	httpReq.Header.Set("User-Agent", c.opts.UserAgent)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// The caller's own cancellation is final; per-attempt timeouts and
		// connection errors are transient.
		return Response{}, -1, &FetchError{URL: req.URL, Retryable: ctx.Err() == nil, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_, retryable := retryableStatus[resp.StatusCode]
		return Response{}, parseRetryAfter(resp.Header.Get("Retry-After"), c.now()), &FetchError{
			URL:        req.URL,
			StatusCode: resp.StatusCode,
			Retryable:  retryable,
			Err:        errors.New(resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, -1, &FetchError{URL: req.URL, Retryable: ctx.Err() == nil, Err: errs.Wrap(err, "read body")}
	}

	return Response{
		URL:         req.URL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, -1, nil
}

// backoff is base*2^(attempt-1) capped at MaxDelay plus up to 50% jitter. A
// server Retry-After wins over the computed value and is capped at MaxDelay.
func (c *Client) backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter >= 0 {
		return min(retryAfter, c.opts.MaxDelay)
	}
	delay := c.opts.BaseDelay << (attempt - 1)
	if delay <= 0 || delay > c.opts.MaxDelay {
		delay = c.opts.MaxDelay
	}
	return delay + time.Duration(c.jitter()*0.5*float64(delay))
}

func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return -1
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return -1
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return -1
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
