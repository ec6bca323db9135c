package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 20 * time.Second
	defaultUserAgent = "FeedAggregator/1.0"
	defaultMaxBody   = 8 << 20
)

// FetchOptions tunes outbound HTTP behaviour shared by every parser.
type FetchOptions struct {
	Timeout      time.Duration
	UserAgent    string
	HostInterval time.Duration
	MaxBodyBytes int64
}

// Fetcher issues HTTP requests with a per-fetch timeout and per-host spacing.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	maxBody   int64
	limiter   *hostLimiter
	logger    *slog.Logger
}

// NewFetcher wires an HTTP client; a nil client gets one with the fetch timeout.
func NewFetcher(client *http.Client, opts FetchOptions, log *slog.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{
		client:    client,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBodyBytes,
		limiter:   newHostLimiter(opts.HostInterval),
		logger:    log,
	}
}

// Fetch performs the request and returns the (size-capped) response body.
func (f *Fetcher) Fetch(ctx context.Context, method, target string, headers map[string]string, body string) ([]byte, error) {
	if method == "" {
		method = http.MethodGet
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.limiter.wait(ctx, target); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	f.debug("fetch", "method", method, "url", target)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%s returned %s", target, resp.Status)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(payload)) > f.maxBody {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", target, f.maxBody)
	}

	return payload, nil
}

func (f *Fetcher) debug(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

// hostLimiter spaces requests to the same host; a zero interval disables it.
type hostLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
}

func newHostLimiter(interval time.Duration) *hostLimiter {
	return &hostLimiter{interval: interval, limiters: map[string]*rate.Limiter{}}
}

func (h *hostLimiter) wait(ctx context.Context, target string) error {
	if h == nil || h.interval <= 0 {
		return nil
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return err
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host in %q", target)
	}

	h.mu.Lock()
	limiter, ok := h.limiters[parsed.Host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(h.interval), 1)
		h.limiters[parsed.Host] = limiter
	}
	h.mu.Unlock()

	return limiter.Wait(ctx)
}
