package analytics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/dreschagin/risk-dashboard/internal/application/port"
	"github.com/dreschagin/risk-dashboard/internal/infrastructure/cache/redis"
	"github.com/dreschagin/risk-dashboard/internal/infrastructure/discovery"
	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

const invalidBodyMessage = "invalid response body"

// Endpoints resolves service base URLs, implemented by discovery.Manager.
type Endpoints interface {
	BaseURL(service discovery.Service) (*url.URL, error)
}

// Config tunes the reliability chain of the client.
type Config struct {
	RequestTimeout time.Duration
	RetryAttempts  uint
	RetryDelay     time.Duration
	RequestsPerSec float64
	Burst          int
	BreakerTimeout time.Duration
	MaxBodyBytes   int64
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 200 * time.Millisecond
	}
	if c.RequestsPerSec <= 0 {
		c.RequestsPerSec = 20
	}
	if c.Burst <= 0 {
		c.Burst = 20
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 4 << 20
	}
	return c
}

// Option configures the client.
type Option func(*Client)

// WithCache enables read-through caching of cacheable requests.
func WithCache(cache port.Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client performs GET requests against the RCA and UEBA backends:
// rate limiter, then circuit breaker per service, then retries.
type Client struct {
	http      *http.Client
	endpoints Endpoints
	cache     port.Cache
	limiter   *rate.Limiter
	breakers  map[discovery.Service]*gobreaker.CircuitBreaker
	cfg       Config
	logger    *logger.Logger
}

func NewClient(endpoints Endpoints, cfg Config, log *logger.Logger, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		http:      &http.Client{},
		endpoints: endpoints,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		breakers:  make(map[discovery.Service]*gobreaker.CircuitBreaker, 2),
		cfg:       cfg,
		logger:    log.With("component", "analytics"),
	}
	for _, svc := range []discovery.Service{discovery.ServiceRCA, discovery.ServiceUEBA} {
		c.breakers[svc] = newBreaker(svc, cfg.BreakerTimeout, c.logger)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(svc discovery.Service, timeout time.Duration, log *logger.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "analytics-" + string(svc),
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// Backend ответил, значит он жив: 4xx и битое тело не размыкают цепь
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// GetJSON fetches path from the service and decodes the body into dest.
// Errors are *port.FetchError.
func (c *Client) GetJSON(ctx context.Context, service discovery.Service, path string, dest any, cacheable bool) error {
	key := redis.GenerateCacheKey(string(service), path)
	if cacheable && c.cache != nil {
		cached, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			if decodeErr := json.Unmarshal(cached, dest); decodeErr == nil {
				return nil
			}
			c.logger.Warn("Dropping undecodable cache entry", "key", key)
			_ = c.cache.Delete(ctx, key)
		case !errors.Is(err, port.ErrCacheMiss):
			c.logger.Warn("Cache read failed", "key", key, "error", err.Error())
		}
	}

	body, err := c.fetch(ctx, service, path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return port.NewParseError(invalidBodyMessage, err)
	}

	if cacheable && c.cache != nil {
		c.store(ctx, key, body)
	}
	return nil
}

// store пишет в кэш в фоне, ошибки только логируются
func (c *Client) store(ctx context.Context, key string, body []byte) {
	go func() {
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := c.cache.Set(storeCtx, key, body); err != nil {
			c.logger.Warn("Cache write failed", "key", key, "error", err.Error())
		}
	}()
}

func (c *Client) fetch(ctx context.Context, service discovery.Service, path string) ([]byte, error) {
	base, err := c.endpoints.BaseURL(service)
	if err != nil {
		return nil, port.NewTransportError("analytics endpoint unavailable", 0, err)
	}
	target := strings.TrimRight(base.String(), "/") + path

	breaker, ok := c.breakers[service]
	if !ok {
		return nil, port.NewTransportError("unknown analytics service", 0, fmt.Errorf("service %q", service))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, port.NewTransportError("rate limit exceeded", 0, err)
	}

	result, err := breaker.Execute(func() (interface{}, error) {
		var (
			body    []byte
			lastErr error
		)
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(c.cfg.RetryAttempts),
			retry.Delay(c.cfg.RetryDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.RetryIf(retryable),
		)
		retryErr := r.Do(func() error {
			body, lastErr = c.get(ctx, target)
			return lastErr
		})
		if retryErr != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, port.NewTransportError("request canceled", 0, retryErr)
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, port.NewTransportError("Service Unavailable", http.StatusServiceUnavailable, err)
		}
		return nil, err
	}

	return result.([]byte), nil
}

// get одна попытка запроса
func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, port.NewTransportError("invalid request", 0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, port.NewTransportError("network error", 0, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, port.NewTransportError(statusText(resp.StatusCode), resp.StatusCode, nil)
	}

	// Читаем на байт больше лимита, чтобы отличить обрезанное тело
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, port.NewTransportError("network error", 0, err)
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return nil, port.NewParseError(invalidBodyMessage, fmt.Errorf("body exceeds %d bytes", c.cfg.MaxBodyBytes))
	}
	return body, nil
}

func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", code)
}

// retryable: сетевые ошибки и 5xx; отмена контекста не повторяется
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var fe *port.FetchError
	if !errors.As(err, &fe) {
		return true
	}
	if fe.Kind != port.FetchTransport {
		return false
	}
	return fe.Status == 0 || fe.Status >= 500
}
