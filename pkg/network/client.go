// Package network performs the real fetches behind the offline cache and
// classifies their failures.
package network

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/smartattend/swcache/pkg/logging"
)

// Prometheus metrics for network fetches.
var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swcache_fetch_total",
		Help: "Total network fetches by method and status",
	}, []string{"method", "status"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swcache_fetch_duration_seconds",
		Help:    "Network fetch duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swcache_fetch_errors_total",
		Help: "Total network fetch errors by class",
	}, []string{"class"})
)

// Fetcher resolves a request against the network.
type Fetcher interface {
	Fetch(req *http.Request) (*http.Response, error)
}

// Client is the network client used by strategies, install and sync.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Timeout bounds a single fetch; the core does not add its own timeouts.
	Timeout time.Duration

	// UserAgent is set on requests that carry none.
	UserAgent string

	// Transport overrides http.DefaultTransport (tests, host adapters).
	Transport http.RoundTripper
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		UserAgent: "swcache/1.0",
	}
}

// New creates a new network client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		config: cfg,
		logger: logging.NewLogger("network"),
	}
}

// Fetch performs req. Transport failures are returned as *NetworkError;
// any HTTP response, including non-2xx, is returned to the caller.
func (c *Client) Fetch(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	startTime := time.Now()
	defer func() {
		fetchDuration.WithLabelValues(req.Method).Observe(time.Since(startTime).Seconds())
	}()

	if c.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		fetchErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		fetchTotal.WithLabelValues(req.Method, "network_error").Inc()
		c.logger.Debug().Err(err).Str("url", req.URL.String()).Msg("Fetch failed")
		return nil, &NetworkError{
			URL:        req.URL.String(),
			ErrorClass: ErrorClassNetwork,
			Err:        err,
		}
	}

	fetchTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()
	if class := Classify(resp); class != "" {
		fetchErrorsTotal.WithLabelValues(string(class)).Inc()
	}

	c.logger.Debug().
		Str("url", req.URL.String()).
		Str("method", req.Method).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("Fetch complete")

	return resp, nil
}

// IsOK reports whether resp carries a status in the 2xx range.
func IsOK(resp *http.Response) bool {
	return resp != nil && resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Classify categorizes a non-OK response.
func Classify(resp *http.Response) ErrorClass {
	switch {
	case resp == nil:
		return ErrorClassNetwork
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
