// Package upstream provides the HTTP client used to fetch third-party
// resources on cache misses. A fetch is a single request/response exchange;
// retry and backoff are intentionally not part of this layer.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/retail-proxy/pkg/logging"
)

// Prometheus metrics for upstream fetch operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Total upstream requests by status",
	}, []string{"status"})

	upstreamRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Client fetches resources from the upstream data source.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     zerolog.Logger
}

// Config holds the upstream client configuration.
type Config struct {
	// UserAgent sent with every request.
	UserAgent string

	// Timeout for a single fetch (default: 30s).
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent: "retail-proxy/0.1.0",
		Timeout:   30 * time.Second,
	}
}

// New creates a new upstream client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent: cfg.UserAgent,
		logger:    logging.NewLogger("upstream"),
	}
}

// Fetch performs a single GET against the given URL and returns the response
// body. Any non-2xx status or transport failure is returned as *Error.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", url).Msg("Fetching upstream resource")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", url).Msg("Upstream request failed")
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		upstreamRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, &Error{
			URL:        url,
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		class := classifyStatus(resp.StatusCode)
		upstreamErrorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Str("url", url).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Upstream returned non-success status")

		return nil, &Error{
			URL:        url,
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &Error{
			URL:        url,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	c.logger.Debug().
		Str("url", url).
		Int("bytes", len(body)).
		Dur("duration", time.Since(startTime)).
		Msg("Upstream fetch succeeded")

	return body, nil
}

// classifyStatus categorizes a non-success status code for observability.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
