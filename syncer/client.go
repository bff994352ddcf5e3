package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"newbusiness/metrics"
	"newbusiness/models"
)

const (
	// DefaultTimeout is the default upstream request timeout
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum upstream response body size (10MB)
	MaxResponseSize = 10 * 1024 * 1024
)

var ErrMissingAPIKey = errors.New("API key required")

// UpstreamError aborts one collection of a bulk pull.
type UpstreamError struct {
	Collection string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to get %s: %v", e.Collection, e.Err)
	}
	return fmt.Sprintf("failed to get %s: status %d", e.Collection, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ClientConfig holds upstream read-API client configuration
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client reads JSON collections from one upstream system.
type Client struct {
	source models.Source
	cfg    ClientConfig
	http   *fasthttp.Client
}

func NewClient(source models.Source, cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("no API URL configured for %s", source.Label())
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		source: source,
		cfg:    cfg,
		http: &fasthttp.Client{
			Name:                "newbusiness-sync",
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxResponseBodySize: MaxResponseSize,
		},
	}, nil
}

// GetJSON fetches path and decodes the body into out. Any non-200 answer
// is an UpstreamError for collection.
func (c *Client) GetJSON(ctx context.Context, collection, path string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return &UpstreamError{Collection: collection, Err: err}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.BaseURL + "/" + strings.TrimLeft(path, "/"))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	timeout := c.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(string(c.source), "0").Inc()
		return &UpstreamError{Collection: collection, Err: err}
	}

	status := resp.StatusCode()
	metrics.UpstreamRequestsTotal.WithLabelValues(string(c.source), strconv.Itoa(status)).Inc()
	if status != fasthttp.StatusOK {
		return &UpstreamError{Collection: collection, StatusCode: status}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &UpstreamError{Collection: collection, StatusCode: status, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	return nil
}
