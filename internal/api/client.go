// Package api talks to the dashboard server: the config document and the
// generic widget data endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
	"github.com/odyssey-erp/dashclient/internal/filters"
	"github.com/odyssey-erp/dashclient/internal/observability"
)

const (
	configPath      = "/api/config"
	widgetsPath     = "/api/widgets/"
	maxErrorBody    = 512
	requestIDHeader = "X-Request-ID"
)

// ErrEmptyWidgetID is returned for a blank widget id.
var ErrEmptyWidgetID = errors.New("api: widget id required")

// FetchError is a non-success response of the dashboard server.
type FetchError struct {
	Op     string
	Status int
	Body   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s request failed: %d", e.Op, e.Status)
}

// pageParams are the paging parameters the client adds on its own.
type pageParams struct {
	Limit int `url:"limit,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

// WithPathPrefix mounts every endpoint under a deployment sub-path.
func WithPathPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = dashboard.NormalizePrefix(prefix)
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http.HTTPClient = client
		}
	}
}

// WithLogger sets the client logger, also used for retry logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
			c.http.Logger = logger
		}
	}
}

// WithMetrics records widget fetches.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithRetryMax sets how often failed requests are retried.
func WithRetryMax(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.http.RetryMax = n
		}
	}
}

// WithRetryWait bounds the wait between retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.http.RetryWaitMin = minWait
		c.http.RetryWaitMax = maxWait
	}
}

// WithTimeout bounds every request including retries.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithPageLimit asks the server for pages of n rows unless the caller set a
// limit itself.
func WithPageLimit(n int) Option {
	return func(c *Client) {
		c.pageLimit = n
	}
}

// Client is the HTTP collaborator of the widget controllers.
type Client struct {
	base      *url.URL
	prefix    string
	http      *retryablehttp.Client
	logger    *slog.Logger
	metrics   *observability.Metrics
	timeout   time.Duration
	pageLimit int
}

// NewClient builds a client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api: base url %q must be absolute", baseURL)
	}

	httpClient := retryablehttp.NewClient()
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	httpClient.Logger = slog.Default()

	c := &Client{
		base:   base,
		http:   httpClient,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// endpoint resolves an already escaped path against the base URL.
func (c *Client) endpoint(escapedPath string, params url.Values) string {
	u := *c.base
	raw := strings.TrimSuffix(u.EscapedPath(), "/") + dashboard.JoinPrefix(c.prefix, escapedPath)
	if path, err := url.PathUnescape(raw); err == nil {
		u.Path = path
		u.RawPath = raw
	}
	u.RawQuery = ""
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

// FetchConfig loads and validates the dashboard description.
func (c *Client) FetchConfig(ctx context.Context) (dashboard.AppConfig, error) {
	var cfg dashboard.AppConfig
	if err := c.getJSON(ctx, "Config", c.endpoint(configPath, nil), &cfg); err != nil {
		return dashboard.AppConfig{}, err
	}
	if err := dashboard.Validate(cfg); err != nil {
		return dashboard.AppConfig{}, err
	}
	return cfg, nil
}

// FetchWidgetData loads one page of rows for widgetID. params are sent
// verbatim, including any offset cursor.
func (c *Client) FetchWidgetData(ctx context.Context, widgetID string, params url.Values) (dashboard.DataResponse, error) {
	if strings.TrimSpace(widgetID) == "" {
		return dashboard.DataResponse{}, ErrEmptyWidgetID
	}
	values, err := c.withPaging(params)
	if err != nil {
		return dashboard.DataResponse{}, err
	}

	kind := "reload"
	if values.Has(filters.ParamOffset) {
		kind = "load_more"
	}
	start := time.Now()
	var resp dashboard.DataResponse
	err = c.getJSON(ctx, "Widget", c.endpoint(widgetsPath+url.PathEscape(widgetID), values), &resp)
	outcome := observability.OutcomeOK
	if err != nil {
		outcome = observability.OutcomeError
	}
	c.metrics.ObserveFetch(widgetID, kind, outcome, time.Since(start))
	if err != nil {
		return dashboard.DataResponse{}, err
	}
	if resp.Data == nil {
		resp.Data = []dashboard.Row{}
	}
	return resp, nil
}

func (c *Client) withPaging(params url.Values) (url.Values, error) {
	out := make(url.Values, len(params)+1)
	for key, values := range params {
		out[key] = append([]string(nil), values...)
	}
	if c.pageLimit <= 0 || out.Has(filters.ParamLimit) {
		return out, nil
	}
	paging, err := query.Values(pageParams{Limit: c.pageLimit})
	if err != nil {
		return nil, fmt.Errorf("api: encode paging: %w", err)
	}
	for key, values := range paging {
		out[key] = values
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, op, target string, dest any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s request: %w", strings.ToLower(op), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("dashboard request failed",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
			slog.String("request_id", req.Header.Get(requestIDHeader)))
		return &FetchError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("api: decode %s response: %w", strings.ToLower(op), err)
	}
	return nil
}
