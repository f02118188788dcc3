// Package blueflood is a client for the Blueflood time-series metrics
// platform. It authenticates against the identity service, discovers
// region-specific ingest and read endpoints from the service catalog, and
// exposes operations to ingest datapoints and query aggregated metric views.
package blueflood

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/rackerlabs/blueflood-go/auth"
	"github.com/rackerlabs/blueflood-go/core"
	"github.com/rackerlabs/blueflood-go/transport"
)

// Re-export core types so most callers only import this package
type (
	Config          = core.Config
	LoggingConfig   = core.LoggingConfig
	TelemetryConfig = core.TelemetryConfig
	Logger          = core.Logger
	Telemetry       = core.Telemetry
)

// Option configures a Client beyond its Config
type Option func(*Client)

// WithLogger injects a logger; defaults to a no-op logger
func WithLogger(logger core.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTelemetry injects a telemetry provider; defaults to no-op
func WithTelemetry(telemetry core.Telemetry) Option {
	return func(c *Client) {
		c.telemetry = telemetry
	}
}

// Client is the public Blueflood client. It is synchronous and issues
// blocking calls; callers sharing one Client across goroutines must
// serialize access (the token cache is not internally locked).
type Client struct {
	cfg       *core.Config
	logger    core.Logger
	telemetry core.Telemetry
	session   *auth.Session
	executor  *transport.Executor
}

// New creates a client from a validated Config. Construction performs no
// I/O; the first operation triggers the identity exchange.
func New(cfg *core.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, &core.ClientError{
			Op:      "blueflood.New",
			Kind:    "config",
			Message: "config is required",
			Err:     core.ErrMissingConfiguration,
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.session = auth.NewSession(cfg, nil, c.logger, c.telemetry)
	c.executor = transport.NewExecutor(c.session, cfg.Timeout, c.logger, c.telemetry)

	return c, nil
}

// Authenticate eagerly performs the identity exchange. Operations
// authenticate lazily on first use, so calling this is optional.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.session.Token(ctx)
	return err
}

// resolve ensures a token (and with it the service catalog) exists, then
// resolves the base URL for an endpoint kind. Every data-plane call needs
// the token anyway, so fetching it first also populates the catalog that
// a fresh client has not seen yet.
func (c *Client) resolve(ctx context.Context, kind auth.EndpointKind) (string, error) {
	if _, err := c.session.Token(ctx); err != nil {
		return "", err
	}
	return c.session.ResolveURL(kind, c.cfg.Region)
}

// FindMetrics returns the metric names matching a glob-style pattern.
// An empty query matches everything.
func (c *Client) FindMetrics(ctx context.Context, query string) ([]string, error) {
	if query == "" {
		query = "*"
	}

	base, err := c.resolve(ctx, auth.EndpointRead)
	if err != nil {
		return nil, err
	}

	raw, err := c.executor.Execute(ctx, transport.MethodGet, base+"/metrics/search", &transport.RequestOptions{
		Query: url.Values{"query": []string{query}},
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, &core.ClientError{Op: "blueflood.FindMetrics", Kind: "client", Err: err}
	}
	return names, nil
}

// Ingest sends datapoints to the ingest endpoint. The request body is
// always a JSON array, even for a single point.
func (c *Client) Ingest(ctx context.Context, points ...Datapoint) error {
	base, err := c.resolve(ctx, auth.EndpointIngest)
	if err != nil {
		return err
	}

	if points == nil {
		points = []Datapoint{}
	}
	_, err = c.executor.Execute(ctx, transport.MethodPost, base+"/ingest", &transport.RequestOptions{
		Body: points,
	})
	return err
}

// GetMetrics queries aggregated views for the named metrics between start
// and stop (milliseconds since epoch). The view payload is returned as
// received from the service.
func (c *Client) GetMetrics(ctx context.Context, start, stop int64, metrics []string, opts *ReadOptions) (json.RawMessage, error) {
	base, err := c.resolve(ctx, auth.EndpointRead)
	if err != nil {
		return nil, err
	}

	return c.executor.Execute(ctx, transport.MethodPost, base+"/views", &transport.RequestOptions{
		Body:  metrics,
		Query: readParams(start, stop, opts),
	})
}
