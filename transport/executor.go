// Package transport issues authenticated HTTP calls against the resolved
// service endpoints, replaying a request exactly once after a 401 with a
// freshly fetched token.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rackerlabs/blueflood-go/core"
)

// Method is the closed set of HTTP verbs the executor dispatches.
// Anything outside this set is rejected before a request is built.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodDelete Method = http.MethodDelete
)

func (m Method) valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete:
		return true
	}
	return false
}

// TokenSource supplies and invalidates auth tokens. auth.Session
// implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// RequestOptions carries the optional parts of a request
type RequestOptions struct {
	// Body is serialized to JSON when non-nil
	Body interface{}

	// Headers are merged over the base headers; caller values win on
	// key collision
	Headers map[string]string

	// Query is attached to the URL as query parameters
	Query url.Values
}

// Executor issues HTTP calls with injected auth headers and decodes JSON
// bodies. A nil or invalid JSON body on a successful response is not an
// error; Execute returns nil in that case.
type Executor struct {
	tokens     TokenSource
	httpClient *http.Client
	logger     core.Logger
	telemetry  core.Telemetry
}

// NewExecutor creates a request executor. The HTTP transport is wrapped
// with otelhttp so spans propagate when a tracer provider is installed.
func NewExecutor(tokens TokenSource, timeout time.Duration, logger core.Logger, telemetry core.Telemetry) *Executor {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if telemetry == nil {
		telemetry = &core.NoOpTelemetry{}
	}

	return &Executor{
		tokens: tokens,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:    logger,
		telemetry: telemetry,
	}
}

// Execute sends one authenticated request.
//
// On a 401 response the cached token is invalidated, a fresh one is
// obtained, and the identical request is replayed exactly once. A second
// unauthorized response is a final failure; there is no loop.
func (e *Executor) Execute(ctx context.Context, method Method, rawURL string, opts *RequestOptions) (json.RawMessage, error) {
	if !method.valid() {
		return nil, &core.ClientError{
			Op:      "transport.Execute",
			Kind:    "transport",
			Message: fmt.Sprintf("unsupported HTTP method %q", method),
			Err:     core.ErrRequestFailed,
		}
	}

	ctx, span := e.telemetry.StartSpan(ctx, "blueflood.request")
	defer span.End()

	requestID := uuid.New().String()
	span.SetAttribute("http.method", string(method))
	span.SetAttribute("http.url", rawURL)
	span.SetAttribute("request.id", requestID)

	var body []byte
	if opts != nil && opts.Body != nil {
		var err error
		body, err = json.Marshal(opts.Body)
		if err != nil {
			span.RecordError(err)
			return nil, &core.ClientError{Op: "transport.Execute", Kind: "transport", Err: err}
		}
	}

	target := rawURL
	if opts != nil && len(opts.Query) > 0 {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			span.RecordError(err)
			return nil, &core.ClientError{Op: "transport.Execute", Kind: "transport", Err: err}
		}
		query := parsed.Query()
		for k, vs := range opts.Query {
			for _, v := range vs {
				query.Add(k, v)
			}
		}
		parsed.RawQuery = query.Encode()
		target = parsed.String()
	}

	// At most one reauthentication replay per call
	var resp *http.Response
	for attempt := 0; attempt <= 1; attempt++ {
		token, err := e.tokens.Token(ctx)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, string(method), target, bytes.NewReader(body))
		if err != nil {
			span.RecordError(err)
			return nil, &core.ClientError{Op: "transport.Execute", Kind: "transport", Err: err}
		}
		e.setHeaders(req, token, requestID, opts)

		e.logger.Debug("Sending request", map[string]interface{}{
			"operation":  "request",
			"request_id": requestID,
			"method":     string(method),
			"url":        target,
			"attempt":    attempt + 1,
		})

		resp, err = e.httpClient.Do(req)
		if err != nil {
			e.logger.Error("Request transport failure", map[string]interface{}{
				"operation":  "request",
				"request_id": requestID,
				"method":     string(method),
				"url":        target,
				"error":      err.Error(),
			})
			span.RecordError(err)
			return nil, &core.ClientError{Op: "transport.Execute", Kind: "transport", Err: core.ErrConnectionFailed, Message: err.Error()}
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()

			e.logger.Info("Token rejected, reauthenticating", map[string]interface{}{
				"operation":  "request_reauth",
				"request_id": requestID,
				"url":        target,
			})
			e.telemetry.RecordMetric("blueflood.request.reauths", 1, nil)
			span.SetAttribute("request.reauthenticated", true)

			e.tokens.Invalidate()
			continue
		}
		break
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, &core.ClientError{Op: "transport.Execute", Kind: "transport", Err: err}
	}

	span.SetAttribute("http.status_code", resp.StatusCode)
	e.telemetry.RecordMetric("blueflood.request.total", 1, map[string]string{
		"method": string(method),
		"status": fmt.Sprintf("%d", resp.StatusCode),
	})

	if resp.StatusCode >= 400 {
		httpErr := &core.HTTPError{StatusCode: resp.StatusCode, Body: respBody}
		e.logger.Error("Request failed", map[string]interface{}{
			"operation":   "request",
			"request_id":  requestID,
			"method":      string(method),
			"url":         target,
			"status_code": resp.StatusCode,
		})
		span.RecordError(httpErr)
		return nil, httpErr
	}

	// An empty or non-JSON body on a successful status is "no content",
	// not an error
	if len(respBody) == 0 || !json.Valid(respBody) {
		return nil, nil
	}

	return json.RawMessage(respBody), nil
}

// setHeaders applies base headers, the auth token and caller extras.
// Caller-supplied headers win on key collision.
func (e *Executor) setHeaders(req *http.Request, token, requestID string, opts *RequestOptions) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-Token", token)
	req.Header.Set("X-Request-Id", requestID)

	if opts != nil {
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}
	}
}
