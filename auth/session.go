// Package auth owns credentials, the process-lifetime token cache and the
// parsed service catalog from the identity exchange, and resolves the
// region-specific ingest and read endpoints.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rackerlabs/blueflood-go/core"
)

// Credentials identify the account to the identity service.
// They are immutable after session construction.
type Credentials struct {
	Username string
	APIKey   string
}

// Session is the session manager: it holds the current auth token and the
// catalog parsed from the last identity exchange.
//
// A Session is not safe for concurrent use; callers sharing one across
// goroutines must serialize access.
type Session struct {
	authURL string
	creds   Credentials

	// Explicit endpoint overrides. When set for a kind, the catalog is
	// never consulted for it.
	ingestOverride string
	readOverride   string

	httpClient *http.Client
	logger     core.Logger
	telemetry  core.Telemetry

	token   string
	catalog *serviceCatalog
}

// NewSession creates a session manager from client configuration.
// No I/O happens here; the first Token call performs the identity exchange.
func NewSession(cfg *core.Config, httpClient *http.Client, logger core.Logger, telemetry core.Telemetry) *Session {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if telemetry == nil {
		telemetry = &core.NoOpTelemetry{}
	}

	return &Session{
		authURL:        cfg.AuthURL,
		creds:          Credentials{Username: cfg.Username, APIKey: cfg.APIKey},
		ingestOverride: cfg.IngestURL,
		readOverride:   cfg.ReadURL,
		httpClient:     httpClient,
		logger:         logger,
		telemetry:      telemetry,
	}
}

// Token returns the cached token if present, performing a full identity
// exchange otherwise. The exchange stores both the token and the service
// catalog bundled in the response.
func (s *Session) Token(ctx context.Context) (string, error) {
	if s.token != "" {
		return s.token, nil
	}
	if err := s.authenticate(ctx); err != nil {
		return "", err
	}
	return s.token, nil
}

// Invalidate clears the cached token unconditionally. It is idempotent and
// leaves the cached catalog untouched.
func (s *Session) Invalidate() {
	s.logger.Debug("Invalidating auth token", map[string]interface{}{
		"operation": "token_invalidate",
	})
	s.token = ""
}

// ResolveURL returns the base URL for an endpoint kind. An explicit
// override always wins and skips the catalog; otherwise the catalog entry
// is scanned for the first endpoint whose region matches exactly.
// Returns an EndpointNotFoundError when neither yields a URL.
func (s *Session) ResolveURL(kind EndpointKind, region string) (string, error) {
	if override := s.override(kind); override != "" {
		return override, nil
	}

	entry := s.catalog.entry(kind)
	if entry == nil {
		s.logger.Warn("Service missing from catalog", map[string]interface{}{
			"operation": "endpoint_resolve",
			"service":   serviceName(kind),
			"region":    region,
		})
		return "", &core.EndpointNotFoundError{Region: region}
	}

	url, ok := entry.urlForRegion(region)
	if !ok {
		s.logger.Warn("No endpoint for region", map[string]interface{}{
			"operation": "endpoint_resolve",
			"service":   entry.Name,
			"region":    region,
		})
		return "", &core.EndpointNotFoundError{Service: entry.Name, Region: region}
	}
	return url, nil
}

func (s *Session) override(kind EndpointKind) string {
	if kind == EndpointIngest {
		return s.ingestOverride
	}
	return s.readOverride
}

// authenticate performs the identity exchange: it trades credentials for a
// token and a service catalog, replacing both on the session.
func (s *Session) authenticate(ctx context.Context) error {
	const op = "auth.authenticate"

	ctx, span := s.telemetry.StartSpan(ctx, "blueflood.auth.identity_exchange")
	defer span.End()

	exchangeID := uuid.New().String()
	span.SetAttribute("auth.exchange_id", exchangeID)

	s.logger.Debug("Starting identity exchange", map[string]interface{}{
		"operation":   "identity_exchange",
		"exchange_id": exchangeID,
		"username":    s.creds.Username,
	})

	body, err := json.Marshal(newIdentityRequest(s.creds.Username, s.creds.APIKey))
	if err != nil {
		span.RecordError(err)
		return &core.AuthError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokensURL(s.authURL), bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return &core.AuthError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("Identity exchange failed", map[string]interface{}{
			"operation":   "identity_exchange",
			"exchange_id": exchangeID,
			"error":       err.Error(),
		})
		span.RecordError(err)
		return &core.AuthError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		s.logger.Error("Identity endpoint returned error status", map[string]interface{}{
			"operation":   "identity_exchange",
			"exchange_id": exchangeID,
			"status_code": resp.StatusCode,
		})
		authErr := &core.AuthError{Op: op, StatusCode: resp.StatusCode}
		span.RecordError(authErr)
		span.SetAttribute("http.status_code", resp.StatusCode)
		return authErr
	}

	var identity identityResponse
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		span.RecordError(err)
		return &core.AuthError{Op: op, Err: err}
	}

	if identity.Access.Token.ID == "" {
		authErr := &core.AuthError{
			Op:  op,
			Err: &core.ClientError{Kind: "auth", Message: "identity response missing token id"},
		}
		span.RecordError(authErr)
		return authErr
	}
	if identity.Access.ServiceCatalog == nil {
		authErr := &core.AuthError{
			Op:  op,
			Err: &core.ClientError{Kind: "auth", Message: "identity response missing service catalog"},
		}
		span.RecordError(authErr)
		return authErr
	}

	// Token and catalog arrive bundled; the prior catalog is discarded
	s.token = identity.Access.Token.ID
	s.catalog = newServiceCatalog(identity.Access.ServiceCatalog)

	s.logger.Info("Identity exchange succeeded", map[string]interface{}{
		"operation":   "identity_exchange",
		"exchange_id": exchangeID,
		"services":    len(identity.Access.ServiceCatalog),
	})
	s.telemetry.RecordMetric("blueflood.auth.exchanges", 1, map[string]string{"status": "success"})

	return nil
}

// tokensURL joins the configured auth URL with the tokens path, tolerating
// a trailing slash on the configured value
func tokensURL(authURL string) string {
	return strings.TrimSuffix(authURL, "/") + "/tokens"
}
