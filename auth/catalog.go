package auth

// Service names published in the identity service catalog that this
// client consumes. All other catalog entries are ignored.
const (
	ingestServiceName = "cloudMetricsIngest"
	readServiceName   = "cloudMetrics"
)

// EndpointKind selects which of the two consumed services to resolve
type EndpointKind string

const (
	EndpointIngest EndpointKind = "ingest"
	EndpointRead   EndpointKind = "read"
)

// Endpoint is one region-tagged URL within a catalog entry
type Endpoint struct {
	Region    string `json:"region"`
	PublicURL string `json:"publicURL"`
}

// CatalogEntry is a named service in the identity service catalog
type CatalogEntry struct {
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Endpoints []Endpoint `json:"endpoints"`
}

// urlForRegion scans the endpoint list for the first exact region match.
// Matching is case-sensitive.
func (e *CatalogEntry) urlForRegion(region string) (string, bool) {
	for _, ep := range e.Endpoints {
		if ep.Region == region {
			return ep.PublicURL, true
		}
	}
	return "", false
}

// serviceCatalog holds the two catalog entries this client consumes.
// It is rebuilt wholesale from every identity exchange; entries from a
// prior exchange are never merged in.
type serviceCatalog struct {
	ingest *CatalogEntry
	read   *CatalogEntry
}

// newServiceCatalog picks the ingest and read services out of a raw
// catalog entry list
func newServiceCatalog(entries []CatalogEntry) *serviceCatalog {
	catalog := &serviceCatalog{}
	for i := range entries {
		switch entries[i].Name {
		case ingestServiceName:
			catalog.ingest = &entries[i]
		case readServiceName:
			catalog.read = &entries[i]
		}
	}
	return catalog
}

// entry returns the catalog entry for a kind, or nil when the catalog
// lacked that service
func (c *serviceCatalog) entry(kind EndpointKind) *CatalogEntry {
	if c == nil {
		return nil
	}
	switch kind {
	case EndpointIngest:
		return c.ingest
	case EndpointRead:
		return c.read
	}
	return nil
}

// serviceName maps an endpoint kind to the catalog service name it
// resolves against, for error reporting
func serviceName(kind EndpointKind) string {
	if kind == EndpointIngest {
		return ingestServiceName
	}
	return readServiceName
}

// Identity exchange wire format

// credentialsKey is the credential scheme key in the auth request body
const credentialsKey = "RAX-KSKEY:apiKeyCredentials"

type apiKeyCredentials struct {
	Username string `json:"username"`
	APIKey   string `json:"apiKey"`
}

type identityRequest struct {
	Auth map[string]apiKeyCredentials `json:"auth"`
}

func newIdentityRequest(username, apiKey string) identityRequest {
	return identityRequest{
		Auth: map[string]apiKeyCredentials{
			credentialsKey: {Username: username, APIKey: apiKey},
		},
	}
}

type identityResponse struct {
	Access struct {
		Token struct {
			ID string `json:"id"`
		} `json:"token"`
		ServiceCatalog []CatalogEntry `json:"serviceCatalog"`
	} `json:"access"`
}
