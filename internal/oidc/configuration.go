package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Configuration. Usually accessible from the well-known openid-configuration URL.
// It's a subset of https://openid.net/specs/openid-connect-discovery-1_0.html#ProviderMetadata
type Configuration struct {
	Issuer                            string   `json:"issuer,omitempty"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint,omitempty"`
	TokenEndpoint                     string   `json:"token_endpoint,omitempty"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint,omitempty"`
	JwksURI                           string   `json:"jwks_uri,omitempty"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint,omitempty"`
	EndSessionEndpoint                string   `json:"end_session_endpoint,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	SubjectTypesSupported             []string `json:"subject_types_supported,omitempty"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	ClaimsSupported                   []string `json:"claims_supported,omitempty"`
}

// Discoverer fetches and caches well-known openid-configuration
// documents per issuer. Discovery documents change rarely, so a short
// positive cache keeps login latency down without risking staleness.
type Discoverer struct {
	client *http.Client
	cache  *gocache.Cache
}

func NewDiscoverer(client *http.Client, ttl time.Duration) *Discoverer {
	if client == nil {
		client = http.DefaultClient
	}

	return &Discoverer{
		client: client,
		cache:  gocache.New(ttl, 2*ttl),
	}
}

// Discover returns the configuration for issuerURL, fetching it on a
// cache miss.
func (d *Discoverer) Discover(ctx context.Context, issuerURL string) (Configuration, error) {
	if cached, ok := d.cache.Get(issuerURL); ok {
		return cached.(Configuration), nil
	}

	wellKnown := strings.TrimSuffix(issuerURL, "/") + "/.well-known/openid-configuration"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return Configuration{}, fmt.Errorf("creating discovery request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Configuration{}, fmt.Errorf("executing discovery request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Configuration{}, fmt.Errorf("discovery request failed with status: %d", resp.StatusCode)
	}

	var conf Configuration
	if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
		return Configuration{}, fmt.Errorf("decoding discovery response: %w", err)
	}

	if conf.AuthorizationEndpoint == "" || conf.TokenEndpoint == "" {
		return Configuration{}, errors.New("discovery document misses authorization or token endpoint")
	}

	d.cache.SetDefault(issuerURL, conf)

	return conf, nil
}
