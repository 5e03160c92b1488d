package session_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/require"

	"github.com/replysuite/session-gateway/internal/config"
	"github.com/replysuite/session-gateway/internal/oidc"
	oidcmock "github.com/replysuite/session-gateway/internal/oidc/mock"
)

const (
	testCSRFSecret = "12345678901234567890123456789012"
	testClientID   = "tenant-client-id"
)

// signTokenFunc mints a JWT signed with the provider's key, so tests
// can produce tokens the manager accepts or hand the signer of one
// provider a token meant for another.
type signTokenFunc func(t *testing.T, claims map[string]any) string

// StartProviderServer runs a fake OIDC provider serving discovery, JWKS
// and the token endpoint. ID tokens are signed at request time, so the
// manager's signature verification runs for real.
func StartProviderServer(t *testing.T, failExchange bool) (*httptest.Server, signTokenFunc) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	signingKey := jose.JSONWebKey{
		Key:       key,
		KeyID:     "kid1",
		Algorithm: string(jose.RS256),
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: signingKey}, nil)
	require.NoError(t, err)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(oidc.Configuration{
			Issuer:                           srv.URL,
			AuthorizationEndpoint:            srv.URL + "/oauth2/authorize",
			TokenEndpoint:                    srv.URL + "/oauth2/token",
			JwksURI:                          srv.URL + "/.well-known/jwks.json",
			IDTokenSigningAlgValuesSupported: []string{"RS256"},
		})
	})

	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		publicJwks := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     "kid1",
			Algorithm: string(jose.RS256),
		}}}
		_ = json.NewEncoder(w).Encode(publicJwks)
	})

	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if failExchange {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "invalid_grant", "error_description": "Token exchange failed"}`))
			return
		}

		idToken, err := jwt.Signed(signer).Claims(map[string]any{
			"iss":         srv.URL,
			"sub":         "user-1",
			"aud":         testClientID,
			"exp":         time.Now().Add(time.Hour).Unix(),
			"iat":         time.Now().Unix(),
			"sid":         "provider-session-1",
			"given_name":  "Ana",
			"family_name": "Souza",
			"email":       "ana@example.com",
			"locale":      "pt-BR",
			"groups":      []string{"owners"},
		}).Serialize()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-token",
			"refresh_token": "refresh-token",
			"id_token":      idToken,
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})

	signToken := func(t *testing.T, claims map[string]any) string {
		t.Helper()

		raw, err := jwt.Signed(signer).Claims(claims).Serialize()
		require.NoError(t, err)

		return raw
	}

	return srv, signToken
}

// introspectingProvider is a fake OIDC provider whose discovery document
// advertises a token introspection endpoint. Calls counts introspection
// requests; flip Active or Fail to change the answer.
type introspectingProvider struct {
	URL    string
	Active atomic.Bool
	Fail   atomic.Bool
	Calls  atomic.Int64
}

func StartIntrospectingProvider(t *testing.T) *introspectingProvider {
	t.Helper()

	p := &introspectingProvider{}
	p.Active.Store(true)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(oidc.Configuration{
			Issuer:                           srv.URL,
			AuthorizationEndpoint:            srv.URL + "/oauth2/authorize",
			TokenEndpoint:                    srv.URL + "/oauth2/token",
			IntrospectionEndpoint:            srv.URL + "/oauth2/introspect",
			JwksURI:                          srv.URL + "/.well-known/jwks.json",
			IDTokenSigningAlgValuesSupported: []string{"RS256"},
		})
	})

	mux.HandleFunc("/oauth2/introspect", func(w http.ResponseWriter, r *http.Request) {
		p.Calls.Add(1)

		if p.Fail.Load() {
			http.Error(w, "introspection unavailable", http.StatusInternalServerError)
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"active": p.Active.Load()})
	})

	p.URL = srv.URL

	return p
}

func testManagerConfig(redirectURI string) *config.SessionManager {
	return &config.SessionManager{
		SessionDuration:    time.Hour,
		IdleTimeout:        45 * time.Minute,
		LoginStateDuration: 10 * time.Minute,
		RedirectURI:        redirectURI,
		CSRFSecret:         commoncfg.SourceRef{Source: "embedded", Value: testCSRFSecret},
		SessionCookieTemplate: config.CookieTemplate{
			Name:     "session",
			Path:     "/",
			Secure:   true,
			SameSite: config.CookieSameSiteLax,
			HTTPOnly: true,
		},
		CSRFCookieTemplate: config.CookieTemplate{
			Name:     "csrf",
			Path:     "/",
			Secure:   true,
			SameSite: config.CookieSameSiteStrict,
		},
	}
}

func oidcProvider(issuerURL string, blocked bool) oidc.Provider {
	return oidc.Provider{
		IssuerURL: issuerURL,
		ClientID:  testClientID,
		Blocked:   blocked,
	}
}

func testProviderService(t *testing.T, issuerURL string, opts ...oidcmock.Option) (*oidc.Service, *oidcmock.Repository) {
	t.Helper()

	repo := oidcmock.NewRepository(opts...)
	if issuerURL != "" {
		require.NoError(t, repo.Create(t.Context(), "tenant-1", oidc.Provider{
			IssuerURL: issuerURL,
			ClientID:  testClientID,
		}))
	}

	return oidc.NewService(repo, oidc.NewDiscoverer(http.DefaultClient, time.Minute)), repo
}
