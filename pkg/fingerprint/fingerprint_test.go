package fingerprint_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replysuite/session-gateway/pkg/fingerprint"
)

func TestFromHTTPRequest(t *testing.T) {
	makeRequest := func(userAgent, accept string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("User-Agent", userAgent)
		r.Header.Set("Accept", accept)
		return r
	}

	a, err := fingerprint.FromHTTPRequest(makeRequest("browser-a", "text/html"))
	require.NoError(t, err)
	b, err := fingerprint.FromHTTPRequest(makeRequest("browser-a", "text/html"))
	require.NoError(t, err)
	c, err := fingerprint.FromHTTPRequest(makeRequest("browser-b", "text/html"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestFromHTTPRequestNil(t *testing.T) {
	_, err := fingerprint.FromHTTPRequest(nil)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	var got string
	handler := fingerprint.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp, err := fingerprint.FromContext(r.Context())
		require.NoError(t, err)
		got = fp
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", "browser-a")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	want, err := fingerprint.FromHTTPRequest(r)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFromContextMissing(t *testing.T) {
	_, err := fingerprint.FromContext(t.Context())
	assert.Error(t, err)
}
