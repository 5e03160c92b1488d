package session

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/openkcm/common-sdk/pkg/commoncfg"

	slogctx "github.com/veqryn/slog-context"

	"github.com/replysuite/session-gateway/internal/config"
	"github.com/replysuite/session-gateway/internal/oidc"
	"github.com/replysuite/session-gateway/internal/pkce"
	"github.com/replysuite/session-gateway/internal/serviceerr"
	"github.com/replysuite/session-gateway/pkg/csrf"
)

// Manager drives the authorization code login flow and owns the
// lifecycle of server side sessions.
type Manager struct {
	providers    *oidc.Service
	sessions     Repository
	pkce         pkce.Source
	secureClient *http.Client

	sessionDuration    time.Duration
	loginStateDuration time.Duration
	redirectURI        *url.URL

	sessionCookieTemplate config.CookieTemplate
	csrfCookieTemplate    config.CookieTemplate

	csrfSecret []byte
}

func NewManager(
	cfg *config.SessionManager,
	providers *oidc.Service,
	sessions Repository,
	httpClient *http.Client,
) (*Manager, error) {
	csrfSecret, err := commoncfg.LoadValueFromSourceRef(cfg.CSRFSecret)
	if err != nil {
		return nil, fmt.Errorf("loading csrf secret from source ref: %w", err)
	}
	if len(csrfSecret) < 32 {
		return nil, errors.New("CSRF secret must be at least 32 bytes")
	}

	redirectURI, err := url.Parse(cfg.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect URI: %w", err)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Manager{
		providers:             providers,
		sessions:              sessions,
		secureClient:          httpClient,
		sessionDuration:       cfg.SessionDuration,
		loginStateDuration:    cfg.LoginStateDuration,
		redirectURI:           redirectURI,
		sessionCookieTemplate: cfg.SessionCookieTemplate,
		csrfCookieTemplate:    cfg.CSRFCookieTemplate,
		csrfSecret:            csrfSecret,
	}, nil
}

// MakeAuthURI stores an in-flight login state and returns the provider
// authorization URI the browser is redirected to. nextPath must already
// be sanitized by the caller.
func (m *Manager) MakeAuthURI(ctx context.Context, tenantID, fingerprint, nextPath, locale string) (string, error) {
	provider, err := m.providers.GetProvider(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("getting oidc provider: %w", err)
	}

	openidConf, err := m.providers.GetConfiguration(ctx, provider)
	if err != nil {
		return "", fmt.Errorf("getting openid configuration: %w", err)
	}

	stateID := m.pkce.State()
	pkcePair := m.pkce.PKCE()

	state := State{
		ID:           stateID,
		TenantID:     tenantID,
		Fingerprint:  fingerprint,
		PKCEVerifier: pkcePair.Verifier,
		NextPath:     nextPath,
		Locale:       locale,
		Expiry:       time.Now().Add(m.loginStateDuration),
	}

	if err := m.sessions.StoreState(ctx, state); err != nil {
		return "", fmt.Errorf("storing login state: %w", err)
	}

	u, err := m.authURI(openidConf, provider, state, pkcePair)
	if err != nil {
		return "", fmt.Errorf("generating auth uri: %w", err)
	}

	return u, nil
}

func (m *Manager) authURI(openidConf oidc.Configuration, provider oidc.Provider, state State, pkcePair pkce.PKCE) (string, error) {
	u, err := url.Parse(openidConf.AuthorizationEndpoint)
	if err != nil {
		return "", fmt.Errorf("parsing authorisation endpoint url: %w", err)
	}

	q := u.Query()
	q.Set("scope", "openid profile email")
	q.Set("response_type", "code")
	q.Set("client_id", provider.ClientID)
	q.Set("state", state.ID)
	q.Set("code_challenge", pkcePair.Challenge)
	q.Set("code_challenge_method", pkcePair.Method)
	q.Set("redirect_uri", m.redirectURI.String())

	u.RawQuery = q.Encode()

	return u.String(), nil
}

// FinaliseLogin redeems the authorization code the callback carried,
// verifies the ID token, and mints the server side session.
func (m *Manager) FinaliseLogin(ctx context.Context, stateID, code, fingerprint string) (LoginResult, error) {
	if code == "" {
		return LoginResult{}, serviceerr.ErrMissingCode
	}

	state, err := m.sessions.LoadState(ctx, stateID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("loading login state: %w", err)
	}

	ctx = slogctx.With(ctx, "tenant_id", state.TenantID)

	if time.Now().After(state.Expiry) {
		return LoginResult{}, serviceerr.ErrStateExpired
	}

	if state.Fingerprint != fingerprint {
		return LoginResult{}, serviceerr.ErrFingerprintMismatch
	}

	provider, err := m.providers.GetProvider(ctx, state.TenantID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("getting oidc provider: %w", err)
	}

	openidConf, err := m.providers.GetConfiguration(ctx, provider)
	if err != nil {
		return LoginResult{}, fmt.Errorf("getting openid configuration: %w", err)
	}

	tokens, err := m.exchangeCode(ctx, openidConf, provider, code, state.PKCEVerifier)
	if err != nil {
		return LoginResult{}, errors.Join(serviceerr.ErrExchangeFailed, err)
	}

	slogctx.Info(ctx, "Exchanged the auth code for tokens")

	claims, providerSessionID, err := m.verifyIDToken(ctx, openidConf, tokens)
	if err != nil {
		return LoginResult{}, err
	}

	sessionID := m.pkce.SessionID()
	csrfToken := csrf.NewToken(sessionID, m.csrfSecret)

	locale := state.Locale
	if locale == "" {
		locale = claims.Locale
	}

	now := time.Now()
	session := Session{
		ID:                sessionID,
		TenantID:          state.TenantID,
		ProviderID:        providerSessionID,
		Fingerprint:       fingerprint,
		CSRFToken:         csrfToken,
		Issuer:            provider.IssuerURL,
		Locale:            locale,
		Claims:            claims,
		AccessToken:       tokens.AccessToken,
		RefreshToken:      tokens.RefreshToken,
		AccessTokenExpiry: now.Add(time.Duration(tokens.ExpiresIn) * time.Second),
		Expiry:            now.Add(m.sessionDuration),
		LastVisited:       now,
	}

	if err := m.sessions.StoreSession(ctx, session); err != nil {
		return LoginResult{}, fmt.Errorf("storing session: %w", err)
	}

	if err := m.sessions.DeleteState(ctx, stateID); err != nil {
		return LoginResult{}, fmt.Errorf("deleting login state: %w", err)
	}

	slogctx.Info(ctx, "User logged in", "subject", claims.Subject)

	return LoginResult{
		SessionID: sessionID,
		CSRFToken: csrfToken,
		NextPath:  state.NextPath,
		Locale:    locale,
	}, nil
}

// VerifySession loads the session behind sessionID and checks it is
// still usable. When the session's provider advertises a token
// introspection endpoint the access token must still be active there.
// It never mutates the session.
func (m *Manager) VerifySession(ctx context.Context, sessionID, fingerprint string) (Session, error) {
	if sessionID == "" {
		return Session{}, serviceerr.ErrUnauthenticated
	}

	session, err := m.sessions.LoadSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return Session{}, serviceerr.ErrInvalidSession
		}

		return Session{}, fmt.Errorf("loading session: %w", err)
	}

	if time.Now().After(session.Expiry) {
		return Session{}, serviceerr.ErrInvalidSession
	}

	if fingerprint != "" && session.Fingerprint != fingerprint {
		return Session{}, serviceerr.ErrFingerprintMismatch
	}

	if err := m.checkRevocation(ctx, session); err != nil {
		return Session{}, err
	}

	return session, nil
}

// checkRevocation asks the session's provider whether the access token
// is still active. Providers without an introspection endpoint skip the
// check; any other failure invalidates the session.
func (m *Manager) checkRevocation(ctx context.Context, session Session) error {
	provider, err := m.providers.GetProvider(ctx, session.TenantID)
	if err != nil {
		return fmt.Errorf("getting oidc provider: %w", err)
	}

	openidConf, err := m.providers.GetConfiguration(ctx, provider)
	if err != nil {
		return fmt.Errorf("getting openid configuration: %w", err)
	}

	if openidConf.IntrospectionEndpoint == "" {
		return nil
	}

	data := url.Values{}
	data.Set("token", session.AccessToken)
	data.Set("token_type_hint", "access_token")
	data.Set("client_id", provider.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openidConf.IntrospectionEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("creating introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.secureClient.Do(req)
	if err != nil {
		return errors.Join(serviceerr.ErrInvalidSession, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Join(serviceerr.ErrInvalidSession, fmt.Errorf("introspection returned status %d", resp.StatusCode))
	}

	var introspection struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&introspection); err != nil {
		return errors.Join(serviceerr.ErrInvalidSession, err)
	}

	if !introspection.Active {
		slogctx.Info(ctx, "Rejected a revoked session", "tenant_id", session.TenantID)
		return serviceerr.ErrInvalidSession
	}

	return nil
}

// TouchSession bumps the session's last visited timestamp. The
// housekeeper uses it to tell active from idle sessions.
func (m *Manager) TouchSession(ctx context.Context, sessionID string) error {
	session, err := m.sessions.LoadSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	session.LastVisited = time.Now()
	if err := m.sessions.StoreSession(ctx, session); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	return nil
}

// Logout deletes the session. A missing session is not an error, logout
// is idempotent.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	session, err := m.sessions.LoadSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("loading session: %w", err)
	}

	if err := m.sessions.DeleteSession(ctx, session); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	slogctx.Info(ctx, "User logged out", "tenant_id", session.TenantID)

	return nil
}

// logoutTokenEvent is the member the events claim of a logout token
// must carry (OpenID Connect Back-Channel Logout 1.0).
const logoutTokenEvent = "http://schemas.openid.net/event/backchannel-logout"

var logoutTokenAlgs = []jose.SignatureAlgorithm{jose.RS256, jose.ES256, jose.PS256}

// BackchannelLogout ends the session named by a provider issued logout
// token. The token's sid claim is resolved to the gateway session and
// the signature is verified against the provider's JWKS before the
// session is deleted. A session that is already gone is not an error.
func (m *Manager) BackchannelLogout(ctx context.Context, logoutToken string) error {
	token, err := jwt.ParseSigned(logoutToken, logoutTokenAlgs)
	if err != nil {
		return fmt.Errorf("parsing logout token: %w", err)
	}

	var claims struct {
		Events     map[string]json.RawMessage `json:"events"`
		ProviderID string                     `json:"sid"`
	}
	if err := token.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return fmt.Errorf("reading logout token claims: %w", err)
	}

	if _, ok := claims.Events[logoutTokenEvent]; !ok {
		return &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "logout token carries no back-channel logout event"}
	}

	if claims.ProviderID == "" {
		return &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "logout token carries no sid claim"}
	}

	sessionID, err := m.sessions.SessionIDByProviderID(ctx, claims.ProviderID)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("resolving provider session: %w", err)
	}

	session, err := m.sessions.LoadSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("loading session: %w", err)
	}

	provider, err := m.providers.GetProvider(ctx, session.TenantID)
	if err != nil {
		return fmt.Errorf("getting oidc provider: %w", err)
	}

	openidConf, err := m.providers.GetConfiguration(ctx, provider)
	if err != nil {
		return fmt.Errorf("getting openid configuration: %w", err)
	}

	keyset, err := m.getProviderKeySet(ctx, openidConf)
	if err != nil {
		return fmt.Errorf("getting jwks for a provider: %w", err)
	}

	var verified jwt.Claims
	if err := token.Claims(keyset, &verified); err != nil {
		return fmt.Errorf("verifying logout token: %w", err)
	}

	if verified.Issuer != "" && verified.Issuer != provider.IssuerURL {
		return &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "logout token issuer does not match the provider"}
	}

	if err := m.sessions.DeleteSession(ctx, session); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	slogctx.Info(ctx, "Session ended by back-channel logout", "tenant_id", session.TenantID)

	return nil
}

func (m *Manager) MakeSessionCookie(ctx context.Context, value string) (*http.Cookie, error) {
	sessionCookie := m.sessionCookieTemplate.ToCookie(value)

	err := sessionCookie.Valid()
	if err != nil {
		return nil, fmt.Errorf("invalid session cookie: %w", err)
	}

	if !sessionCookie.Secure {
		slogctx.Warn(ctx, "Session cookie is not marked as Secure; this is not recommended in production environments")
	}
	if !sessionCookie.HttpOnly {
		slogctx.Warn(ctx, "Session cookie is not marked as HttpOnly; this is not recommended in production environments")
	}

	return sessionCookie, nil
}

func (m *Manager) MakeCSRFCookie(ctx context.Context, value string) (*http.Cookie, error) {
	csrfCookie := m.csrfCookieTemplate.ToCookie(value)

	err := csrfCookie.Valid()
	if err != nil {
		return nil, fmt.Errorf("invalid CSRF cookie: %w", err)
	}

	if !csrfCookie.Secure {
		slogctx.Warn(ctx, "CSRF cookie is not marked as Secure; this is not recommended in production environments")
	}
	if csrfCookie.HttpOnly {
		slogctx.Warn(ctx, "CSRF cookie is marked as HttpOnly; this is not recommended as the CSRF token needs to be accessible from JavaScript")
	}

	return csrfCookie, nil
}

func (m *Manager) ValidateCSRFToken(token, sessionID string) bool {
	return csrf.Validate(token, sessionID, m.csrfSecret)
}

func (m *Manager) verifyIDToken(ctx context.Context, openidConf oidc.Configuration, tokens tokenResponse) (Claims, string, error) {
	algs := make([]jose.SignatureAlgorithm, 0, len(openidConf.IDTokenSigningAlgValuesSupported))
	for _, alg := range openidConf.IDTokenSigningAlgValuesSupported {
		algs = append(algs, jose.SignatureAlgorithm(alg))
	}

	token, err := jwt.ParseSigned(tokens.IDToken, algs)
	if err != nil {
		return Claims{}, "", fmt.Errorf("parsing id token: %w", err)
	}

	keyset, err := m.getProviderKeySet(ctx, openidConf)
	if err != nil {
		return Claims{}, "", fmt.Errorf("getting jwks for a provider: %w", err)
	}

	type CustomClaims struct {
		SID        string   `json:"sid"`
		GivenName  string   `json:"given_name"`
		FamilyName string   `json:"family_name"`
		Email      string   `json:"email"`
		Locale     string   `json:"locale"`
		Groups     []string `json:"groups"`
	}

	type ExtraClaims struct {
		AtHash string `json:"at_hash,omitempty"`
	}

	var standardClaims jwt.Claims
	var customClaims CustomClaims
	var extraClaims ExtraClaims
	if err := token.Claims(keyset, &standardClaims, &customClaims, &extraClaims); err != nil {
		return Claims{}, "", fmt.Errorf("getting JWT claims: %w", err)
	}

	if extraClaims.AtHash != "" {
		if err := m.verifyAccessToken(tokens.AccessToken, extraClaims.AtHash, token); err != nil {
			return Claims{}, "", err
		}
	}

	claims := Claims{
		Subject:    standardClaims.Subject,
		GivenName:  customClaims.GivenName,
		FamilyName: customClaims.FamilyName,
		Email:      customClaims.Email,
		Locale:     customClaims.Locale,
		Groups:     customClaims.Groups,
	}

	return claims, customClaims.SID, nil
}

func (m *Manager) getProviderKeySet(ctx context.Context, oidcConf oidc.Configuration) (*jose.JSONWebKeySet, error) {
	var keySet jose.JSONWebKeySet

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, oidcConf.JwksURI, nil)
	if err != nil {
		return nil, fmt.Errorf("creating a new HTTP request: %w", err)
	}

	resp, err := m.secureClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing an http request: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return nil, fmt.Errorf("decoding keyset response: %w", err)
	}

	return &keySet, nil
}

func (m *Manager) verifyAccessToken(accessToken, atHash string, idToken *jwt.JSONWebToken) error {
	var h hash.Hash
	switch alg := idToken.Headers[0].Algorithm; alg {
	case "RS256", "ES256", "PS256":
		h = sha256.New()
	case "RS384", "ES384", "PS384":
		h = sha512.New384()
	case "RS512", "ES512", "PS512", "EdDSA":
		h = sha512.New()
	default:
		return fmt.Errorf("oidc: unsupported signing algorithm %q", alg)
	}

	h.Write([]byte(accessToken))
	sum := h.Sum(nil)[:h.Size()/2]
	actual := base64.RawURLEncoding.EncodeToString(sum)
	if actual != atHash {
		return serviceerr.ErrInvalidAtHash
	}

	return nil
}

func (m *Manager) exchangeCode(ctx context.Context, openidConf oidc.Configuration, provider oidc.Provider, code, codeVerifier string) (tokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("code_verifier", codeVerifier)
	data.Set("redirect_uri", m.redirectURI.String())
	data.Set("client_id", provider.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openidConf.TokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.secureClient.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tokenResponse{}, fmt.Errorf("token exchange failed with status: %d", resp.StatusCode)
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return tokenResponse{}, fmt.Errorf("decoding response: %w", err)
	}

	return tokens, nil
}
