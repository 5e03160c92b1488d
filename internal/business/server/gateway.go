// Package server hosts the two network surfaces of the gateway: the
// public HTTP server browsers talk to and the internal gRPC server other
// backends call for session verification.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"

	slogctx "github.com/veqryn/slog-context"

	"github.com/replysuite/session-gateway/internal/config"
	"github.com/replysuite/session-gateway/internal/connect"
	"github.com/replysuite/session-gateway/internal/locale"
	"github.com/replysuite/session-gateway/internal/redirect"
	"github.com/replysuite/session-gateway/internal/serviceerr"
	"github.com/replysuite/session-gateway/internal/session"
	"github.com/replysuite/session-gateway/pkg/fingerprint"
)

const (
	csrfHeader = "X-CSRF-Token"

	// signInPath is where logged-out users land, served by the web
	// frontend under the locale prefix.
	signInPath = "/auth/sign-in"

	// connectedLandingPath is where the browser goes after a Google
	// account was linked.
	connectedLandingPath = "/settings/connections"

	// localeCookieMaxAge keeps the locale preference for a year.
	localeCookieMaxAge = 365 * 24 * 60 * 60
)

// Gateway holds the browser-facing handlers. All redirects it emits go
// through the redirect.Builder, so a handler can never send the browser
// off-origin based on request input.
type Gateway struct {
	cfg       *config.Config
	manager   *session.Manager
	connects  *connect.Service
	locales   *locale.Set
	redirects *redirect.Builder
}

func NewGateway(cfg *config.Config, manager *session.Manager, connects *connect.Service) (*Gateway, error) {
	locales, err := locale.NewSet(cfg.Gateway.Locales())
	if err != nil {
		return nil, fmt.Errorf("parsing supported locales: %w", err)
	}

	return &Gateway{
		cfg:       cfg,
		manager:   manager,
		connects:  connects,
		locales:   locales,
		redirects: redirect.NewBuilder(cfg.Gateway.Origin, locales, cfg.Gateway.DefaultLanding),
	}, nil
}

// handleLogin starts the authorization code flow for a tenant.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID := r.URL.Query().Get("tenant")
	if tenantID == "" {
		g.redirectError(w, r, &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "missing tenant"})
		return
	}

	nextPath := r.URL.Query().Get("next")
	if !redirect.IsValidPath(nextPath) {
		nextPath = ""
	}

	fp, _ := fingerprint.FromContext(ctx)
	loc := g.locales.Resolve(r)

	authURI, err := g.manager.MakeAuthURI(ctx, tenantID, fp, nextPath, loc)
	if err != nil {
		slogctx.Error(ctx, "Failed to start a login flow", "tenant_id", tenantID, "error", err)
		g.redirectError(w, r, err)

		return
	}

	http.Redirect(w, r, authURI, http.StatusFound)
}

// handleCallback finishes the authorization code flow. Any failure sends
// the browser to the error page; the stored next path is only honoured
// on success.
func (g *Gateway) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := r.URL.Query()
	stateID := q.Get("state")
	if stateID == "" {
		g.redirectError(w, r, serviceerr.ErrMalformedState)
		return
	}

	fp, _ := fingerprint.FromContext(ctx)

	result, err := g.manager.FinaliseLogin(ctx, stateID, q.Get("code"), fp)
	if err != nil {
		slogctx.Warn(ctx, "Login failed", "error", err)
		g.redirectError(w, r, err)

		return
	}

	sessionCookie, err := g.manager.MakeSessionCookie(ctx, result.SessionID)
	if err != nil {
		slogctx.Error(ctx, "Failed to make a session cookie", "error", err)
		g.redirectError(w, r, serviceerr.ErrUnknown)

		return
	}

	csrfCookie, err := g.manager.MakeCSRFCookie(ctx, result.CSRFToken)
	if err != nil {
		slogctx.Error(ctx, "Failed to make a CSRF cookie", "error", err)
		g.redirectError(w, r, serviceerr.ErrUnknown)

		return
	}

	loc := result.Locale
	if !g.locales.Contains(loc) {
		loc = g.locales.Resolve(r)
	}

	http.SetCookie(w, sessionCookie)
	http.SetCookie(w, csrfCookie)
	http.SetCookie(w, &http.Cookie{
		Name:     locale.CookieName,
		Value:    loc,
		Path:     "/",
		MaxAge:   localeCookieMaxAge,
		Secure:   sessionCookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, g.redirects.Build(loc, result.NextPath), http.StatusFound)
}

// handleAuthCodeError renders the minimal error page failed logins are
// redirected to.
func (g *Gateway) handleAuthCodeError(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if message == "" {
		message = string(serviceerr.CodeServerError)
	}

	loc := g.locales.Resolve(r)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Sign-in failed</title></head>
<body>
<h1>Sign-in failed</h1>
<p>%s</p>
<p><a href="%s">Try again</a></p>
</body>
</html>
`, html.EscapeString(message), g.redirects.Build(loc, signInPath))
}

// handleLogout deletes the session and clears the auth cookies. The
// request must carry the CSRF token matching the session cookie.
func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loc := g.locales.Resolve(r)

	cookie, err := r.Cookie(g.cfg.SessionManager.SessionCookieTemplate.Name)
	if err != nil {
		// nothing to log out of
		g.clearAuthCookies(w)
		http.Redirect(w, r, g.redirects.Build(loc, signInPath), http.StatusFound)

		return
	}

	if !g.manager.ValidateCSRFToken(r.Header.Get(csrfHeader), cookie.Value) {
		slogctx.Warn(ctx, "Rejected a logout with a bad CSRF token")
		g.writeError(w, serviceerr.ErrInvalidCSRFToken)

		return
	}

	if err := g.manager.Logout(ctx, cookie.Value); err != nil {
		slogctx.Error(ctx, "Logout failed", "error", err)
		g.writeError(w, serviceerr.ErrUnknown)

		return
	}

	g.clearAuthCookies(w)
	http.Redirect(w, r, g.redirects.Build(loc, signInPath), http.StatusFound)
}

// handleBackchannelLogout lets the provider end a session directly, per
// OpenID Connect Back-Channel Logout 1.0. No browser is involved; the
// response goes back to the provider.
func (g *Gateway) handleBackchannelLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logoutToken := r.PostFormValue("logout_token")
	if logoutToken == "" {
		g.writeError(w, &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "missing logout_token"})
		return
	}

	if err := g.manager.BackchannelLogout(ctx, logoutToken); err != nil {
		slogctx.Warn(ctx, "Rejected a back-channel logout", "error", err)
		g.writeError(w, &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "logout token rejected"})

		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleConnect sends a signed-in user to the Google consent screen to
// link their Business Profile account.
func (g *Gateway) handleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, err := g.currentSession(r)
	if err != nil {
		slogctx.Warn(ctx, "Rejected a connect request", "error", err)
		g.redirectError(w, r, err)

		return
	}

	consentURL, err := g.connects.BeginConnect(ctx, sess.Claims.Subject)
	if err != nil {
		slogctx.Error(ctx, "Failed to start a connect flow", "tenant_id", sess.TenantID, "error", err)
		g.redirectError(w, r, err)

		return
	}

	http.Redirect(w, r, consentURL, http.StatusFound)
}

// handleConnectCallback stores the Google tokens for the user named by
// the state token, provided that user owns the current session.
func (g *Gateway) handleConnectCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, err := g.currentSession(r)
	if err != nil {
		slogctx.Warn(ctx, "Rejected a connect callback", "error", err)
		g.redirectError(w, r, err)

		return
	}

	q := r.URL.Query()

	err = g.connects.FinishConnect(ctx, sess.TenantID, sess.Claims.Subject, q.Get("state"), q.Get("code"))
	if err != nil {
		slogctx.Warn(ctx, "Connect callback failed", "tenant_id", sess.TenantID, "error", err)
		g.redirectError(w, r, err)

		return
	}

	loc := sess.Locale
	if !g.locales.Contains(loc) {
		loc = g.locales.Resolve(r)
	}

	http.Redirect(w, r, g.redirects.Build(loc, connectedLandingPath), http.StatusFound)
}

// currentSession verifies the session cookie against the request
// fingerprint.
func (g *Gateway) currentSession(r *http.Request) (session.Session, error) {
	cookie, err := r.Cookie(g.cfg.SessionManager.SessionCookieTemplate.Name)
	if err != nil {
		return session.Session{}, serviceerr.ErrUnauthenticated
	}

	fp, _ := fingerprint.FromContext(r.Context())

	return g.manager.VerifySession(r.Context(), cookie.Value, fp)
}

// redirectError sends the browser to the error page. Only the stable
// error code crosses to the browser, never the description.
func (g *Gateway) redirectError(w http.ResponseWriter, r *http.Request, err error) {
	code := serviceerr.CodeServerError

	var svcErr *serviceerr.Error
	if errors.As(err, &svcErr) {
		code = svcErr.Err
	}

	q := url.Values{"message": []string{string(code)}}
	http.Redirect(w, r, g.cfg.Gateway.ErrorPath+"?"+q.Encode(), http.StatusFound)
}

// writeError answers non-navigation requests with a JSON error body.
func (g *Gateway) writeError(w http.ResponseWriter, svcErr *serviceerr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(svcErr.HTTPStatus())

	_ = json.NewEncoder(w).Encode(map[string]string{"error": string(svcErr.Err)})
}

func (g *Gateway) clearAuthCookies(w http.ResponseWriter) {
	for _, tmpl := range []config.CookieTemplate{
		g.cfg.SessionManager.SessionCookieTemplate,
		g.cfg.SessionManager.CSRFCookieTemplate,
	} {
		cookie := tmpl.ToCookie("")
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}
