package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

// RefreshExpiringTokens refreshes access tokens that expire within
// window, using the refresh token grant against the tenant's provider.
func (m *Manager) RefreshExpiringTokens(ctx context.Context, window time.Duration) error {
	sessions, err := m.sessions.ListSessions(ctx)
	if err != nil {
		return err
	}

	for _, s := range sessions {
		if s.RefreshToken == "" || time.Until(s.AccessTokenExpiry) >= window {
			continue
		}

		if err := m.refreshExpiringToken(ctx, &s); err != nil {
			slogctx.Warn(ctx, "Could not refresh token", "tenant_id", s.TenantID, "error", err)
			continue
		}

		if err := m.sessions.StoreSession(ctx, s); err != nil {
			slogctx.Warn(ctx, "Could not store refreshed session", "tenant_id", s.TenantID, "error", err)
		}
	}

	return nil
}

func (m *Manager) refreshExpiringToken(ctx context.Context, s *Session) error {
	provider, err := m.providers.GetProvider(ctx, s.TenantID)
	if err != nil {
		return fmt.Errorf("getting OIDC provider: %w", err)
	}

	openidConf, err := m.providers.GetConfiguration(ctx, provider)
	if err != nil {
		return fmt.Errorf("getting openid configuration: %w", err)
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", s.RefreshToken)
	data.Set("client_id", provider.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openidConf.TokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.secureClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New("token endpoint returned non-200 status")
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return fmt.Errorf("decoding refresh response: %w", err)
	}

	s.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		s.RefreshToken = tokens.RefreshToken
	}
	s.AccessTokenExpiry = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)

	return nil
}

// CleanupIdleSessions deletes sessions that have been idle for longer
// than timeout.
func (m *Manager) CleanupIdleSessions(ctx context.Context, timeout time.Duration) error {
	sessions, err := m.sessions.ListSessions(ctx)
	if err != nil {
		return err
	}

	for _, s := range sessions {
		if time.Since(s.LastVisited) < timeout {
			continue
		}

		if err := m.sessions.DeleteSession(ctx, s); err != nil {
			slogctx.Warn(ctx, "Could not delete idle session", "tenant_id", s.TenantID, "error", err)
			continue
		}

		slogctx.Info(ctx, "Deleted idle session", "tenant_id", s.TenantID)
	}

	return nil
}
