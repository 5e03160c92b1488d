//go:build integration

package sessionvalkey_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replysuite/session-gateway/internal/dbtest/valkeytest"
	"github.com/replysuite/session-gateway/internal/serviceerr"
	"github.com/replysuite/session-gateway/internal/session"
	sessionvalkey "github.com/replysuite/session-gateway/internal/session/valkey"
)

func testSession(id, providerID string) session.Session {
	return session.Session{
		ID:          id,
		TenantID:    "tenant-1",
		ProviderID:  providerID,
		Fingerprint: "fingerprint-1",
		Issuer:      "https://issuer.example.com",
		Locale:      "pt-BR",
		Claims: session.Claims{
			Subject: "user-1",
			Email:   "ana@example.com",
		},
		AccessToken:       "access-token",
		RefreshToken:      "refresh-token",
		AccessTokenExpiry: time.Now().Add(time.Hour),
		Expiry:            time.Now().Add(time.Hour),
		LastVisited:       time.Now(),
	}
}

func TestRepository(t *testing.T) {
	ctx := t.Context()

	client, _, terminate := valkeytest.Start(ctx)
	t.Cleanup(func() {
		client.Close()
		terminate(context.Background())
	})

	repo := sessionvalkey.NewRepository(client, "test")

	t.Run("stores and loads a session", func(t *testing.T) {
		want := testSession("session-1", "")
		require.NoError(t, repo.StoreSession(ctx, want))

		got, err := repo.LoadSession(ctx, "session-1")
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.TenantID, got.TenantID)
		assert.Equal(t, want.Claims.Subject, got.Claims.Subject)
		assert.True(t, want.Expiry.Equal(got.Expiry))
	})

	t.Run("missing session is not found", func(t *testing.T) {
		_, err := repo.LoadSession(ctx, "no-such-session")
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)
	})

	t.Run("indexes the provider session ID", func(t *testing.T) {
		sess := testSession("session-2", "provider-session-2")
		require.NoError(t, repo.StoreSession(ctx, sess))

		sessionID, err := repo.SessionIDByProviderID(ctx, "provider-session-2")
		require.NoError(t, err)
		assert.Equal(t, "session-2", sessionID)

		require.NoError(t, repo.DeleteSession(ctx, sess))

		_, err = repo.LoadSession(ctx, "session-2")
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)

		_, err = repo.SessionIDByProviderID(ctx, "provider-session-2")
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)
	})

	t.Run("lists stored sessions", func(t *testing.T) {
		require.NoError(t, repo.StoreSession(ctx, testSession("session-3", "")))

		sessions, err := repo.ListSessions(ctx)
		require.NoError(t, err)

		ids := make([]string, 0, len(sessions))
		for _, s := range sessions {
			ids = append(ids, s.ID)
		}
		assert.Contains(t, ids, "session-3")
	})

	t.Run("state is single use", func(t *testing.T) {
		state := session.State{
			ID:           "state-1",
			TenantID:     "tenant-1",
			Fingerprint:  "fingerprint-1",
			PKCEVerifier: "verifier",
			NextPath:     "/reviews",
			Locale:       "de",
			Expiry:       time.Now().Add(10 * time.Minute),
		}
		require.NoError(t, repo.StoreState(ctx, state))

		got, err := repo.LoadState(ctx, "state-1")
		require.NoError(t, err)
		assert.Equal(t, state.NextPath, got.NextPath)
		assert.Equal(t, state.Locale, got.Locale)

		require.NoError(t, repo.DeleteState(ctx, "state-1"))

		_, err = repo.LoadState(ctx, "state-1")
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)
	})

	t.Run("refuses to store an already expired state", func(t *testing.T) {
		state := session.State{
			ID:     "state-2",
			Expiry: time.Now().Add(-time.Minute),
		}
		assert.Error(t, repo.StoreState(ctx, state))
	})
}
