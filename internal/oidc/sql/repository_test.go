//go:build integration

package oidcsql_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replysuite/session-gateway/internal/dbtest/postgrestest"
	"github.com/replysuite/session-gateway/internal/oidc"
	oidcsql "github.com/replysuite/session-gateway/internal/oidc/sql"
	"github.com/replysuite/session-gateway/internal/serviceerr"
)

func testProvider() oidc.Provider {
	return oidc.Provider{
		IssuerURL: "https://login.acme.example.com",
		ClientID:  "replysuite-dashboard",
		Audiences: []string{"https://app.replysuite.dev"},
		Properties: map[string]string{
			"region": "eu",
		},
	}
}

func TestRepository(t *testing.T) {
	ctx := t.Context()

	pool, _, terminate := postgrestest.Start(ctx)
	t.Cleanup(func() {
		pool.Close()
		terminate(context.Background())
	})

	repo := oidcsql.NewRepository(pool)

	t.Run("creates and gets a provider", func(t *testing.T) {
		want := testProvider()
		require.NoError(t, repo.Create(ctx, "tenant-1", want))

		got, err := repo.Get(ctx, "tenant-1")
		require.NoError(t, err)

		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("provider mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("creating the same tenant twice conflicts", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, "tenant-2", testProvider()))

		err := repo.Create(ctx, "tenant-2", testProvider())
		assert.ErrorIs(t, err, serviceerr.ErrConflict)
	})

	t.Run("nil audiences come back as an empty slice", func(t *testing.T) {
		provider := testProvider()
		provider.Audiences = nil
		require.NoError(t, repo.Create(ctx, "tenant-3", provider))

		got, err := repo.Get(ctx, "tenant-3")
		require.NoError(t, err)
		assert.Empty(t, got.Audiences)
	})

	t.Run("updates a provider", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, "tenant-4", testProvider()))

		updated := testProvider()
		updated.Blocked = true
		updated.IssuerURL = "https://id.acme.example.com"
		require.NoError(t, repo.Update(ctx, "tenant-4", updated))

		got, err := repo.Get(ctx, "tenant-4")
		require.NoError(t, err)
		assert.True(t, got.Blocked)
		assert.Equal(t, "https://id.acme.example.com", got.IssuerURL)
	})

	t.Run("updating an unknown tenant is not found", func(t *testing.T) {
		err := repo.Update(ctx, "no-such-tenant", testProvider())
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)
	})

	t.Run("deletes a provider", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, "tenant-5", testProvider()))
		require.NoError(t, repo.Delete(ctx, "tenant-5"))

		_, err := repo.Get(ctx, "tenant-5")
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)
	})

	t.Run("deleting an unknown tenant is not found", func(t *testing.T) {
		err := repo.Delete(ctx, "no-such-tenant")
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)
	})
}
