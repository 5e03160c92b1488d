// Package oidcmock provides an in-memory ProviderRepository for tests.
package oidcmock

import (
	"context"
	"sync"

	"github.com/replysuite/session-gateway/internal/oidc"
	"github.com/replysuite/session-gateway/internal/serviceerr"
)

type Option func(*Repository)

func WithGetError(err error) Option {
	return func(r *Repository) { r.getErr = err }
}

func WithCreateError(err error) Option {
	return func(r *Repository) { r.createErr = err }
}

func WithUpdateError(err error) Option {
	return func(r *Repository) { r.updateErr = err }
}

func WithDeleteError(err error) Option {
	return func(r *Repository) { r.deleteErr = err }
}

type Repository struct {
	mu        sync.RWMutex
	providers map[string]oidc.Provider

	getErr, createErr, updateErr, deleteErr error
}

func NewRepository(opts ...Option) *Repository {
	r := &Repository{
		providers: make(map[string]oidc.Provider),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Repository) Get(_ context.Context, tenantID string) (oidc.Provider, error) {
	if r.getErr != nil {
		return oidc.Provider{}, r.getErr
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[tenantID]
	if !ok {
		return oidc.Provider{}, serviceerr.ErrNotFound
	}

	return provider, nil
}

func (r *Repository) Create(_ context.Context, tenantID string, provider oidc.Provider) error {
	if r.createErr != nil {
		return r.createErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[tenantID]; ok {
		return serviceerr.ErrConflict
	}

	r.providers[tenantID] = provider

	return nil
}

func (r *Repository) Update(_ context.Context, tenantID string, provider oidc.Provider) error {
	if r.updateErr != nil {
		return r.updateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[tenantID]; !ok {
		return serviceerr.ErrNotFound
	}

	r.providers[tenantID] = provider

	return nil
}

func (r *Repository) Delete(_ context.Context, tenantID string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[tenantID]; !ok {
		return serviceerr.ErrNotFound
	}

	delete(r.providers, tenantID)

	return nil
}
