package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/replysuite/session-gateway/internal/serviceerr"
)

type Service struct {
	repository ProviderRepository
	discoverer *Discoverer
}

func NewService(repo ProviderRepository, discoverer *Discoverer) *Service {
	return &Service{
		repository: repo,
		discoverer: discoverer,
	}
}

// GetProvider returns the provider registered for the tenant. Blocked
// tenants yield ErrBlockedTenant so callers fail the whole flow.
func (s *Service) GetProvider(ctx context.Context, tenantID string) (Provider, error) {
	provider, err := s.repository.Get(ctx, tenantID)
	if err != nil {
		return Provider{}, fmt.Errorf("getting provider for tenant: %w", err)
	}

	if provider.Blocked {
		return Provider{}, serviceerr.ErrBlockedTenant
	}

	return provider, nil
}

// GetConfiguration resolves the discovery document for the provider.
func (s *Service) GetConfiguration(ctx context.Context, provider Provider) (Configuration, error) {
	conf, err := s.discoverer.Discover(ctx, provider.IssuerURL)
	if err != nil {
		return Configuration{}, fmt.Errorf("discovering openid configuration: %w", err)
	}

	return conf, nil
}

// ApplyMapping creates the tenant to provider mapping, or updates it if
// one already exists.
func (s *Service) ApplyMapping(ctx context.Context, tenantID string, provider Provider) error {
	err := s.repository.Create(ctx, tenantID, provider)
	if err == nil {
		return nil
	}

	if !errors.Is(err, serviceerr.ErrConflict) {
		return fmt.Errorf("creating provider mapping: %w", err)
	}

	if err := s.repository.Update(ctx, tenantID, provider); err != nil {
		return fmt.Errorf("updating provider mapping: %w", err)
	}

	return nil
}

// RemoveMapping deletes the tenant to provider mapping.
func (s *Service) RemoveMapping(ctx context.Context, tenantID string) error {
	if err := s.repository.Delete(ctx, tenantID); err != nil {
		return fmt.Errorf("deleting provider mapping: %w", err)
	}

	return nil
}
