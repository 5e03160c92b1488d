package oidc

import "context"

// ProviderRepository stores the tenant to OIDC provider mapping.
type ProviderRepository interface {
	Get(ctx context.Context, tenantID string) (Provider, error)
	Create(ctx context.Context, tenantID string, provider Provider) error
	Update(ctx context.Context, tenantID string, provider Provider) error
	Delete(ctx context.Context, tenantID string) error
}
