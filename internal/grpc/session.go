// Package grpc exposes the internal verification API other backend
// services call on every request. It never serves browsers.
package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	sessionv1 "github.com/openkcm/api-sdk/proto/kms/api/cmk/sessionmanager/session/v1"
	typesv1 "github.com/openkcm/api-sdk/proto/kms/api/cmk/types/v1"
	slogctx "github.com/veqryn/slog-context"

	"github.com/replysuite/session-gateway/internal/oidc"
	"github.com/replysuite/session-gateway/internal/serviceerr"
	"github.com/replysuite/session-gateway/internal/session"
)

type SessionServer struct {
	sessionv1.UnimplementedServiceServer

	manager   *session.Manager
	providers *oidc.Service
}

func NewSessionServer(manager *session.Manager, providers *oidc.Service) *SessionServer {
	return &SessionServer{
		manager:   manager,
		providers: providers,
	}
}

// GetSession verifies a session on behalf of another backend service.
// Verification failures are not errors on the wire; they yield an
// invalid session so the caller rejects the request.
func (s *SessionServer) GetSession(ctx context.Context, req *sessionv1.GetSessionRequest) (*sessionv1.GetSessionResponse, error) {
	slogctx.Debug(ctx, "GetSession called")

	sess, err := s.manager.VerifySession(ctx, req.GetSessionId(), req.GetFingerprint())
	if err != nil {
		slogctx.Warn(ctx, "Session verification failed", "error", err)
		return &sessionv1.GetSessionResponse{Valid: false}, nil
	}

	if sess.TenantID != req.GetTenantId() {
		slogctx.Warn(ctx, "Is this an attack? Tenant IDs do not match",
			"session_tenant_id", sess.TenantID, "request_tenant_id", req.GetTenantId())
		return &sessionv1.GetSessionResponse{Valid: false}, nil
	}

	// rejects blocked tenants
	if _, err := s.providers.GetProvider(ctx, sess.TenantID); err != nil {
		slogctx.Warn(ctx, "Could not get provider for tenant", "error", err)
		return &sessionv1.GetSessionResponse{Valid: false}, nil
	}

	if err := s.manager.TouchSession(ctx, sess.ID); err != nil {
		slogctx.Error(ctx, "failed to bump the session activity", "error", err)
		return &sessionv1.GetSessionResponse{Valid: false}, nil
	}

	return &sessionv1.GetSessionResponse{
		Valid:      true,
		Issuer:     sess.Issuer,
		Subject:    sess.Claims.Subject,
		GivenName:  sess.Claims.GivenName,
		FamilyName: sess.Claims.FamilyName,
		Email:      sess.Claims.Email,
		Groups:     sess.Claims.Groups,
		AuthContext: map[string]string{
			"tenant_id": sess.TenantID,
			"locale":    sess.Locale,
		},
	}, nil
}

// GetOIDCProvider returns the provider registration for a tenant.
func (s *SessionServer) GetOIDCProvider(ctx context.Context, req *sessionv1.GetOIDCProviderRequest) (*sessionv1.GetOIDCProviderResponse, error) {
	provider, err := s.providers.GetProvider(ctx, req.GetTenantId())
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "oidc provider not found")
		}
		if errors.Is(err, serviceerr.ErrBlockedTenant) {
			return nil, status.Error(codes.PermissionDenied, "tenant is blocked")
		}

		slogctx.Error(ctx, "failed to get provider", "error", err)
		return nil, status.Error(codes.Internal, "failed to get provider")
	}

	conf, err := s.providers.GetConfiguration(ctx, provider)
	if err != nil {
		slogctx.Error(ctx, "failed to discover provider configuration", "error", err)
		return nil, status.Error(codes.Internal, "failed to discover provider configuration")
	}

	return &sessionv1.GetOIDCProviderResponse{
		Provider: &typesv1.OIDCProvider{
			IssuerUrl: provider.IssuerURL,
			JwksUri:   conf.JwksURI,
			Audiences: provider.Audiences,
		},
	}, nil
}
