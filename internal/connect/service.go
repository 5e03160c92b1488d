// Package connect implements the OAuth flow that links a signed-in user
// to their Google account, separate from the tenant login flow. The
// state parameter is a signed, time-bound token naming the user it was
// minted for.
package connect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"golang.org/x/oauth2"

	slogctx "github.com/veqryn/slog-context"

	"github.com/replysuite/session-gateway/internal/config"
	"github.com/replysuite/session-gateway/internal/connectstate"
	"github.com/replysuite/session-gateway/internal/serviceerr"
)

var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

var defaultScopes = []string{"https://www.googleapis.com/auth/business.manage"}

type Service struct {
	oauth       *oauth2.Config
	codec       *connectstate.Codec
	connections ConnectionRepository
}

func NewService(cfg *config.Connect, connections ConnectionRepository) (*Service, error) {
	clientID, err := commoncfg.LoadValueFromSourceRef(cfg.ClientID)
	if err != nil {
		return nil, fmt.Errorf("loading client ID from source ref: %w", err)
	}

	clientSecret, err := commoncfg.LoadValueFromSourceRef(cfg.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("loading client secret from source ref: %w", err)
	}

	stateSecret, err := commoncfg.LoadValueFromSourceRef(cfg.StateSecret)
	if err != nil {
		return nil, fmt.Errorf("loading state secret from source ref: %w", err)
	}

	codec, err := connectstate.NewCodec(stateSecret, cfg.StateTTL)
	if err != nil {
		return nil, fmt.Errorf("creating state codec: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}

	return &Service{
		oauth: &oauth2.Config{
			ClientID:     string(clientID),
			ClientSecret: string(clientSecret),
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint:     googleEndpoint,
		},
		codec:       codec,
		connections: connections,
	}, nil
}

// BeginConnect returns the Google consent URL for userID. The state
// parameter carries a signed token so the callback can prove which user
// started the flow.
func (s *Service) BeginConnect(_ context.Context, userID string) (string, error) {
	state, err := s.codec.Encode(userID)
	if err != nil {
		return "", fmt.Errorf("encoding state token: %w", err)
	}

	// offline access so we receive a refresh token for background replies
	u := s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	return u, nil
}

// FinishConnect validates the returned state token against the live
// session's user, redeems the code, and stores the connection.
func (s *Service) FinishConnect(ctx context.Context, tenantID, userID, state, code string) error {
	if code == "" {
		return serviceerr.ErrMissingCode
	}

	stateUserID, err := s.codec.Decode(state)
	if err != nil {
		return err
	}

	if stateUserID != userID {
		return serviceerr.ErrMalformedState
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return errors.Join(serviceerr.ErrExchangeFailed, err)
	}

	now := time.Now()
	conn := Connection{
		TenantID:     tenantID,
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
		Scopes:       s.oauth.Scopes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.connections.Upsert(ctx, conn); err != nil {
		return fmt.Errorf("storing connection: %w", err)
	}

	slogctx.Info(ctx, "Linked Google account", "tenant_id", tenantID)

	return nil
}

// GetConnection returns the stored connection for the user.
func (s *Service) GetConnection(ctx context.Context, tenantID, userID string) (Connection, error) {
	conn, err := s.connections.Get(ctx, tenantID, userID)
	if err != nil {
		return Connection{}, fmt.Errorf("getting connection: %w", err)
	}

	return conn, nil
}

// Disconnect removes the stored connection. Removing a connection that
// does not exist is not an error.
func (s *Service) Disconnect(ctx context.Context, tenantID, userID string) error {
	err := s.connections.Delete(ctx, tenantID, userID)
	if err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
		return fmt.Errorf("deleting connection: %w", err)
	}

	return nil
}
