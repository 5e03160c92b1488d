// Package sessionvalkey keeps sessions and in-flight login states in
// Valkey. Records carry their own TTL so expiry needs no sweeper.
package sessionvalkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/replysuite/session-gateway/internal/session"
)

type ObjectType string

const (
	objectTypeSession         ObjectType = "session"
	objectTypeState           ObjectType = "state"
	objectTypeProviderSession ObjectType = "providerSession"
)

var (
	ErrGetSessions  = errors.New("getting sessions from store")
	ErrGetState     = errors.New("getting state from store")
	ErrStoreState   = errors.New("setting state into storage")
	ErrStoreSession = errors.New("setting session into storage")
	ErrGetSession   = errors.New("getting session from store")
)

type Repository struct {
	store *store
}

var _ = session.Repository(&Repository{})

func NewRepository(valkeyClient valkey.Client, prefix string) *Repository {
	return &Repository{
		store: newStore(valkeyClient, prefix),
	}
}

func (r *Repository) LoadState(ctx context.Context, stateID string) (session.State, error) {
	var state session.State
	if err := r.store.Get(ctx, objectTypeState, stateID, &state); err != nil {
		return session.State{}, errors.Join(ErrGetState, err)
	}

	return state, nil
}

func (r *Repository) StoreState(ctx context.Context, state session.State) error {
	duration := time.Until(state.Expiry)
	if err := r.store.Set(ctx, objectTypeState, state.ID, state, duration); err != nil {
		return errors.Join(ErrStoreState, err)
	}

	return nil
}

func (r *Repository) DeleteState(ctx context.Context, stateID string) error {
	if err := r.store.Destroy(ctx, objectTypeState, stateID); err != nil {
		return fmt.Errorf("deleting state from store: %w", err)
	}

	return nil
}

func (r *Repository) LoadSession(ctx context.Context, sessionID string) (session.Session, error) {
	var s session.Session
	if err := r.store.Get(ctx, objectTypeSession, sessionID, &s); err != nil {
		return session.Session{}, errors.Join(ErrGetSession, err)
	}

	return s, nil
}

func (r *Repository) StoreSession(ctx context.Context, s session.Session) error {
	duration := time.Until(s.Expiry)

	if err := r.store.Set(ctx, objectTypeSession, s.ID, s, duration); err != nil {
		return errors.Join(ErrStoreSession, err)
	}

	if s.ProviderID != "" {
		if err := r.store.Set(ctx, objectTypeProviderSession, s.ProviderID, s.ID, duration); err != nil {
			if delErr := r.store.Destroy(ctx, objectTypeSession, s.ID); delErr != nil {
				return errors.Join(ErrStoreSession, err, delErr)
			}

			return errors.Join(ErrStoreSession, err)
		}
	}

	return nil
}

func (r *Repository) ListSessions(ctx context.Context) ([]session.Session, error) {
	var sessions []session.Session
	if err := getStoreObjects(ctx, r.store, objectTypeSession, "*", &sessions); err != nil {
		return nil, errors.Join(ErrGetSessions, err)
	}

	return sessions, nil
}

func (r *Repository) DeleteSession(ctx context.Context, s session.Session) error {
	if err := r.store.Destroy(ctx, objectTypeSession, s.ID); err != nil {
		return err
	}

	if s.ProviderID != "" {
		if err := r.store.Destroy(ctx, objectTypeProviderSession, s.ProviderID); err != nil {
			return err
		}
	}

	return nil
}

// SessionIDByProviderID resolves the provider's session ID (the sid
// claim) to the gateway's session ID, used for back-channel logout.
func (r *Repository) SessionIDByProviderID(ctx context.Context, providerID string) (string, error) {
	var sessionID string
	if err := r.store.Get(ctx, objectTypeProviderSession, providerID, &sessionID); err != nil {
		return "", errors.Join(ErrGetSession, err)
	}

	return sessionID, nil
}
