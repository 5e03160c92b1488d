// Package sessionmock provides an in-memory session repository for tests.
package sessionmock

import (
	"context"
	"sync"

	"github.com/replysuite/session-gateway/internal/serviceerr"
	"github.com/replysuite/session-gateway/internal/session"
)

type RepositoryOption func(*Repository)

type Repository struct {
	mu       sync.RWMutex
	states   map[string]session.State
	sessions map[string]session.Session

	loadStateErr, storeStateErr, deleteStateErr       error
	loadSessionErr, storeSessionErr, deleteSessionErr error
	listSessionsErr, sessionIDByProviderIDErr         error
}

func WithState(state session.State) RepositoryOption {
	return func(r *Repository) { r.states[state.ID] = state }
}

func WithSession(sess session.Session) RepositoryOption {
	return func(r *Repository) { r.sessions[sess.ID] = sess }
}

func WithLoadStateError(err error) RepositoryOption {
	return func(r *Repository) { r.loadStateErr = err }
}

func WithStoreStateError(err error) RepositoryOption {
	return func(r *Repository) { r.storeStateErr = err }
}

func WithDeleteStateError(err error) RepositoryOption {
	return func(r *Repository) { r.deleteStateErr = err }
}

func WithLoadSessionError(err error) RepositoryOption {
	return func(r *Repository) { r.loadSessionErr = err }
}

func WithStoreSessionError(err error) RepositoryOption {
	return func(r *Repository) { r.storeSessionErr = err }
}

func WithDeleteSessionError(err error) RepositoryOption {
	return func(r *Repository) { r.deleteSessionErr = err }
}

func WithListSessionsError(err error) RepositoryOption {
	return func(r *Repository) { r.listSessionsErr = err }
}

func WithSessionIDByProviderIDError(err error) RepositoryOption {
	return func(r *Repository) { r.sessionIDByProviderIDErr = err }
}

var _ = session.Repository(&Repository{})

func NewInMemRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{
		states:   make(map[string]session.State),
		sessions: make(map[string]session.Session),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

func (r *Repository) LoadState(_ context.Context, stateID string) (session.State, error) {
	if r.loadStateErr != nil {
		return session.State{}, r.loadStateErr
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if state, ok := r.states[stateID]; ok {
		return state, nil
	}

	return session.State{}, serviceerr.ErrNotFound
}

func (r *Repository) StoreState(_ context.Context, state session.State) error {
	if r.storeStateErr != nil {
		return r.storeStateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[state.ID] = state

	return nil
}

func (r *Repository) DeleteState(_ context.Context, stateID string) error {
	if r.deleteStateErr != nil {
		return r.deleteStateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.states[stateID]; !ok {
		return serviceerr.ErrNotFound
	}
	delete(r.states, stateID)

	return nil
}

func (r *Repository) LoadSession(_ context.Context, sessionID string) (session.Session, error) {
	if r.loadSessionErr != nil {
		return session.Session{}, r.loadSessionErr
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.sessions[sessionID]; ok {
		return s, nil
	}

	return session.Session{}, serviceerr.ErrNotFound
}

func (r *Repository) StoreSession(_ context.Context, sess session.Session) error {
	if r.storeSessionErr != nil {
		return r.storeSessionErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sess.ID] = sess

	return nil
}

func (r *Repository) ListSessions(_ context.Context) ([]session.Session, error) {
	if r.listSessionsErr != nil {
		return nil, r.listSessionsErr
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}

	return sessions, nil
}

func (r *Repository) SessionIDByProviderID(_ context.Context, providerID string) (string, error) {
	if r.sessionIDByProviderIDErr != nil {
		return "", r.sessionIDByProviderIDErr
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.ProviderID == providerID {
			return s.ID, nil
		}
	}

	return "", serviceerr.ErrNotFound
}

func (r *Repository) DeleteSession(_ context.Context, sess session.Session) error {
	if r.deleteSessionErr != nil {
		return r.deleteSessionErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sess.ID]; !ok {
		return serviceerr.ErrNotFound
	}
	delete(r.sessions, sess.ID)

	return nil
}
