// Package connectmock provides an in-memory ConnectionRepository for tests.
package connectmock

import (
	"context"
	"sync"

	"github.com/replysuite/session-gateway/internal/connect"
	"github.com/replysuite/session-gateway/internal/serviceerr"
)

type Option func(*Repository)

func WithGetError(err error) Option {
	return func(r *Repository) { r.getErr = err }
}

func WithUpsertError(err error) Option {
	return func(r *Repository) { r.upsertErr = err }
}

func WithDeleteError(err error) Option {
	return func(r *Repository) { r.deleteErr = err }
}

type Repository struct {
	mu          sync.RWMutex
	connections map[string]connect.Connection

	getErr, upsertErr, deleteErr error
}

func NewRepository(opts ...Option) *Repository {
	r := &Repository{
		connections: make(map[string]connect.Connection),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

func key(tenantID, userID string) string {
	return tenantID + "/" + userID
}

func (r *Repository) Get(_ context.Context, tenantID, userID string) (connect.Connection, error) {
	if r.getErr != nil {
		return connect.Connection{}, r.getErr
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[key(tenantID, userID)]
	if !ok {
		return connect.Connection{}, serviceerr.ErrNotFound
	}

	return conn, nil
}

func (r *Repository) Upsert(_ context.Context, conn connect.Connection) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[key(conn.TenantID, conn.UserID)] = conn

	return nil
}

func (r *Repository) Delete(_ context.Context, tenantID, userID string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[key(tenantID, userID)]; !ok {
		return serviceerr.ErrNotFound
	}
	delete(r.connections, key(tenantID, userID))

	return nil
}
