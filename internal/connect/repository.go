package connect

import "context"

// ConnectionRepository stores Google account connections.
type ConnectionRepository interface {
	Get(ctx context.Context, tenantID, userID string) (Connection, error)
	Upsert(ctx context.Context, conn Connection) error
	Delete(ctx context.Context, tenantID, userID string) error
}
