// Package connectsql stores Google account connections in PostgreSQL.
package connectsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/replysuite/session-gateway/internal/connect"
	"github.com/replysuite/session-gateway/internal/serviceerr"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Get(ctx context.Context, tenantID, userID string) (connect.Connection, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return connect.Connection{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT email, access_token, refresh_token, token_expiry, scopes, created_at, updated_at
			 FROM gbp_connections WHERE tenant_id = $1 AND user_id = $2;`,
		tenantID, userID)

	conn := connect.Connection{TenantID: tenantID, UserID: userID}
	err = row.Scan(&conn.Email, &conn.AccessToken, &conn.RefreshToken, &conn.TokenExpiry,
		&conn.Scopes, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return connect.Connection{}, serviceerr.ErrNotFound
		}

		return connect.Connection{}, fmt.Errorf("scanning rows: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		return connect.Connection{}, fmt.Errorf("committing tx: %w", err)
	}

	return conn, nil
}

func (r *Repository) Upsert(ctx context.Context, conn connect.Connection) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO gbp_connections (tenant_id, user_id, email, access_token, refresh_token, token_expiry, scopes, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, '{}'::text[]), $8, $9)
			 ON CONFLICT (tenant_id, user_id) DO UPDATE
			 SET email = EXCLUDED.email,
				 access_token = EXCLUDED.access_token,
				 refresh_token = EXCLUDED.refresh_token,
				 token_expiry = EXCLUDED.token_expiry,
				 scopes = EXCLUDED.scopes,
				 updated_at = EXCLUDED.updated_at;`,
		conn.TenantID, conn.UserID, conn.Email, conn.AccessToken, conn.RefreshToken,
		conn.TokenExpiry, conn.Scopes, conn.CreatedAt, conn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting into gbp_connections: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, tenantID, userID string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `DELETE FROM gbp_connections WHERE tenant_id = $1 AND user_id = $2;`, tenantID, userID)
	if err != nil {
		return fmt.Errorf("executing sql query: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return serviceerr.ErrNotFound
	}

	err = tx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("committing tx: %w", err)
	}

	return nil
}
