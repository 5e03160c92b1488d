// Package oidcsql stores tenant provider mappings in PostgreSQL.
package oidcsql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/replysuite/session-gateway/internal/oidc"
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

func (r *Repository) Get(ctx context.Context, tenantID string) (oidc.Provider, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return oidc.Provider{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT issuer, client_id, blocked, audiences, properties FROM tenant_providers WHERE tenant_id = $1;`,
		tenantID)

	var propsBytes []byte
	var provider oidc.Provider

	err = row.Scan(&provider.IssuerURL, &provider.ClientID, &provider.Blocked, &provider.Audiences, &propsBytes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return oidc.Provider{}, serviceerr.ErrNotFound
		}

		return oidc.Provider{}, fmt.Errorf("scanning rows: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		return oidc.Provider{}, fmt.Errorf("committing tx: %w", err)
	}

	if len(propsBytes) > 0 {
		err := json.Unmarshal(propsBytes, &provider.Properties)
		if err != nil {
			return oidc.Provider{}, fmt.Errorf("unmarshalling properties: %w", err)
		}
	} else {
		provider.Properties = make(map[string]string)
	}

	return provider, nil
}

func (r *Repository) Create(ctx context.Context, tenantID string, provider oidc.Provider) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	propsBytes, err := json.Marshal(provider.Properties)
	if err != nil {
		return fmt.Errorf("marshaling properties: %w", err)
	}

	// The audiences value is optional, so we use COALESCE to default to an empty array if it's nil
	_, err = tx.Exec(ctx,
		`INSERT INTO tenant_providers (tenant_id, issuer, client_id, blocked, audiences, properties)
			 VALUES ($1, $2, $3, $4, COALESCE($5, '{}'::text[]), $6);`,
		tenantID, provider.IssuerURL, provider.ClientID, provider.Blocked, provider.Audiences, propsBytes,
	)
	if err != nil {
		if err, ok := handlePgError(err); ok {
			return err
		}

		return fmt.Errorf("inserting into tenant_providers: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (r *Repository) Update(ctx context.Context, tenantID string, provider oidc.Provider) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	propsBytes, err := json.Marshal(provider.Properties)
	if err != nil {
		return fmt.Errorf("marshaling properties: %w", err)
	}

	ct, err := tx.Exec(ctx,
		`UPDATE tenant_providers
			 SET issuer = $1, client_id = $2, blocked = $3, audiences = COALESCE($4, '{}'::text[]), properties = $5
			 WHERE tenant_id = $6;`,
		provider.IssuerURL, provider.ClientID, provider.Blocked, provider.Audiences, propsBytes, tenantID)
	if err != nil {
		return fmt.Errorf("updating tenant_providers: %w", err)
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

func (r *Repository) Delete(ctx context.Context, tenantID string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `DELETE FROM tenant_providers WHERE tenant_id = $1;`, tenantID)
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
