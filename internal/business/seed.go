package business

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	slogctx "github.com/veqryn/slog-context"

	"github.com/replysuite/session-gateway/internal/config"
	"github.com/replysuite/session-gateway/internal/oidc"
	oidcsql "github.com/replysuite/session-gateway/internal/oidc/sql"
)

type tenantSeed struct {
	Tenants []struct {
		TenantID   string            `yaml:"tenantID"`
		IssuerURL  string            `yaml:"issuerURL"`
		ClientID   string            `yaml:"clientID"`
		Blocked    bool              `yaml:"blocked"`
		Audiences  []string          `yaml:"audiences"`
		Properties map[string]string `yaml:"properties"`
	} `yaml:"tenants"`
}

// SeedMain loads the tenant provider mappings from the seed file and
// applies them. Existing mappings are updated, so the seed can be
// re-applied safely.
func SeedMain(ctx context.Context, cfg *config.Config) error {
	raw, err := os.ReadFile(cfg.Seed.Path)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}

	var seed tenantSeed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("unmarshalling seed file: %w", err)
	}

	db, err := initDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	service := oidc.NewService(oidcsql.NewRepository(db), nil)

	for _, tenant := range seed.Tenants {
		if tenant.TenantID == "" || tenant.IssuerURL == "" {
			return fmt.Errorf("seed entry is missing tenantID or issuerURL")
		}

		provider := oidc.Provider{
			IssuerURL:  tenant.IssuerURL,
			ClientID:   tenant.ClientID,
			Blocked:    tenant.Blocked,
			Audiences:  tenant.Audiences,
			Properties: tenant.Properties,
		}

		if err := service.ApplyMapping(ctx, tenant.TenantID, provider); err != nil {
			return fmt.Errorf("applying mapping for tenant %s: %w", tenant.TenantID, err)
		}

		slogctx.Info(ctx, "Applied tenant provider mapping", "tenant_id", tenant.TenantID)
	}

	return nil
}
