package business

import (
	"context"
	"fmt"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/replysuite/session-gateway/internal/config"
)

// HousekeeperMain runs the periodic session maintenance: refreshing
// access tokens close to expiry and deleting idle sessions.
func HousekeeperMain(ctx context.Context, cfg *config.Config) error {
	services, err := initServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the gateway services: %w", err)
	}
	defer services.close()

	c := time.Tick(cfg.Housekeeper.Interval)
	for {
		slogctx.Info(ctx, "Triggering session housekeeping")

		if err := services.manager.RefreshExpiringTokens(ctx, cfg.Housekeeper.RefreshWindow); err != nil {
			slogctx.Error(ctx, "Failed to refresh expiring tokens", "error", err)
		}

		if err := services.manager.CleanupIdleSessions(ctx, cfg.SessionManager.IdleTimeout); err != nil {
			slogctx.Error(ctx, "Failed to clean up idle sessions", "error", err)
		}

		select {
		case <-c:
			continue
		case <-ctx.Done():
			return nil
		}
	}
}
