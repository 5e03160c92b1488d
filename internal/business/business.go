// Package business wires configuration, storage and the domain services
// together and runs the long lived entry points behind the subcommands.
package business

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/replysuite/session-gateway/internal/business/server"
	"github.com/replysuite/session-gateway/internal/config"
	"github.com/replysuite/session-gateway/internal/connect"
	connectsql "github.com/replysuite/session-gateway/internal/connect/sql"
	grpcapi "github.com/replysuite/session-gateway/internal/grpc"
	"github.com/replysuite/session-gateway/internal/oidc"
	oidcsql "github.com/replysuite/session-gateway/internal/oidc/sql"
	"github.com/replysuite/session-gateway/internal/session"
	sessionvalkey "github.com/replysuite/session-gateway/internal/session/valkey"
)

const providerHTTPTimeout = 15 * time.Second

// Main starts both API servers. The services, and with them the single
// database pool and valkey client, are shared by both.
func Main(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	services, err := initServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the gateway services: %w", err)
	}
	defer services.close()

	// errChan is used to capture the first error and shutdown the servers.
	errChan := make(chan error, 1)

	// wg is used to wait for all servers to shutdown.
	var wg sync.WaitGroup

	// start public HTTP server
	wg.Go(func() {
		errChan <- publicMain(ctx, cfg, services)
	})

	// start internal gRPC API server
	wg.Go(func() {
		errChan <- internalMain(ctx, cfg, services)
	})

	// wait for any error to initiate the shutdown
	if err := <-errChan; err != nil {
		slogctx.Error(ctx, "Shutting down servers", "error", err)
	}
	cancel()

	// wait for all servers to shutdown
	wg.Wait()

	return nil
}

// publicMain starts the browser facing HTTP server.
func publicMain(ctx context.Context, cfg *config.Config, services *services) error {
	gateway, err := server.NewGateway(cfg, services.manager, services.connects)
	if err != nil {
		return fmt.Errorf("creating the gateway: %w", err)
	}

	return server.StartHTTPServer(ctx, cfg, gateway)
}

// internalMain starts the gRPC private API server.
func internalMain(ctx context.Context, cfg *config.Config, services *services) error {
	sessionServer := grpcapi.NewSessionServer(services.manager, services.providers)

	return server.StartGRPCServer(ctx, cfg, sessionServer)
}

type services struct {
	manager   *session.Manager
	providers *oidc.Service
	connects  *connect.Service

	close func()
}

func initServices(ctx context.Context, cfg *config.Config) (*services, error) {
	db, err := initDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	valkeyClient, err := initValkey(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: providerHTTPTimeout}

	providers := oidc.NewService(
		oidcsql.NewRepository(db),
		oidc.NewDiscoverer(httpClient, cfg.SessionManager.DiscoveryCacheTTL),
	)

	sessionRepo := sessionvalkey.NewRepository(valkeyClient, cfg.ValKey.Prefix)

	manager, err := session.NewManager(&cfg.SessionManager, providers, sessionRepo, httpClient)
	if err != nil {
		valkeyClient.Close()
		db.Close()

		return nil, fmt.Errorf("creating session manager: %w", err)
	}

	connects, err := connect.NewService(&cfg.Connect, connectsql.NewRepository(db))
	if err != nil {
		valkeyClient.Close()
		db.Close()

		return nil, fmt.Errorf("creating connect service: %w", err)
	}

	return &services{
		manager:   manager,
		providers: providers,
		connects:  connects,
		close: func() {
			valkeyClient.Close()
			db.Close()
		},
	}, nil
}

func initDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	connStr, err := config.MakeConnStr(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("making dsn from config: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing pgxpool config: %w", err)
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("initialising pgxpool connection: %w", err)
	}

	return db, nil
}

func initValkey(cfg *config.Config) (valkey.Client, error) {
	valkeyHost, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Host)
	if err != nil {
		return nil, fmt.Errorf("loading valkey host: %w", err)
	}

	valkeyUsername, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.User)
	if err != nil {
		return nil, fmt.Errorf("loading valkey username: %w", err)
	}

	valkeyPassword, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Password)
	if err != nil {
		return nil, fmt.Errorf("loading valkey password: %w", err)
	}

	valkeyOpts := valkey.ClientOption{
		InitAddress: []string{string(valkeyHost)},
		Username:    string(valkeyUsername),
		Password:    string(valkeyPassword),
	}

	if cfg.ValKey.SecretRef.Type == commoncfg.MTLSSecretType {
		tlsConfig, err := commoncfg.LoadMTLSConfig(&cfg.ValKey.SecretRef.MTLS)
		if err != nil {
			return nil, fmt.Errorf("loading valkey mTLS config from secret ref: %w", err)
		}

		valkeyOpts.TLSConfig = tlsConfig
	}

	valkeyClient, err := valkey.NewClient(valkeyOpts)
	if err != nil {
		return nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	return valkeyClient, nil
}
