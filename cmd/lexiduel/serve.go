// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/lexiduel/lexiduel/internal/auth"
	authpg "github.com/lexiduel/lexiduel/internal/auth/postgres"
	"github.com/lexiduel/lexiduel/internal/config"
	"github.com/lexiduel/lexiduel/internal/httpapi"
	"github.com/lexiduel/lexiduel/internal/ledger"
	"github.com/lexiduel/lexiduel/internal/logging"
	"github.com/lexiduel/lexiduel/internal/observability"
	"github.com/lexiduel/lexiduel/internal/otpgateway"
	"github.com/lexiduel/lexiduel/internal/store"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the API server which handles login, OTP verification,
session management, and the coin ledger.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// runServeWithDeps starts the API server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ConfigLoader == nil {
		deps.ConfigLoader = config.Load
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = func(ctx context.Context, databaseURL string) (Pool, error) {
			return store.Connect(ctx, databaseURL)
		}
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(databaseURL string) (SchemaMigrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(addr string, api *httpapi.API) APIServer {
			return httpapi.NewServer(addr, api)
		}
	}

	cfg, err := deps.ConfigLoader(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.SetDefault("lexiduel", version, cfg.LogFormat, cfg.LogLevel)

	slog.Info("starting api server",
		"listen_addr", cfg.ListenAddr,
		"log_format", cfg.LogFormat,
	)

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database URL is required (flag, config file, or DATABASE_URL)")
	}

	if err := autoMigrate(cfg.DatabaseURL, deps.MigratorFactory); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	pool, err := deps.PoolFactory(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	slog.Info("connected to database")

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, func() bool { return true })
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	// The API wiring needs the concrete pool for the repositories. Tests
	// inject a mock pool and exercise the lifecycle without an API server.
	var apiServer APIServer
	if realPool, ok := pool.(*pgxpool.Pool); ok {
		api, err := buildAPI(realPool, cfg, metrics)
		if err != nil {
			stopServer(obsServer, "observability")
			return err
		}

		apiServer = deps.APIServerFactory(cfg.ListenAddr, api)
		apiErrChan, err := apiServer.Start()
		if err != nil {
			stopServer(obsServer, "observability")
			return fmt.Errorf("failed to start api server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, apiErrChan, "api")
		slog.Info("api server started", "addr", apiServer.Addr())
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	stopServer(apiServer, "api")
	stopServer(obsServer, "observability")

	slog.Info("shutdown complete")
	return nil
}

// buildAPI wires the repositories and services behind the HTTP handlers.
func buildAPI(pool *pgxpool.Pool, cfg *config.Config, metrics *observability.Metrics) (*httpapi.API, error) {
	accounts := authpg.NewAccountRepository(pool)
	members := authpg.NewMemberRepository(pool)
	sessions := authpg.NewSessionRepository(pool)
	challenges := authpg.NewChallengeRepository(pool)

	authSvc := auth.NewService(accounts, members, sessions)

	gateway, err := otpgateway.NewClient(cfg.OTPGatewayURL, cfg.OTPGatewayAuth)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTP gateway client: %w", err)
	}
	otpSvc := auth.NewOTPService(gateway, accounts, members, challenges, authSvc)

	coins := ledger.New(pool)

	return httpapi.NewAPI(authSvc, otpSvc, coins, accounts, members, metrics), nil
}

// autoMigrate applies pending migrations before the server starts serving.
func autoMigrate(databaseURL string, factory func(string) (SchemaMigrator, error)) error {
	migrator, err := factory(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return fmt.Errorf("failed to list pending migrations: %w", err)
	}
	if len(pending) == 0 {
		slog.Info("database schema up to date")
		return nil
	}

	slog.Info("applying pending migrations", "count", len(pending))
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("migrations applied", "count", len(pending))
	return nil
}

// stopServer gracefully stops a server, tolerating nil for servers that
// were never started.
func stopServer(s interface {
	Stop(ctx context.Context) error
}, name string,
) {
	if s == nil {
		return
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := s.Stop(shutdownCtx); err != nil {
		slog.Warn("failed to stop server", "server", name, "error", err)
	}
}

// monitorServerErrors watches a server error channel and cancels the run
// context on failure.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
