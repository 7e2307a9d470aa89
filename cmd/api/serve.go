package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deppfellow/layered-api/internal/config"
	"github.com/deppfellow/layered-api/internal/database"
	"github.com/deppfellow/layered-api/internal/handler"
	"github.com/deppfellow/layered-api/internal/logger"
	"github.com/deppfellow/layered-api/internal/metrics"
	"github.com/deppfellow/layered-api/internal/repository"
	"github.com/deppfellow/layered-api/internal/router"
	"github.com/deppfellow/layered-api/internal/server"
	"github.com/deppfellow/layered-api/internal/service"
	"github.com/deppfellow/layered-api/internal/validation"
)

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving (postgres persistence only)")
	return cmd
}

// serve wires config -> logger -> pools -> adapter bindings -> services ->
// frozen registry -> HTTP, and tears everything down in reverse order.
func serve(ctx context.Context, migrate bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	loggerService := logger.NewLoggerService(cfg.Observability)
	defer loggerService.Shutdown()

	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	if migrate && cfg.NeedsDatabase() {
		if err := database.Migrate(ctx, &log, cfg); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}

	srv, err := server.New(ctx, cfg, &log, loggerService)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}
	defer func() {
		if cerr := srv.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("failed to close server resources")
		}
	}()

	repos, err := repository.NewRepositories(ctx, srv)
	if err != nil {
		return fmt.Errorf("binding adapters: %w", err)
	}
	defer func() {
		if cerr := repos.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("failed to release adapter bindings")
		}
	}()

	services, err := service.NewServices(srv, repos)
	if err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}

	handlers, err := handler.NewHandlers(srv, repos, services, metrics.New())
	if err != nil {
		return fmt.Errorf("initializing handlers: %w", err)
	}

	catalog, err := validation.NewCatalog()
	if err != nil {
		return fmt.Errorf("loading schemas: %w", err)
	}
	registry, err := router.BuildRegistry(catalog, handlers.Users)
	if err != nil {
		return fmt.Errorf("building route registry: %w", err)
	}

	r, err := router.NewRouter(srv, handlers, registry)
	if err != nil {
		return fmt.Errorf("initializing router: %w", err)
	}
	srv.SetupHTTPServer(r)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info().Msg("server exited properly")
	return nil
}
