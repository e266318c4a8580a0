package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/smartattend/swcache/pkg/config"
	"github.com/smartattend/swcache/pkg/host"
	"github.com/smartattend/swcache/pkg/route"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(cfgPath *string) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Install the current version and start the caching proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			loader, cfg, err := loadConfig(ctx, *cfgPath)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Listen.Port = port
			}
			return serve(ctx, loader, cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides listen.port)")
	return cmd
}

func serve(ctx context.Context, loader *config.Loader, cfg config.Config) error {
	built, err := host.Build(cfg, host.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := built.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to release resources")
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		built.Runtime.Wait()
	}()

	if loader.Path() != "" {
		router := built.Runtime.Router()
		watcher, err := loader.Watch(runCtx, func(next config.Config) {
			router.SetPolicy(route.NewPolicy(next.RouteTables()))
			log.Info().Msg("Route tables reloaded")
		}, func(err error) {
			log.Warn().Err(err).Msg("Config reload failed")
		})
		if err != nil {
			log.Warn().Err(err).Msg("Config watching disabled")
		} else {
			defer watcher.Stop()
		}
	}

	log.Info().
		Str("version", cfg.Version).
		Str("upstream", cfg.Upstream).
		Msg("Installing")
	if err := built.Runtime.Start(runCtx); err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           built.Proxy,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Starting caching proxy")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return server.Shutdown(shutdownCtx)
}
