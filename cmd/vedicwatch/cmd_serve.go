package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/vedicwatch/internal/application"
	"github.com/sawpanic/vedicwatch/internal/config"
	vhttp "github.com/sawpanic/vedicwatch/internal/interfaces/http"
)

func (a *app) serveCmd() *cobra.Command {
	var host string
	var port int
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API, snapshot stream and metrics",
		Long:  "Start the read-only HTTP API with /health, /metrics, /v1/* endpoints and the /v1/stream websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := vhttp.ServerConfigFrom(a.cfg)
			sc.Host = host
			if cmd.Flags().Changed("port") {
				sc.Port = port
			}
			sc.Version = version
			return a.runServe(cmd.Context(), cmd.Flags(), sc, watch)
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Listen host")
	cmd.Flags().IntVar(&port, "port", 8080, "Listen port, overrides config")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload observer, scan and dasha settings when the config file changes")
	return cmd
}

func (a *app) runServe(ctx context.Context, fs *pflag.FlagSet, sc vhttp.ServerConfig, watch bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watch {
		w, err := config.NewWatcher(a.flags.configPath, a.reloader(fs))
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()
	}

	server := vhttp.NewServer(sc, a.svc, a.metrics)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	if err := <-errCh; err != nil {
		return err
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}

// reloader applies a reloaded config to the running service. The command
// line observer flags keep precedence over the file.
func (a *app) reloader(fs *pflag.FlagSet) func(*config.Config) {
	return func(cfg *config.Config) {
		if err := applyObserverFlags(cfg, fs, a.flags); err != nil {
			log.Warn().Err(err).Msg("Reloaded config rejected")
			return
		}
		settings, err := application.SettingsFromConfig(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Reloaded config rejected")
			return
		}
		a.svc.UpdateSettings(settings)
	}
}
