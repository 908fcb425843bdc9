package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessellate-ai/contextd/internal/adapters/driving/httpapi"
	"github.com/tessellate-ai/contextd/internal/adapters/sources/fixture"
	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serves retrieval and ingestion over HTTP. Clients authenticate with
POST /api/token and query context with POST /api/context.

Requires auth.principals_file and auth.secret in the config.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides http.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	if err := initServices(); err != nil {
		return err
	}
	if authProvider == nil {
		return errors.New("serve requires auth.principals_file in the config")
	}
	if tokenIssuer == nil {
		return errors.New("serve requires auth.secret in the config")
	}

	addr := cfg.HTTP.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	server := httpapi.New(httpapi.Config{
		Addr:           addr,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		TokenTTL:       cfg.Auth.TokenTTL,
	}, contextService, ingestService, authProvider, tokenIssuer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Ingestion.Watch {
		if err := startWatcher(ctx); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// startWatcher re-syncs a source whenever its fixture files change.
func startWatcher(ctx context.Context) error {
	if len(fixtureAdapters) == 0 {
		return nil
	}

	watcher, err := fixture.NewWatcher(fixtureAdapters, func(source domain.SourceID) {
		logger.Info("Fixture change detected for %s, reindexing", source)
		if _, err := ingestService.Reindex(ctx, source, false); err != nil {
			logger.Error("Reindex %s after change: %v", source, err)
		}
	})
	if err != nil {
		return fmt.Errorf("starting fixture watcher: %w", err)
	}

	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Fixture watcher stopped: %v", err)
		}
	}()
	return nil
}
