package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/hpn/hpn-co2-enricher/internal/domain"
	"github.com/hpn/hpn-co2-enricher/internal/handler"
	"github.com/hpn/hpn-co2-enricher/internal/store"
	"github.com/hpn/hpn-co2-enricher/internal/ui"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API used by the browser extension",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root)
		},
	}
}

func runServe(ctx context.Context, root *rootOptions) error {
	ui.PrintBanner(os.Stdout)

	// =========================================================================
	// 1. Configuration and logger
	// =========================================================================
	cfg, logger, err := root.load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("addr", cfg.Addr()),
		slog.Int("models", len(cfg.Gemini.Models)),
		slog.Int("server_keys", len(cfg.Gemini.APIKeys)),
	)

	// =========================================================================
	// 2. History and credential store
	// =========================================================================
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	storedKey, err := st.GeminiAPIKey(ctx)
	if err != nil {
		return err
	}

	// =========================================================================
	// 3. Enrichment pipeline
	// =========================================================================
	console := ui.NewConsole(os.Stdout)
	keyRing := domain.NewKeyRing(cfg.Gemini.APIKeys, cfg.Gemini.Cooldown)
	registry := newRegistry(cfg, logger, console)

	enrichHandler := handler.NewEnrichHandler(registry, st,
		handler.WithKeyRing(keyRing),
		handler.WithModels(cfg.Gemini.Models),
		handler.WithConsole(console),
		handler.WithLogger(logger),
	)

	// =========================================================================
	// 4. Router
	// =========================================================================
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(enrichHandler, handler.RouterConfig{
		Logger:      logger,
		Console:     console,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// =========================================================================
	// 5. HTTP server with graceful shutdown
	// =========================================================================
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	console.PrintStartupInfo(ui.StartupInfo{
		Addr:        cfg.Addr(),
		Models:      cfg.Gemini.Models,
		ServerKeys:  keyRing.Size(),
		StoredKey:   storedKey != "",
		StorePath:   cfg.Store.Path,
		MinInterval: cfg.Enrichment.MinRequestInterval,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	logger.Info("shutdown signal received")
	console.PrintShutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped gracefully")
	console.PrintGoodbye()
	return nil
}
