package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	handler "tilespace-backend/api"
	"tilespace-backend/pkg/database"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API locally",
	Long:  `Serve mounts the same router as the serverless handler and shuts down gracefully on SIGINT/SIGTERM.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if cfg.UsesDefaultSecret() {
			logger.Warn().Msg("JWT_SECRET is not set, using the development default")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		db, err := database.GetDatabase(handler.DatabaseConfig(cfg))
		if err != nil {
			return err
		}
		defer db.Close()

		addr := serveAddr
		if addr == "" {
			addr = ":" + cfg.Port
		}
		srv := &http.Server{
			Addr: addr,
			Handler: handler.NewRouter(handler.Dependencies{
				Config:      cfg,
				DB:          db,
				Logger:      logger,
				RateLimiter: handler.NewRateLimiter(ctx, cfg, logger),
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", addr).Str("environment", cfg.Environment).Msg("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to :$PORT)")
}
