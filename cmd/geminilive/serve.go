package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/room4-2/gemini-live/server"
	"github.com/room4-2/gemini-live/session"
)

// serveCmd runs the browser relay
func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket relay for browser clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != 0 {
				cfg.Port = port
			}

			sessionManager, err := session.NewManager(cfg, session.WithLogger(logger))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go sessionManager.StartCleanupRoutine(ctx)

			srv := server.NewServerWebsocket(cfg, sessionManager, logger)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigChan
				logger.Info("Received shutdown signal...")
				cancel()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("Server shutdown error", "error", err)
				}
			}()

			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("Server stopped")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides PORT)")
	return cmd
}
