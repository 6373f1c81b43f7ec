package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/room4-2/gemini-live/config"
	"github.com/room4-2/gemini-live/logging"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "geminilive",
		Short: "Talk to Gemini over the Live API",
		Long: `geminilive streams microphone audio and screen captures to the Gemini
Live API and plays the spoken replies. It can also run a websocket relay
so browsers can reach the Live API without holding the API key.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger = logging.New(os.Stderr, cfg.LogLevel)
			slog.SetDefault(logger)
			return nil
		},
	}

	rootCmd.AddCommand(
		chatCmd(),
		askCmd(),
		serveCmd(),
		configCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
