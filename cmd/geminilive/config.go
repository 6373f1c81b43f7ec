package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/room4-2/gemini-live/gemini"
)

// configCmd shows the effective configuration
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Live API:")
			fmt.Printf("  Host:        %s\n", valueOr(cfg.Host, gemini.DefaultHost))
			fmt.Printf("  Path:        %s\n", valueOr(cfg.Path, gemini.DefaultPath))
			fmt.Printf("  API Key:     %s\n", maskSecret(cfg.GeminiAPIKey))
			fmt.Printf("  Model:       %s\n", cfg.Model)
			fmt.Printf("  Voice:       %s\n", cfg.Voice)
			fmt.Printf("  Modalities:  %s\n", strings.Join(cfg.ResponseModalities, ", "))
			if cfg.Temperature != nil {
				fmt.Printf("  Temperature: %.2f\n", *cfg.Temperature)
			}
			fmt.Printf("  Audio in:    %s\n", gemini.AudioInputMIMEType)
			fmt.Println()

			fmt.Println("Relay:")
			fmt.Printf("  Port:            %d\n", cfg.Port)
			fmt.Printf("  Redis:           %s\n", valueOr(cfg.RedisURL, "disabled"))
			fmt.Printf("  Max sessions:    %d\n", cfg.MaxSessions)
			fmt.Printf("  Session timeout: %s\n", cfg.SessionTimeout)
			fmt.Printf("  Allowed origins: %s\n", strings.Join(cfg.AllowedOrigins, ", "))
			fmt.Println()

			fmt.Println("CLI:")
			fmt.Printf("  Screen interval: %s\n", cfg.ScreenInterval)
			fmt.Printf("  Log level:       %s\n", cfg.LogLevel)
			return nil
		},
	}
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
