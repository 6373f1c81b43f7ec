package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/room4-2/gemini-live/functions"
	"github.com/room4-2/gemini-live/gemini"
	"github.com/room4-2/gemini-live/media"
)

// micChunkSize is 100ms of 16kHz 16-bit mono audio
const micChunkSize = 3200

// chatCmd runs a voice conversation with microphone and screen input
func chatCmd() *cobra.Command {
	var (
		greeting string
		noMic    bool
		noScreen bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Voice chat with Gemini",
		Long: `Open a Live session, greet the model, then stream the microphone
(sox "rec") and periodic screen captures while playing replies through
sox "play". Text replies are printed as they arrive. Press Ctrl+C to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			registry := functions.Default()
			live := gemini.NewSession(cfg.LiveConfig("", registry.Tools()), gemini.WithLogger(logger))

			tools := functions.NewExecutor(registry, live, logger)
			tools.Attach(live)
			defer tools.Close()

			player, err := media.NewPlayer(ctx)
			if err != nil {
				return fmt.Errorf("audio playback needs sox: %w", err)
			}
			defer player.Close()

			live.OnText(func(text string) { fmt.Print(text) })
			live.OnTurnComplete(func() { fmt.Println() })
			live.OnAudio(func(data []byte) {
				if err := player.Play(data); err != nil && !errors.Is(err, media.ErrClosed) {
					logger.Warn("playback failed", "error", err)
				}
			})
			live.OnInterrupted(func() { logger.Debug("model interrupted") })

			var closeErr error
			live.OnClose(func(err error) {
				closeErr = err
				fmt.Println("Disconnected")
				stop()
			})

			live.OnSetupComplete(func() {
				logger.Info("Setup complete")
				if greeting != "" {
					if err := live.SendText(greeting); err != nil {
						logger.Error("failed to send greeting", "error", err)
					}
				}
				if !noMic {
					go streamMicrophone(ctx, live)
				}
				if !noScreen && cfg.ScreenInterval > 0 {
					go streamScreen(ctx, live)
				}
			})

			if err := live.Open(ctx, cfg.Endpoint()); err != nil {
				return err
			}

			<-ctx.Done()
			live.Close()
			<-live.Done()
			return closeErr
		},
	}

	cmd.Flags().StringVar(&greeting, "greeting", "Hello", "first user turn sent after setup (empty to stay silent)")
	cmd.Flags().BoolVar(&noMic, "no-mic", false, "do not record the microphone")
	cmd.Flags().BoolVar(&noScreen, "no-screen", false, "do not capture the screen")
	return cmd
}

func streamMicrophone(ctx context.Context, live *gemini.Session) {
	rec, err := media.NewRecorder(ctx)
	if err != nil {
		logger.Error("microphone unavailable", "error", err)
		return
	}
	defer rec.Close()

	if err := media.Pump(ctx, rec.Reader(), micChunkSize, live.StreamAudio); err != nil && ctx.Err() == nil {
		logger.Error("microphone stream stopped", "error", err)
	}
}

func streamScreen(ctx context.Context, live *gemini.Session) {
	screen := &media.Screenshotter{Interval: cfg.ScreenInterval, Logger: logger}
	if err := screen.Run(ctx, live.StreamImage); err != nil && ctx.Err() == nil {
		logger.Error("screen stream stopped", "error", err)
	}
}
