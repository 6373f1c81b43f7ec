package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/room4-2/gemini-live/logging"
	"github.com/room4-2/gemini-live/media"
	"github.com/room4-2/gemini-live/messages"
)

// chunkSize is 100ms at 16kHz
const chunkSize = 3200

type serverMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

func main() {
	var (
		serverURL string
		audioFile string
		text      string
		wait      time.Duration
		level     string
	)

	cmd := &cobra.Command{
		Use:          "relay-client",
		Short:        "Stream a PCM file (or a text prompt) through the relay and play the reply",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(os.Stderr, level)
			return run(logger, serverURL, audioFile, text, wait)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "ws://localhost:8080/ws", "relay websocket URL")
	cmd.Flags().StringVar(&audioFile, "file", "examples/user.pcm", "16kHz mono PCM or WAV file to send")
	cmd.Flags().StringVar(&text, "text", "", "send a text turn instead of audio")
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "how long to wait for the reply")
	cmd.Flags().StringVar(&level, "log-level", "info", "log level")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(logger *slog.Logger, serverURL, audioFile, text string, wait time.Duration) error {
	logger.Info("🔌 Connecting", "url", serverURL)

	conn, _, err := websocket.DefaultDialer.Dial(serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	player, err := media.NewPlayer(context.Background())
	if err != nil {
		return fmt.Errorf("failed to create audio player (is sox installed?): %w", err)
	}
	defer player.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	ready := make(chan struct{})
	turnDone := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		readySeen := false
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				logger.Info("Read ended", "error", err)
				return
			}

			var msg serverMessage
			if err := sonic.Unmarshal(data, &msg); err != nil {
				logger.Warn("Parse error", "error", err)
				continue
			}

			switch msg.Type {
			case messages.TypeAudio:
				var payload messages.MediaPayload
				if err := sonic.Unmarshal(msg.Payload, &payload); err != nil {
					continue
				}
				audio, err := base64.StdEncoding.DecodeString(payload.Data)
				if err == nil {
					logger.Debug("🔊 Playing audio", "bytes", len(audio))
					player.Play(audio)
				}

			case messages.TypeText:
				var payload messages.TextResponsePayload
				sonic.Unmarshal(msg.Payload, &payload)
				fmt.Print(payload.Text)

			case messages.TypeStatus:
				var payload messages.StatusPayload
				sonic.Unmarshal(msg.Payload, &payload)
				logger.Info("📊 Status", "status", payload.Status, "message", payload.Message)
				switch payload.Status {
				case messages.StatusSetupComplete:
					if !readySeen {
						readySeen = true
						close(ready)
					}
				case messages.StatusTurnComplete:
					fmt.Println()
					select {
					case turnDone <- struct{}{}:
					default:
					}
				}

			case messages.TypeError:
				logger.Error("❌ Relay error", "payload", string(msg.Payload))
			}
		}
	}()

	select {
	case <-ready:
	case <-done:
		return fmt.Errorf("relay closed before setup completed")
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timed out waiting for setup")
	}

	if text != "" {
		err = conn.WriteJSON(map[string]any{
			"type":    messages.ClientTypeText,
			"payload": messages.TextPayload{Text: text},
		})
		if err != nil {
			return fmt.Errorf("send text: %w", err)
		}
	} else if err := sendAudio(logger, conn, audioFile); err != nil {
		return err
	}

	logger.Info("✅ Sent, waiting for response...")

	select {
	case <-turnDone:
	case <-done:
		logger.Info("Connection closed")
	case <-interrupt:
		logger.Info("👋 Interrupted, closing...")
	case <-time.After(wait):
		logger.Warn("⏰ Timeout waiting for response")
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

// sendAudio streams the file as binary frames at real-time pace, then ends the turn
func sendAudio(logger *slog.Logger, conn *websocket.Conn, path string) error {
	audioData, err := loadAudioFile(logger, path)
	if err != nil {
		return fmt.Errorf("failed to load audio: %w", err)
	}

	total := (len(audioData) + chunkSize - 1) / chunkSize
	for i := 0; i < len(audioData); i += chunkSize {
		end := min(i+chunkSize, len(audioData))
		if err := conn.WriteMessage(websocket.BinaryMessage, audioData[i:end]); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}
		logger.Debug("📤 Sent chunk", "n", i/chunkSize+1, "of", total, "bytes", end-i)

		// Simulate real-time streaming pace
		time.Sleep(100 * time.Millisecond)
	}

	return conn.WriteJSON(map[string]any{
		"type":    messages.ClientTypeControl,
		"payload": messages.ControlPayload{Action: messages.ActionEndTurn},
	})
}

// loadAudioFile loads PCM or WAV file and returns raw PCM bytes
func loadAudioFile(logger *slog.Logger, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Check if it's a WAV file (starts with "RIFF")
	if len(data) > 44 && string(data[0:4]) == "RIFF" {
		// Skip WAV header (44 bytes for standard WAV)
		logger.Info("📁 Detected WAV file, skipping header")
		return data[44:], nil
	}

	logger.Info("📁 Detected raw PCM file")
	return data, nil
}
