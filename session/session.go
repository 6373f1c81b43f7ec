package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/room4-2/gemini-live/functions"
	"github.com/room4-2/gemini-live/gemini"
	"github.com/room4-2/gemini-live/media"
	"github.com/room4-2/gemini-live/messages"
	"github.com/room4-2/gemini-live/metrics"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
	readLimit       = 512 * 1024 // 512KB max message

	// streamChunkSize splits a flushed turn into realtimeInput frames of
	// 100ms of 16kHz mono PCM.
	streamChunkSize = 3200
)

// ClientSession bridges one browser websocket to one Live API session
type ClientSession struct {
	ID           string
	ClientConn   *websocket.Conn
	Gemini       *gemini.Session
	AudioBuffer  *AudioBuffer // Buffer for incoming audio chunks
	Tools        *functions.Executor
	CreatedAt    time.Time
	LastActivity time.Time

	logger *slog.Logger

	// Use channels for non-blocking writes
	writeChan chan *messages.ServerMessage

	mu        sync.RWMutex
	closed    bool
	CloseChan chan struct{}
	pumpDone  chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClientSession wires a browser connection to an unopened Live session
func NewClientSession(id string, clientConn *websocket.Conn, live *gemini.Session, registry *functions.Registry, maxBufferSize int, logger *slog.Logger) *ClientSession {
	ctx, cancel := context.WithCancel(context.Background())

	// Configure WebSocket for better performance
	clientConn.SetReadLimit(readLimit)
	clientConn.EnableWriteCompression(true)
	clientConn.SetCompressionLevel(6)

	now := time.Now()
	return &ClientSession{
		ID:           id,
		ClientConn:   clientConn,
		Gemini:       live,
		AudioBuffer:  NewAudioBuffer(maxBufferSize),
		Tools:        functions.NewExecutor(registry, live, logger.With("session", shortID(id))),
		CreatedAt:    now,
		LastActivity: now,
		logger:       logger.With("session", shortID(id)),
		writeChan:    make(chan *messages.ServerMessage, writeBufferSize),
		CloseChan:    make(chan struct{}),
		pumpDone:     make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start opens the Live session and begins relaying in both directions
func (cs *ClientSession) Start(ctx context.Context, endpoint gemini.Endpoint) error {
	go cs.writePump()
	cs.setupGeminiCallbacks()

	if err := cs.Gemini.Open(ctx, endpoint); err != nil {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeSessionFailed, err.Error()))
		cs.Close()
		return fmt.Errorf("failed to open Gemini session: %w", err)
	}

	cs.queueMessage(messages.NewStatusMessage(cs.ID, messages.StatusConnected, "Session established"))
	go cs.handleClientMessages()
	return nil
}

// setupGeminiCallbacks forwards Live API events to the browser
func (cs *ClientSession) setupGeminiCallbacks() {
	metrics.Observe(cs.Gemini)
	cs.Tools.Attach(cs.Gemini)

	gemini.Subscribe(cs.Gemini.Events(), func(e gemini.AudioEvent) {
		cs.queueMessage(messages.NewAudioMessage(cs.ID, e.MIMEType, base64.StdEncoding.EncodeToString(e.Data)))
	})

	gemini.Subscribe(cs.Gemini.Events(), func(e gemini.InlineDataEvent) {
		cs.queueMessage(messages.NewImageMessage(cs.ID, e.Blob.MIMEType, e.Blob.Data))
	})

	cs.Gemini.OnToolCall(func(call *gemini.ToolCall) {
		for _, fc := range call.FunctionCalls {
			cs.queueMessage(messages.NewToolCallMessage(cs.ID, fc.ID, fc.Name, fc.Args))
		}
	})

	cs.Gemini.OnText(func(text string) {
		cs.queueMessage(messages.NewTextMessage(cs.ID, text))
	})

	cs.Gemini.OnSetupComplete(func() {
		cs.logger.Info("✅ Gemini setup complete")
		cs.queueMessage(messages.NewStatusMessage(cs.ID, messages.StatusSetupComplete, ""))
	})

	cs.Gemini.OnInterrupted(func() {
		cs.queueMessage(messages.NewStatusMessage(cs.ID, messages.StatusInterrupted, ""))
	})

	cs.Gemini.OnTurnComplete(func() {
		cs.queueMessage(messages.NewStatusMessage(cs.ID, messages.StatusTurnComplete, ""))
	})

	cs.Gemini.OnError(func(err error) {
		cs.logger.Error("❌ Gemini error", "error", err)
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeGeminiError, err.Error()))
	})

	cs.Gemini.OnClose(func(err error) {
		if cs.IsClosed() {
			return
		}
		cs.logger.Info("🔌 Closing session, Gemini connection ended", "cause", err)
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeConnectionClosed, "Gemini connection closed"))
		// Close waits for the write pump, which may be blocked on this
		// handler's caller, so it runs on its own goroutine.
		go cs.Close()
	})
}

// writePump owns the browser conn for writing. It drains writeChan until
// Close closes it, sends the close frame and closes the conn.
func (cs *ClientSession) writePump() {
	defer close(cs.pumpDone)
	defer cs.ClientConn.Close()
	defer func() {
		cs.ClientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
		cs.ClientConn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}()

	for msg := range cs.writeChan {
		if err := cs.write(msg); err != nil {
			cs.logger.Debug("client write failed", "error", err)
			return
		}
	}
}

func (cs *ClientSession) write(msg *messages.ServerMessage) error {
	data, err := msg.Encode()
	if err != nil {
		cs.logger.Error("encode failed", "type", msg.Type, "error", err)
		return nil
	}
	cs.ClientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return cs.ClientConn.WriteMessage(websocket.TextMessage, data)
}

// queueMessage adds a message to the write queue (non-blocking)
func (cs *ClientSession) queueMessage(msg *messages.ServerMessage) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.closed {
		return
	}
	select {
	case cs.writeChan <- msg:
	default:
		cs.logger.Warn("⚠️ write queue full, dropping message")
	}
}

// Close terminates the session and cleans up resources
func (cs *ClientSession) Close() error {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return nil
	}
	cs.closed = true
	// Close the write channel under the lock so queueMessage never sends on it
	close(cs.writeChan)
	cs.mu.Unlock()

	cs.cancel()

	// Clear audio buffer
	cs.AudioBuffer.Clear()

	// Close Gemini connection, then stop any in-flight tool calls
	cs.Gemini.Close()
	cs.Tools.Close()

	// Let the pump flush queued notices before the conn goes away
	select {
	case <-cs.pumpDone:
	case <-time.After(2 * writeTimeout):
		cs.logger.Warn("⚠️ write pump did not drain, closing client conn")
		cs.ClientConn.Close()
	}

	// Signal close (for other goroutines waiting on this)
	close(cs.CloseChan)

	cs.logger.Info("👋 session closed")
	return nil
}

// IsClosed returns whether the session is closed
func (cs *ClientSession) IsClosed() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.closed
}

// Idle reports how long the browser has been silent
func (cs *ClientSession) Idle() time.Duration {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return time.Since(cs.LastActivity)
}

func (cs *ClientSession) touch() {
	cs.mu.Lock()
	cs.LastActivity = time.Now()
	cs.mu.Unlock()
}

func (cs *ClientSession) handleClientMessages() {
	defer cs.Close()

	for {
		messageType, message, err := cs.ClientConn.ReadMessage()
		if err != nil {
			if !cs.IsClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cs.logger.Warn("client read error", "error", err)
			}
			return
		}

		cs.touch()

		// Handle binary messages (raw PCM audio) - buffer until end_turn
		if messageType == websocket.BinaryMessage {
			cs.bufferAudio(message)
			continue
		}

		clientMsg, err := messages.ParseClientMessage(message)
		if err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid message format"))
			continue
		}

		cs.processClientMessage(clientMsg)
	}
}

func (cs *ClientSession) processClientMessage(msg *messages.ClientMessage) {
	switch msg.Type {
	case messages.ClientTypeAudio:
		var payload messages.AudioPayload
		if err := msg.DecodePayload(&payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid audio payload"))
			return
		}
		audioBytes, err := base64.StdEncoding.DecodeString(payload.Data)
		if err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid base64 audio data"))
			return
		}
		cs.bufferAudio(audioBytes)

	case messages.ClientTypeText:
		var payload messages.TextPayload
		if err := msg.DecodePayload(&payload); err != nil || payload.Text == "" {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid text payload"))
			return
		}
		turnComplete := payload.TurnComplete == nil || *payload.TurnComplete
		cs.forward("clientContent", cs.Gemini.SendTurns([]gemini.Content{gemini.UserText(payload.Text)}, turnComplete))

	case messages.ClientTypeImage:
		var payload messages.ImagePayload
		if err := msg.DecodePayload(&payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid image payload"))
			return
		}
		image, err := base64.StdEncoding.DecodeString(payload.Data)
		if err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid base64 image data"))
			return
		}
		mimeType := payload.MimeType
		if mimeType == "" {
			mimeType = gemini.ImageJPEGMIMEType
		}
		cs.forward("realtimeInput", cs.Gemini.StreamMediaChunk(mimeType, image))

	case messages.ClientTypeControl:
		var payload messages.ControlPayload
		if err := msg.DecodePayload(&payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid control payload"))
			return
		}
		cs.handleControlMessage(&payload)

	default:
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Unknown message type: "+msg.Type))
	}
}

func (cs *ClientSession) handleControlMessage(payload *messages.ControlPayload) {
	switch payload.Action {
	case messages.ActionPing:
		cs.queueMessage(messages.NewStatusMessage(cs.ID, messages.StatusPong, ""))
	case messages.ActionEndTurn:
		cs.handleEndTurn()
	case messages.ActionClear:
		cs.AudioBuffer.Clear()
	default:
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Unknown control action: "+payload.Action))
	}
}

func (cs *ClientSession) bufferAudio(chunk []byte) {
	if err := cs.AudioBuffer.Append(chunk); err != nil {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeBufferFull,
			fmt.Sprintf("Audio buffer full (max %d bytes)", cs.AudioBuffer.MaxSize())))
		return
	}
	cs.logger.Debug("🎤 buffered audio", "bytes", len(chunk), "total", cs.AudioBuffer.Size())
}

// handleEndTurn flushes the audio buffer to Gemini as consecutive chunks
func (cs *ClientSession) handleEndTurn() {
	audioData, appends := cs.AudioBuffer.Take()
	if audioData == nil {
		cs.logger.Warn("⚠️ end_turn received but buffer is empty, ignoring")
		return
	}
	cs.logger.Info("📤 sending buffered audio to Gemini",
		"bytes", len(audioData), "appends", appends, "duration", PCMDuration(len(audioData)))

	err := media.Pump(cs.ctx, bytes.NewReader(audioData), streamChunkSize, func(chunk []byte) error {
		err := cs.Gemini.StreamAudio(chunk)
		if err == nil {
			metrics.FramesSent.WithLabelValues("realtimeInput").Inc()
		}
		return err
	})
	if err != nil {
		cs.reportSendError(err)
	}
}

// forward records a sent frame or reports why it was refused
func (cs *ClientSession) forward(kind string, err error) {
	if err != nil {
		cs.reportSendError(err)
		return
	}
	metrics.FramesSent.WithLabelValues(kind).Inc()
}

func (cs *ClientSession) reportSendError(err error) {
	code := messages.ErrCodeGeminiError
	switch {
	case errors.Is(err, gemini.ErrSetupPending):
		code = messages.ErrCodeNotReady
	case errors.Is(err, gemini.ErrNotConnected):
		code = messages.ErrCodeConnectionClosed
	}
	cs.logger.Error("❌ failed to send to Gemini", "error", err)
	cs.queueMessage(messages.NewErrorMessage(cs.ID, code, err.Error()))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
