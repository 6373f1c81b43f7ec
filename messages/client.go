package messages

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// Client message types
const (
	ClientTypeAudio   = "audio"
	ClientTypeText    = "text"
	ClientTypeImage   = "image"
	ClientTypeControl = "control"
)

// Control actions
const (
	ActionPing    = "ping"
	ActionEndTurn = "end_turn"
	ActionClear   = "clear"
)

var codec = sonic.ConfigStd

// ClientMessage represents a message from frontend client
type ClientMessage struct {
	Type    string          `json:"type"` // "audio", "text", "image", "control"
	Payload json.RawMessage `json:"payload"`
}

// AudioPayload contains audio data from client
type AudioPayload struct {
	Data string `json:"data"` // Base64-encoded 16kHz PCM audio
}

// TextPayload carries one user text turn
type TextPayload struct {
	Text         string `json:"text"`
	TurnComplete *bool  `json:"turnComplete,omitempty"` // defaults to true
}

// ImagePayload carries one JPEG frame
type ImagePayload struct {
	Data     string `json:"data"`               // Base64-encoded image
	MimeType string `json:"mimeType,omitempty"` // defaults to image/jpeg
}

// ControlPayload contains control commands
type ControlPayload struct {
	Action string `json:"action"` // "ping", "end_turn", "clear"
}

// ParseClientMessage decodes a JSON envelope from the browser
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := codec.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid client message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("invalid client message: missing type")
	}
	return &msg, nil
}

// DecodePayload unmarshals the payload into v
func (m *ClientMessage) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	if err := codec.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", m.Type, err)
	}
	return nil
}
