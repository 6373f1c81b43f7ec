package messages

// Error codes
const (
	ErrCodeInvalidMessage   = "INVALID_MESSAGE"
	ErrCodeGeminiError      = "GEMINI_ERROR"
	ErrCodeSessionFailed    = "SESSION_FAILED"
	ErrCodeConnectionClosed = "CONNECTION_CLOSED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeBufferFull       = "BUFFER_FULL"
	ErrCodeNotReady         = "NOT_READY"
)

// Message types sent to the browser
const (
	TypeAudio    = "audio"
	TypeText     = "text"
	TypeImage    = "image"
	TypeToolCall = "tool_call"
	TypeStatus   = "status"
	TypeError    = "error"
)

// Status values
const (
	StatusConnected     = "connected"
	StatusSetupComplete = "setup_complete"
	StatusTurnComplete  = "turn_complete"
	StatusInterrupted   = "interrupted"
	StatusPong          = "pong"
	StatusDisconnected  = "disconnected"
)

// ServerMessage is one relay frame for the browser
type ServerMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Payload   any    `json:"payload"`
}

// Encode marshals the message for a websocket text frame
func (m *ServerMessage) Encode() ([]byte, error) {
	return codec.Marshal(m)
}

// MediaPayload carries base64 model output, audio or inline images
type MediaPayload struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type TextResponsePayload struct {
	Text string `json:"text"`
}

// ToolCallPayload tells the browser a tool is running on its behalf
type ToolCallPayload struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type StatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newMessage(typ, sessionID string, payload any) *ServerMessage {
	return &ServerMessage{Type: typ, SessionID: sessionID, Payload: payload}
}

// NewAudioMessage wraps base64 PCM, normally audio/pcm;rate=24000
func NewAudioMessage(sessionID, mimeType, data string) *ServerMessage {
	return newMessage(TypeAudio, sessionID, MediaPayload{Data: data, MimeType: mimeType})
}

func NewImageMessage(sessionID, mimeType, data string) *ServerMessage {
	return newMessage(TypeImage, sessionID, MediaPayload{Data: data, MimeType: mimeType})
}

func NewTextMessage(sessionID, text string) *ServerMessage {
	return newMessage(TypeText, sessionID, TextResponsePayload{Text: text})
}

func NewToolCallMessage(sessionID, id, name string, args map[string]any) *ServerMessage {
	return newMessage(TypeToolCall, sessionID, ToolCallPayload{ID: id, Name: name, Args: args})
}

func NewStatusMessage(sessionID, status, message string) *ServerMessage {
	return newMessage(TypeStatus, sessionID, StatusPayload{Status: status, Message: message})
}

func NewErrorMessage(sessionID, code, message string) *ServerMessage {
	return newMessage(TypeError, sessionID, ErrorPayload{Code: code, Message: message})
}
