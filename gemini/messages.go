package gemini

import (
	"encoding/base64"
	"fmt"

	"github.com/bytedance/sonic"
	"google.golang.org/genai"
)

// codec is shared by every frame encode/decode. ConfigStd keeps
// encoding/json semantics (sorted map keys, HTML escaping).
var codec = sonic.ConfigStd

// Roles used in client turns.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Mime types the collaborators stream.
const (
	AudioInputMIMEType  = "audio/pcm;rate=16000"
	AudioOutputMIMEType = "audio/pcm;rate=24000"
	ImageJPEGMIMEType   = "image/jpeg"
)

// Config is the session configuration sent once inside the setup frame.
type Config struct {
	Model             string            `json:"model"`
	SystemInstruction *genai.Content    `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	Tools             []*genai.Tool     `json:"tools,omitempty"`
}

// GenerationConfig holds the optional sampling and response parameters.
type GenerationConfig struct {
	CandidateCount     *int32              `json:"candidateCount,omitempty"`
	MaxOutputTokens    *int32              `json:"maxOutputTokens,omitempty"`
	Temperature        *float32            `json:"temperature,omitempty"`
	TopP               *float32            `json:"topP,omitempty"`
	TopK               *int32              `json:"topK,omitempty"`
	PresencePenalty    *float32            `json:"presencePenalty,omitempty"`
	FrequencyPenalty   *float32            `json:"frequencyPenalty,omitempty"`
	ResponseModalities []genai.Modality    `json:"responseModalities,omitempty"`
	SpeechConfig       *genai.SpeechConfig `json:"speechConfig,omitempty"`
}

// SystemInstruction wraps text into the content shape the setup expects.
func SystemInstruction(text string) *genai.Content {
	return &genai.Content{Parts: []*genai.Part{{Text: text}}}
}

// VoiceConfig selects a prebuilt voice (Puck, Charon, Kore, Fenrir, Aoede...).
func VoiceConfig(voiceName string) *genai.SpeechConfig {
	return &genai.SpeechConfig{
		VoiceConfig: &genai.VoiceConfig{
			PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voiceName},
		},
	}
}

// PartKind discriminates a Part by which single key is present.
type PartKind int

const (
	PartUnknown PartKind = iota
	PartText
	PartInlineData
	PartFunctionCall
	PartFunctionResponse
)

func (k PartKind) String() string {
	switch k {
	case PartText:
		return "text"
	case PartInlineData:
		return "inlineData"
	case PartFunctionCall:
		return "functionCall"
	case PartFunctionResponse:
		return "functionResponse"
	default:
		return "unknown"
	}
}

// Part is one element of a turn. Exactly one field is expected to be set;
// Text is a pointer so that an empty string still counts as present.
type Part struct {
	Text             *string           `json:"text,omitempty"`
	InlineData       *Blob             `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// Kind reports the part variant, PartUnknown when zero or several keys
// are present.
func (p Part) Kind() PartKind {
	kind := PartUnknown
	set := 0
	if p.Text != nil {
		kind = PartText
		set++
	}
	if p.InlineData != nil {
		kind = PartInlineData
		set++
	}
	if p.FunctionCall != nil {
		kind = PartFunctionCall
		set++
	}
	if p.FunctionResponse != nil {
		kind = PartFunctionResponse
		set++
	}
	if set != 1 {
		return PartUnknown
	}
	return kind
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Text: &text}
}

// Blob is inline data; Data stays base64 encoded as on the wire.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// NewBlob base64 encodes data.
func NewBlob(mimeType string, data []byte) Blob {
	return Blob{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}
}

// Decode returns the raw bytes carried by the blob.
func (b Blob) Decode() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(b.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: inline data (%s): %v", ErrMalformedFrame, b.MIMEType, err)
	}
	return data, nil
}

// FunctionCall is a remote request to run a named function.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse answers a FunctionCall.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// Content is a role attributed, ordered set of parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// UserText builds a single text turn from the user.
func UserText(text string) Content {
	return Content{Role: RoleUser, Parts: []Part{TextPart(text)}}
}

// ClientMessage is an outbound frame. Exactly one field is set.
type ClientMessage struct {
	Setup         *Config        `json:"setup,omitempty"`
	ClientContent *ClientContent `json:"clientContent,omitempty"`
	RealtimeInput *RealtimeInput `json:"realtimeInput,omitempty"`
	ToolResponse  *ToolResponse  `json:"toolResponse,omitempty"`
}

// ClientContent carries conversation turns.
type ClientContent struct {
	Turns        []Content `json:"turns"`
	TurnComplete bool      `json:"turnComplete"`
}

// RealtimeInput carries streamed media chunks.
type RealtimeInput struct {
	MediaChunks []Blob `json:"mediaChunks"`
}

// ToolResponse answers one or more tool calls.
type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses"`
}

// Encode serializes the frame.
func (m *ClientMessage) Encode() ([]byte, error) {
	data, err := codec.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode client message: %w", err)
	}
	return data, nil
}

// kind names the set field, used for logs and metrics.
func (m *ClientMessage) kind() string {
	switch {
	case m.Setup != nil:
		return "setup"
	case m.ClientContent != nil:
		return "clientContent"
	case m.RealtimeInput != nil:
		return "realtimeInput"
	case m.ToolResponse != nil:
		return "toolResponse"
	default:
		return "empty"
	}
}
