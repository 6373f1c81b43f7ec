package gemini

import (
	"fmt"
)

// FrameKind discriminates inbound frames.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameSetupComplete
	FrameServerContent
	FrameToolCall
	FrameToolCallCancellation
)

func (k FrameKind) String() string {
	switch k {
	case FrameSetupComplete:
		return "setupComplete"
	case FrameServerContent:
		return "serverContent"
	case FrameToolCall:
		return "toolCall"
	case FrameToolCallCancellation:
		return "toolCallCancellation"
	default:
		return "unknown"
	}
}

// Frame is an inbound frame. The set of implementations is closed:
// *SetupComplete, *ServerContent, *ToolCall, *ToolCallCancellation and
// *UnknownFrame.
type Frame interface {
	Kind() FrameKind
	frame()
}

// SetupComplete acknowledges the setup frame.
type SetupComplete struct{}

// ServerContent carries a (possibly partial) model turn.
type ServerContent struct {
	ModelTurn    *Content `json:"modelTurn,omitempty"`
	Interrupted  bool     `json:"interrupted,omitempty"`
	TurnComplete bool     `json:"turnComplete,omitempty"`
}

// Parts returns the model turn parts, nil when there is no model turn.
func (c *ServerContent) Parts() []Part {
	if c.ModelTurn == nil {
		return nil
	}
	return c.ModelTurn.Parts
}

// ToolCall asks the client to run functions.
type ToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls"`
}

// ToolCallCancellation voids previously issued call ids.
type ToolCallCancellation struct {
	IDs []string `json:"ids"`
}

// UnknownFrame is any well formed JSON that is not exactly one of the
// known shapes. Err is set when a known key carried an undecodable payload.
type UnknownFrame struct {
	Raw []byte
	Err error
}

func (*SetupComplete) Kind() FrameKind        { return FrameSetupComplete }
func (*ServerContent) Kind() FrameKind        { return FrameServerContent }
func (*ToolCall) Kind() FrameKind             { return FrameToolCall }
func (*ToolCallCancellation) Kind() FrameKind { return FrameToolCallCancellation }
func (*UnknownFrame) Kind() FrameKind         { return FrameUnknown }

func (*SetupComplete) frame()        {}
func (*ServerContent) frame()        {}
func (*ToolCall) frame()             {}
func (*ToolCallCancellation) frame() {}
func (*UnknownFrame) frame()         {}

// serverMessage is the decode target once the discriminator is known.
type serverMessage struct {
	SetupComplete        *SetupComplete        `json:"setupComplete"`
	ServerContent        *ServerContent        `json:"serverContent"`
	ToolCall             *ToolCall             `json:"toolCall"`
	ToolCallCancellation *ToolCallCancellation `json:"toolCallCancellation"`
}

// discriminators are checked in priority order.
var discriminators = [...]struct {
	key  string
	kind FrameKind
}{
	{"setupComplete", FrameSetupComplete},
	{"serverContent", FrameServerContent},
	{"toolCall", FrameToolCall},
	{"toolCallCancellation", FrameToolCallCancellation},
}

// Classify decodes one inbound frame. It only returns an error, wrapping
// ErrMalformedFrame, when data is not JSON. Anything that parses but does
// not carry exactly one discriminator key becomes an *UnknownFrame.
func Classify(data []byte) (Frame, error) {
	var top any
	if err := codec.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	obj, ok := top.(map[string]any)
	if !ok {
		return &UnknownFrame{Raw: data}, nil
	}

	kind := FrameUnknown
	for _, d := range discriminators {
		if _, present := obj[d.key]; !present {
			continue
		}
		if kind != FrameUnknown {
			return &UnknownFrame{Raw: data}, nil
		}
		kind = d.kind
	}
	if kind == FrameUnknown {
		return &UnknownFrame{Raw: data}, nil
	}

	var msg serverMessage
	if err := codec.Unmarshal(data, &msg); err != nil {
		return &UnknownFrame{Raw: data, Err: fmt.Errorf("decode %s: %w", kind, err)}, nil
	}

	switch kind {
	case FrameSetupComplete:
		if msg.SetupComplete == nil {
			return &SetupComplete{}, nil
		}
		return msg.SetupComplete, nil
	case FrameServerContent:
		if msg.ServerContent == nil {
			return &ServerContent{}, nil
		}
		return msg.ServerContent, nil
	case FrameToolCall:
		if msg.ToolCall == nil {
			return &ToolCall{}, nil
		}
		return msg.ToolCall, nil
	default:
		if msg.ToolCallCancellation == nil {
			return &ToolCallCancellation{}, nil
		}
		return msg.ToolCallCancellation, nil
	}
}
