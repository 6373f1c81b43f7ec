package gemini

import (
	"fmt"
	"log/slog"
	"sync"
)

// EventType enumerates everything a Session publishes.
type EventType int

const (
	EventError EventType = iota
	EventOpen
	EventClose
	EventResponse
	EventSetupComplete
	EventServerContent
	EventToolCall
	EventToolCallCancellation
	EventText
	EventAudio
	EventInlineData
	EventInterrupted
	EventTurnComplete
	EventUnrecognized
)

var eventNames = [...]string{
	EventError:                "error",
	EventOpen:                 "open",
	EventClose:                "close",
	EventResponse:             "response",
	EventSetupComplete:        "setupComplete",
	EventServerContent:        "serverContent",
	EventToolCall:             "toolCall",
	EventToolCallCancellation: "toolCallCancellation",
	EventText:                 "text",
	EventAudio:                "audio",
	EventInlineData:           "inlineData",
	EventInterrupted:          "interrupted",
	EventTurnComplete:         "turnComplete",
	EventUnrecognized:         "unrecognized",
}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventNames) {
		return fmt.Sprintf("EventType(%d)", int(t))
	}
	return eventNames[t]
}

// Event is implemented by the value types below.
type Event interface {
	Type() EventType
}

// ErrorEvent reports a transport fault (wrapping ErrTransport) or a
// malformed inbound frame (wrapping ErrMalformedFrame).
type ErrorEvent struct{ Err error }

// OpenEvent fires once the socket is connected and setup has been sent.
type OpenEvent struct{}

// CloseEvent fires exactly once when the socket closes for any reason.
type CloseEvent struct{ Err error }

// ResponseEvent carries every parsed inbound frame before it is fanned out.
type ResponseEvent struct {
	Frame Frame
	Raw   []byte
}

type SetupCompleteEvent struct{}

type ServerContentEvent struct{ Content *ServerContent }

type ToolCallEvent struct{ Call *ToolCall }

type ToolCallCancellationEvent struct{ Cancellation *ToolCallCancellation }

// TextEvent is one text fragment of a model turn.
type TextEvent struct{ Text string }

// AudioEvent is one decoded audio fragment of a model turn.
type AudioEvent struct {
	MIMEType string
	Data     []byte
}

// InlineDataEvent carries inline data that is not audio, still encoded.
type InlineDataEvent struct{ Blob Blob }

type InterruptedEvent struct{}

type TurnCompleteEvent struct{}

// UnrecognizedEvent carries a frame that matched none of the known shapes.
type UnrecognizedEvent struct {
	Raw []byte
	Err error
}

func (ErrorEvent) Type() EventType                { return EventError }
func (OpenEvent) Type() EventType                 { return EventOpen }
func (CloseEvent) Type() EventType                { return EventClose }
func (ResponseEvent) Type() EventType             { return EventResponse }
func (SetupCompleteEvent) Type() EventType        { return EventSetupComplete }
func (ServerContentEvent) Type() EventType        { return EventServerContent }
func (ToolCallEvent) Type() EventType             { return EventToolCall }
func (ToolCallCancellationEvent) Type() EventType { return EventToolCallCancellation }
func (TextEvent) Type() EventType                 { return EventText }
func (AudioEvent) Type() EventType                { return EventAudio }
func (InlineDataEvent) Type() EventType           { return EventInlineData }
func (InterruptedEvent) Type() EventType          { return EventInterrupted }
func (TurnCompleteEvent) Type() EventType         { return EventTurnComplete }
func (UnrecognizedEvent) Type() EventType         { return EventUnrecognized }

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Emitter is a synchronous fan-out registry. Handlers for one event type
// run in registration order on the emitting goroutine; a panicking
// handler is logged and does not stop delivery to the rest.
type Emitter struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[EventType][]subscription
	logger   *slog.Logger
}

// NewEmitter returns an empty emitter. A nil logger uses slog.Default().
func NewEmitter(logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		handlers: make(map[EventType][]subscription),
		logger:   logger,
	}
}

// On registers h for events of type t and returns a func that removes it.
func (e *Emitter) On(t EventType, h Handler) (off func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.handlers[t] = append(e.handlers[t], subscription{id: id, handler: h})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		subs := e.handlers[t]
		for i, s := range subs {
			if s.id == id {
				e.handlers[t] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers ev to every handler registered for its type.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	subs := e.handlers[ev.Type()]
	e.mu.Unlock()

	for _, s := range subs {
		e.invoke(s.handler, ev)
	}
}

func (e *Emitter) invoke(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("gemini: event handler panicked", "event", ev.Type().String(), "panic", r)
		}
	}()
	h(ev)
}

// Subscribe registers a handler typed on the concrete event value.
func Subscribe[E Event](e *Emitter, fn func(E)) (off func()) {
	var zero E
	return e.On(zero.Type(), func(ev Event) {
		if typed, ok := ev.(E); ok {
			fn(typed)
		}
	})
}
