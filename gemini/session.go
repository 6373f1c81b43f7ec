package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// State is the session lifecycle position.
type State int32

const (
	StateConnecting State = iota
	StateAwaitingSetup
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingSetup:
		return "awaiting_setup"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Option configures a Session.
type Option func(*Session)

// WithDialer replaces the default gorilla/websocket dialer.
func WithDialer(d Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithRequireSetup makes outbound sends fail with ErrSetupPending until the
// remote acknowledges setup. Nothing is queued.
func WithRequireSetup() Option {
	return func(s *Session) { s.requireSetup = true }
}

// Session owns one connection to the Live API. Inbound frames are
// classified and dispatched on a single read goroutine in arrival order;
// outbound sends may be called from any goroutine.
//
// Sends are accepted as soon as the setup frame is on the wire. The remote
// rejects content that arrives before it has processed setup, so callers
// normally wait for SetupCompleteEvent (or Ready()) before sending.
type Session struct {
	config       Config
	dialer       Dialer
	logger       *slog.Logger
	emitter      *Emitter
	requireSetup bool

	mu        sync.Mutex
	state     State
	transport Transport
	opened    bool

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession prepares a session. Register handlers, then call Open.
func NewSession(cfg Config, opts ...Option) *Session {
	s := &Session{
		config: cfg,
		dialer: WebsocketDialer{},
		logger: slog.Default(),
		state:  StateConnecting,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.emitter = NewEmitter(s.logger)
	return s
}

// Open dials the endpoint and sends the setup frame. The session then
// awaits setupComplete; Open does not wait for it.
func (s *Session) Open(ctx context.Context, endpoint Endpoint) error {
	if endpoint.APIKey == "" {
		return ErrMissingAPIKey
	}

	s.mu.Lock()
	if s.opened || s.state == StateClosed {
		s.mu.Unlock()
		return fmt.Errorf("gemini: session cannot be reopened (state %s)", s.state)
	}
	s.opened = true
	s.mu.Unlock()

	setup, err := (&ClientMessage{Setup: &s.config}).Encode()
	if err != nil {
		s.finish(err)
		return err
	}

	s.logger.Debug("gemini: dialing", "host", endpoint.Host, "model", s.config.Model)
	t, err := s.dialer.Dial(ctx, endpoint.URL())
	if err != nil {
		s.logger.Error("gemini: connect failed", "error", err)
		if !errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%w: %v", ErrTransport, err)
		}
		s.emitter.Emit(ErrorEvent{Err: err})
		s.finish(err)
		return err
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		t.Close()
		return ErrNotConnected
	}
	s.transport = t
	s.mu.Unlock()

	// Sends still see Connecting here, so setup is always the first frame.
	if err := t.WriteMessage(setup); err != nil {
		if s.State() == StateClosed {
			return ErrNotConnected
		}
		err = fmt.Errorf("%w: send setup: %v", ErrTransport, err)
		s.emitter.Emit(ErrorEvent{Err: err})
		s.finish(err)
		return err
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.state = StateAwaitingSetup
	s.mu.Unlock()

	s.logger.Info("gemini: connected, setup sent", "model", s.config.Model)
	s.emitter.Emit(OpenEvent{})

	go s.readLoop(t)
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config returns the configuration sent at setup.
func (s *Session) Config() Config {
	return s.config
}

// Ready is closed when setupComplete arrives.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed once the session is closed and CloseEvent has been delivered.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Events exposes the emitter for subscribers.
func (s *Session) Events() *Emitter {
	return s.emitter
}

// On registers a handler for one event type.
func (s *Session) On(t EventType, h Handler) (off func()) {
	return s.emitter.On(t, h)
}

// OnText registers fn for each text fragment of a model turn.
func (s *Session) OnText(fn func(text string)) (off func()) {
	return Subscribe(s.emitter, func(e TextEvent) { fn(e.Text) })
}

// OnAudio registers fn for each decoded audio fragment.
func (s *Session) OnAudio(fn func(data []byte)) (off func()) {
	return Subscribe(s.emitter, func(e AudioEvent) { fn(e.Data) })
}

// OnSetupComplete registers fn for the setup acknowledgement.
func (s *Session) OnSetupComplete(fn func()) (off func()) {
	return Subscribe(s.emitter, func(SetupCompleteEvent) { fn() })
}

// OnTurnComplete registers fn for the end of each model turn.
func (s *Session) OnTurnComplete(fn func()) (off func()) {
	return Subscribe(s.emitter, func(TurnCompleteEvent) { fn() })
}

// OnInterrupted registers fn for barge-in interruptions.
func (s *Session) OnInterrupted(fn func()) (off func()) {
	return Subscribe(s.emitter, func(InterruptedEvent) { fn() })
}

// OnToolCall registers fn for function call requests.
func (s *Session) OnToolCall(fn func(call *ToolCall)) (off func()) {
	return Subscribe(s.emitter, func(e ToolCallEvent) { fn(e.Call) })
}

// OnToolCallCancellation registers fn for voided call ids.
func (s *Session) OnToolCallCancellation(fn func(c *ToolCallCancellation)) (off func()) {
	return Subscribe(s.emitter, func(e ToolCallCancellationEvent) { fn(e.Cancellation) })
}

// OnError registers fn for non-fatal and fatal errors.
func (s *Session) OnError(fn func(err error)) (off func()) {
	return Subscribe(s.emitter, func(e ErrorEvent) { fn(e.Err) })
}

// OnClose registers fn for the single close notification.
func (s *Session) OnClose(fn func(err error)) (off func()) {
	return Subscribe(s.emitter, func(e CloseEvent) { fn(e.Err) })
}

// SendTurns sends a clientContent frame.
func (s *Session) SendTurns(turns []Content, turnComplete bool) error {
	return s.send(&ClientMessage{ClientContent: &ClientContent{
		Turns:        turns,
		TurnComplete: turnComplete,
	}})
}

// SendText sends a single completed user text turn.
func (s *Session) SendText(text string) error {
	return s.SendTurns([]Content{UserText(text)}, true)
}

// StreamMediaChunk sends one self-contained realtimeInput frame. Calls
// are written in the order they are made.
func (s *Session) StreamMediaChunk(mimeType string, data []byte) error {
	return s.send(&ClientMessage{RealtimeInput: &RealtimeInput{
		MediaChunks: []Blob{NewBlob(mimeType, data)},
	}})
}

// StreamAudio streams 16kHz 16-bit mono PCM.
func (s *Session) StreamAudio(pcm []byte) error {
	return s.StreamMediaChunk(AudioInputMIMEType, pcm)
}

// StreamImage streams one JPEG frame.
func (s *Session) StreamImage(jpeg []byte) error {
	return s.StreamMediaChunk(ImageJPEGMIMEType, jpeg)
}

// SendToolResponse answers the tool call identified by id.
func (s *Session) SendToolResponse(id, name string, response map[string]any) error {
	return s.SendToolResponses(FunctionResponse{ID: id, Name: name, Response: response})
}

// SendToolResponses answers several tool calls in one frame.
func (s *Session) SendToolResponses(responses ...FunctionResponse) error {
	return s.send(&ClientMessage{ToolResponse: &ToolResponse{FunctionResponses: responses}})
}

// Close closes the socket. It is idempotent and emits CloseEvent once.
func (s *Session) Close() error {
	return s.finish(nil)
}

func (s *Session) send(msg *ClientMessage) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	state, t := s.state, s.transport
	s.mu.Unlock()

	switch state {
	case StateConnecting, StateClosed:
		return ErrNotConnected
	case StateAwaitingSetup:
		if s.requireSetup {
			return ErrSetupPending
		}
	}

	// The transport serializes writes; the state lock is not held so Close
	// and inbound dispatch never wait behind a slow socket.
	if err := t.WriteMessage(data); err != nil {
		if s.State() == StateClosed {
			return ErrNotConnected
		}
		return fmt.Errorf("%w: send %s: %v", ErrTransport, msg.kind(), err)
	}
	s.logger.Debug("gemini: sent", "frame", msg.kind(), "bytes", len(data))
	return nil
}

// finish emits CloseEvent outside closeOnce so close handlers may call Close.
func (s *Session) finish(cause error) error {
	var (
		closeErr error
		first    bool
	)
	s.closeOnce.Do(func() {
		first = true
		s.mu.Lock()
		s.state = StateClosed
		t := s.transport
		s.mu.Unlock()

		if t != nil {
			closeErr = t.Close()
		}
	})
	if first {
		s.logger.Info("gemini: session closed", "cause", cause)
		s.emitter.Emit(CloseEvent{Err: cause})
		close(s.done)
	}
	return closeErr
}

func (s *Session) readLoop(t Transport) {
	for {
		data, err := t.ReadMessage()
		if err != nil {
			if s.State() == StateClosed {
				return
			}
			if errors.Is(err, io.EOF) {
				s.finish(nil)
				return
			}
			err = fmt.Errorf("%w: %v", ErrTransport, err)
			s.logger.Error("gemini: receive failed", "error", err)
			s.emitter.Emit(ErrorEvent{Err: err})
			s.finish(err)
			return
		}
		s.handleFrame(data)
	}
}

func (s *Session) handleFrame(data []byte) {
	frame, err := Classify(data)
	if err != nil {
		s.logger.Warn("gemini: dropping malformed frame", "error", err, "bytes", len(data))
		s.emitter.Emit(ErrorEvent{Err: err})
		return
	}

	s.emitter.Emit(ResponseEvent{Frame: frame, Raw: data})

	switch f := frame.(type) {
	case *SetupComplete:
		s.markReady()
		s.emitter.Emit(SetupCompleteEvent{})
	case *ServerContent:
		s.dispatchServerContent(f)
	case *ToolCall:
		s.logger.Debug("gemini: tool call", "calls", len(f.FunctionCalls))
		s.emitter.Emit(ToolCallEvent{Call: f})
	case *ToolCallCancellation:
		s.logger.Debug("gemini: tool call cancellation", "ids", f.IDs)
		s.emitter.Emit(ToolCallCancellationEvent{Cancellation: f})
	case *UnknownFrame:
		s.logger.Warn("gemini: unrecognized frame", "bytes", len(f.Raw), "error", f.Err)
		s.emitter.Emit(UnrecognizedEvent{Raw: f.Raw, Err: f.Err})
	}
}

func (s *Session) markReady() {
	s.mu.Lock()
	if s.state == StateAwaitingSetup {
		s.state = StateReady
	}
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
	s.logger.Info("gemini: setup complete")
}

func (s *Session) dispatchServerContent(c *ServerContent) {
	s.emitter.Emit(ServerContentEvent{Content: c})

	for _, part := range c.Parts() {
		switch part.Kind() {
		case PartText:
			s.emitter.Emit(TextEvent{Text: *part.Text})
		case PartInlineData:
			blob := *part.InlineData
			if !strings.HasPrefix(blob.MIMEType, "audio") {
				s.emitter.Emit(InlineDataEvent{Blob: blob})
				continue
			}
			data, err := blob.Decode()
			if err != nil {
				s.emitter.Emit(ErrorEvent{Err: err})
				continue
			}
			s.emitter.Emit(AudioEvent{MIMEType: blob.MIMEType, Data: data})
		default:
			s.logger.Debug("gemini: ignoring model turn part", "kind", part.Kind().String())
		}
	}

	if c.Interrupted {
		s.emitter.Emit(InterruptedEvent{})
	}
	if c.TurnComplete {
		s.emitter.Emit(TurnCompleteEvent{})
	}
}
