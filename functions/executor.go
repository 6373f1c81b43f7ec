package functions

import (
	"context"
	"log/slog"
	"sync"

	"github.com/room4-2/gemini-live/gemini"
)

// Responder delivers function results back to the model
type Responder interface {
	SendToolResponse(id, name string, response map[string]any) error
}

// Executor runs tool calls off the session read loop. Calls named in a
// cancellation are interrupted and never answered.
type Executor struct {
	registry  *Registry
	responder Responder
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]*inflightCall
	wg       sync.WaitGroup
}

type inflightCall struct {
	cancel context.CancelFunc
}

func NewExecutor(registry *Registry, responder Responder, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		registry:  registry,
		responder: responder,
		logger:    logger,
		inflight:  make(map[string]*inflightCall),
	}
}

// Attach subscribes the executor to a session's tool call events
func (e *Executor) Attach(s *gemini.Session) (detach func()) {
	offCall := s.OnToolCall(e.Handle)
	offCancel := s.OnToolCallCancellation(e.Cancel)
	return func() {
		offCall()
		offCancel()
	}
}

// Handle starts one goroutine per function call
func (e *Executor) Handle(call *gemini.ToolCall) {
	for _, fc := range call.FunctionCalls {
		ctx, cancel := context.WithCancel(context.Background())
		key := callKey(fc)
		c := &inflightCall{cancel: cancel}

		e.mu.Lock()
		if prev, ok := e.inflight[key]; ok {
			prev.cancel()
		}
		e.inflight[key] = c
		e.mu.Unlock()

		e.wg.Add(1)
		go e.run(ctx, c, key, fc)
	}
}

// Cancel interrupts the in-flight calls whose ids are listed
func (e *Executor) Cancel(c *gemini.ToolCallCancellation) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range c.IDs {
		if c, ok := e.inflight[id]; ok {
			e.logger.Info("🛑 tool call cancelled", "id", id)
			c.cancel()
			delete(e.inflight, id)
		}
	}
}

// Pending reports how many calls are still running
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inflight)
}

// Wait blocks until every started call has finished
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Close cancels all in-flight calls and waits for them
func (e *Executor) Close() {
	e.mu.Lock()
	for id, c := range e.inflight {
		c.cancel()
		delete(e.inflight, id)
	}
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Executor) run(ctx context.Context, c *inflightCall, key string, fc gemini.FunctionCall) {
	defer e.wg.Done()
	defer c.cancel()

	e.logger.Info("🔧 function call", "name", fc.Name, "id", fc.ID)
	response := e.registry.Call(ctx, fc.Name, fc.Args)

	// Removing the entry commits the answer: a later Cancel finds nothing,
	// an earlier one has already cancelled ctx.
	e.mu.Lock()
	cancelled := ctx.Err() != nil
	if e.inflight[key] == c {
		delete(e.inflight, key)
	}
	e.mu.Unlock()

	if cancelled {
		e.logger.Debug("dropping response for cancelled call", "name", fc.Name, "id", fc.ID)
		return
	}

	if err := e.responder.SendToolResponse(fc.ID, fc.Name, response); err != nil {
		e.logger.Error("❌ failed to send tool response", "name", fc.Name, "id", fc.ID, "error", err)
	}
}

func callKey(fc gemini.FunctionCall) string {
	if fc.ID != "" {
		return fc.ID
	}
	return fc.Name
}
