package functions

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// Handler runs one function call. A returned error is reported to the model
// as {"error": "..."} rather than failing the session.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

type function struct {
	decl    *genai.FunctionDeclaration
	handler Handler
}

// Registry maps function names to declarations and handlers
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]function
	order []string
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]function)}
}

// Register adds or replaces a function. Declarations are advertised in
// registration order.
func (r *Registry) Register(decl *genai.FunctionDeclaration, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.funcs[decl.Name]; !ok {
		r.order = append(r.order, decl.Name)
	}
	r.funcs[decl.Name] = function{decl: decl, handler: handler}
}

// Names returns the registered function names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Tools returns the declarations wrapped for the setup frame, or nil when
// nothing is registered.
func (r *Registry) Tools() []*genai.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(r.order))
	for _, name := range r.order {
		decls = append(decls, r.funcs[name].decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// Call runs the named function and always produces a response payload
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) map[string]any {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()

	if !ok {
		return map[string]any{"error": fmt.Sprintf("Unknown function: %s", name)}
	}

	response, err := fn.handler(ctx, args)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	if response == nil {
		response = map[string]any{}
	}
	return response
}
