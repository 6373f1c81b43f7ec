package functions

import (
	"context"
	"time"

	"google.golang.org/genai"
)

// Now is the clock used by the current time function
var Now = time.Now

// CurrentTimeDeclaration describes get_current_time to the model
func CurrentTimeDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "get_current_time",
		Description: "Get the current local date and time",
	}
}

// CurrentTime reports the local time in RFC 3339 form
func CurrentTime(_ context.Context, _ map[string]any) (map[string]any, error) {
	now := Now()
	zone, _ := now.Zone()
	return map[string]any{
		"time":     now.Format(time.RFC3339),
		"timezone": zone,
	}, nil
}

// DocsDeclaration describes a function that returns a fixed reference text
func DocsDeclaration(name, description string) *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        name,
		Description: description,
	}
}

// Docs returns a handler answering with text under "output"
func Docs(text string) Handler {
	return func(context.Context, map[string]any) (map[string]any, error) {
		return map[string]any{"output": text}, nil
	}
}

// Default returns a registry holding the built-in functions
func Default() *Registry {
	r := NewRegistry()
	r.Register(CurrentTimeDeclaration(), CurrentTime)
	return r
}
