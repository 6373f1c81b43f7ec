package gemini_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/room4-2/gemini-live/gemini"
)

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint gemini.Endpoint
		want     string
	}{
		{
			name:     "defaults",
			endpoint: gemini.Endpoint{APIKey: "K"},
			want:     "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent?key=K",
		},
		{
			name:     "host override",
			endpoint: gemini.Endpoint{APIKey: "K", Host: "localhost:9000"},
			want:     "wss://localhost:9000/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent?key=K",
		},
		{
			name:     "path override",
			endpoint: gemini.Endpoint{APIKey: "K", Path: "custom.Service.Bidi"},
			want:     "wss://generativelanguage.googleapis.com/ws/custom.Service.Bidi?key=K",
		},
		{
			name:     "both overridden",
			endpoint: gemini.Endpoint{APIKey: "abc-123_x", Host: "h", Path: "p"},
			want:     "wss://h/ws/p?key=abc-123_x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.endpoint.URL())
		})
	}
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t, gemini.Endpoint{APIKey: "K"}.URL(), gemini.WebsocketURL("K"))
}
