package config

import (
	"google.golang.org/genai"

	"github.com/room4-2/gemini-live/gemini"
)

// Endpoint returns the Live API endpoint for this configuration
func (c *Config) Endpoint() gemini.Endpoint {
	return gemini.Endpoint{
		APIKey: c.GeminiAPIKey,
		Host:   c.Host,
		Path:   c.Path,
	}
}

// LiveConfig builds the setup payload. fallbackPrompt is used when
// SYSTEM_PROMPT is unset; an empty prompt sends no system instruction.
func (c *Config) LiveConfig(fallbackPrompt string, tools []*genai.Tool) gemini.Config {
	gen := &gemini.GenerationConfig{Temperature: c.Temperature}

	audio := false
	for _, m := range c.ResponseModalities {
		gen.ResponseModalities = append(gen.ResponseModalities, genai.Modality(m))
		if m == "AUDIO" {
			audio = true
		}
	}
	if audio && c.Voice != "" {
		gen.SpeechConfig = gemini.VoiceConfig(c.Voice)
	}

	cfg := gemini.Config{
		Model:            c.Model,
		GenerationConfig: gen,
		Tools:            tools,
	}

	prompt := c.SystemPrompt
	if prompt == "" {
		prompt = fallbackPrompt
	}
	if prompt != "" {
		cfg.SystemInstruction = gemini.SystemInstruction(prompt)
	}
	return cfg
}
