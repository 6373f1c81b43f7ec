package session

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/gemini-live/config"
)

func TestNewManagerWithoutRedis(t *testing.T) {
	cfg := &config.Config{MaxSessions: 1}
	m, err := NewManager(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	assert.Nil(t, m.redis)
	assert.Equal(t, []string{"get_current_time"}, m.registry.Names())
	assert.Zero(t, m.GetActiveSessionCount())

	_, ok := m.GetSession("missing")
	assert.False(t, ok)
	assert.NoError(t, m.RemoveSession(context.Background(), "missing"))

	m.CleanupInactiveSessions(context.Background())
	m.Shutdown()
}

func TestLiveConfigUsesDefaultPrompt(t *testing.T) {
	cfg := &config.Config{Model: config.DefaultModel, ResponseModalities: []string{"TEXT"}}
	live := cfg.LiveConfig(DefaultSystemPrompt, nil)

	require.NotNil(t, live.SystemInstruction)
	assert.Equal(t, DefaultSystemPrompt, live.SystemInstruction.Parts[0].Text)
	assert.Nil(t, live.Tools)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "12345678", shortID("1234567890"))
	assert.Equal(t, "abc", shortID("abc"))
}
