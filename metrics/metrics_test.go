package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/gemini-live/gemini"
	"github.com/room4-2/gemini-live/gemini/geminitest"
)

func TestObserveCountsFrames(t *testing.T) {
	dialer := &geminitest.Dialer{}
	s := gemini.NewSession(gemini.Config{Model: "models/test"}, gemini.WithDialer(dialer))
	Observe(s)

	content := FramesReceived.WithLabelValues("serverContent")
	setup := FramesReceived.WithLabelValues("setupComplete")
	tools := ToolCallsTotal.WithLabelValues("lookup_weather")
	baseContent := testutil.ToFloat64(content)
	baseSetup := testutil.ToFloat64(setup)
	baseTools := testutil.ToFloat64(tools)
	baseErrors := testutil.ToFloat64(ErrorsTotal)

	require.NoError(t, s.Open(context.Background(), gemini.Endpoint{APIKey: "key"}))
	defer s.Close()

	select {
	case <-s.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("setup was not acknowledged")
	}

	tr := dialer.Transports()[0]
	tr.Push(`{"serverContent":{"modelTurn":{"parts":[{"text":"hi"}]}}}`)
	tr.Push(`{"toolCall":{"functionCalls":[{"id":"1","name":"lookup_weather"}]}}`)
	tr.Push(`{not json`)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(ErrorsTotal) == baseErrors+1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, baseSetup+1, testutil.ToFloat64(setup))
	assert.Equal(t, baseContent+1, testutil.ToFloat64(content))
	assert.Equal(t, baseTools+1, testutil.ToFloat64(tools))
}
