package server

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/gemini-live/config"
	"github.com/room4-2/gemini-live/gemini/geminitest"
	"github.com/room4-2/gemini-live/messages"
	"github.com/room4-2/gemini-live/session"
)

const timeout = 2 * time.Second

type relay struct {
	server *httptest.Server
	dialer *geminitest.Dialer
}

func newRelay(t *testing.T, maxSessions int) *relay {
	t.Helper()

	cfg := &config.Config{
		GeminiAPIKey:       "test-key",
		Model:              config.DefaultModel,
		ResponseModalities: []string{"AUDIO"},
		Voice:              "Kore",
		MaxSessions:        maxSessions,
		SessionTimeout:     time.Minute,
		AllowedOrigins:     []string{"*"},
		MaxBufferSize:      8000,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dialer := &geminitest.Dialer{}

	mgr, err := session.NewManager(cfg, session.WithDialer(dialer), session.WithLogger(logger))
	require.NoError(t, err)

	srv := NewServerWebsocket(cfg, mgr, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		mgr.Shutdown()
		ts.Close()
	})
	return &relay{server: ts, dialer: dialer}
}

func (r *relay) connect(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(r.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// upstream returns the fake Live API transport behind the nth session.
func (r *relay) upstream(t *testing.T, n int) *geminitest.Transport {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.dialer.Transports()) > n }, timeout, 5*time.Millisecond)
	return r.dialer.Transports()[n]
}

type received struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload"`
}

func (m received) field(t *testing.T, key string) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.Unmarshal(m.Payload, &payload))
	return payload[key]
}

// readUntil reads relay messages until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, match func(received) bool) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	for {
		var msg received
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func isStatus(t *testing.T, status string) func(received) bool {
	return func(m received) bool {
		return m.Type == messages.TypeStatus && m.field(t, "status") == status
	}
}

// nextFrame returns the next frame the relay wrote upstream, decoded.
func nextFrame(t *testing.T, tr *geminitest.Transport) map[string]any {
	t.Helper()
	data, ok := tr.Next(timeout)
	require.True(t, ok, "no frame written upstream")
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func waitReady(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	readUntil(t, conn, isStatus(t, messages.StatusSetupComplete))
}

func TestHealth(t *testing.T) {
	r := newRelay(t, 2)

	resp, err := http.Get(r.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","sessions":0,"maxSessions":2,"redis":"disabled"}`, string(body))
}

func TestHealthReportsFull(t *testing.T) {
	r := newRelay(t, 1)
	waitReady(t, r.connect(t))

	resp, err := http.Get(r.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.JSONEq(t, `{"status":"full","sessions":1,"maxSessions":1,"redis":"disabled"}`, string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	r := newRelay(t, 2)
	conn := r.connect(t)
	waitReady(t, conn)

	resp, err := http.Get(r.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "geminilive_sessions_active")
	assert.Contains(t, string(body), `geminilive_frames_received_total{kind="setupComplete"}`)
}

func TestSessionSendsSetupWithTools(t *testing.T) {
	r := newRelay(t, 2)
	conn := r.connect(t)
	waitReady(t, conn)

	assert.Contains(t, r.dialer.URLs()[0], "?key=test-key")

	setup := nextFrame(t, r.upstream(t, 0))["setup"].(map[string]any)
	assert.Equal(t, config.DefaultModel, setup["model"])
	assert.Contains(t, setup, "systemInstruction")
	tools := setup["tools"].([]any)
	require.Len(t, tools, 1)
	decls := tools[0].(map[string]any)["functionDeclarations"].([]any)
	assert.Equal(t, "get_current_time", decls[0].(map[string]any)["name"])
}

func TestTextRoundTrip(t *testing.T) {
	r := newRelay(t, 2)
	conn := r.connect(t)
	waitReady(t, conn)
	tr := r.upstream(t, 0)
	nextFrame(t, tr) // setup

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "text",
		"payload": map[string]any{"text": "Hello"},
	}))

	content := nextFrame(t, tr)["clientContent"].(map[string]any)
	assert.Equal(t, true, content["turnComplete"])
	turns := content["turns"].([]any)
	require.Len(t, turns, 1)
	assert.Equal(t, "user", turns[0].(map[string]any)["role"])

	audio := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
	tr.Push(`{"serverContent":{"modelTurn":{"parts":[{"text":"Hi there"},{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"` + audio + `"}}]},"turnComplete":true}}`)

	text := readUntil(t, conn, func(m received) bool { return m.Type == messages.TypeText })
	assert.Equal(t, "Hi there", text.field(t, "text"))

	sound := readUntil(t, conn, func(m received) bool { return m.Type == messages.TypeAudio })
	assert.Equal(t, audio, sound.field(t, "data"))
	assert.Equal(t, "audio/pcm;rate=24000", sound.field(t, "mimeType"))

	readUntil(t, conn, isStatus(t, messages.StatusTurnComplete))
}

func TestBufferedAudioFlushedOnEndTurn(t *testing.T) {
	r := newRelay(t, 2)
	conn := r.connect(t)
	waitReady(t, conn)
	tr := r.upstream(t, 0)
	nextFrame(t, tr) // setup

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 4000)))
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "control",
		"payload": map[string]any{"action": "end_turn"},
	}))

	var sizes []int
	for range 2 {
		input := nextFrame(t, tr)["realtimeInput"].(map[string]any)
		chunk := input["mediaChunks"].([]any)[0].(map[string]any)
		assert.Equal(t, "audio/pcm;rate=16000", chunk["mimeType"])
		raw, err := base64.StdEncoding.DecodeString(chunk["data"].(string))
		require.NoError(t, err)
		sizes = append(sizes, len(raw))
	}
	assert.Equal(t, []int{3200, 800}, sizes)
}

func TestBufferFull(t *testing.T) {
	r := newRelay(t, 2)
	conn := r.connect(t)
	waitReady(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 9000)))

	msg := readUntil(t, conn, func(m received) bool { return m.Type == messages.TypeError })
	assert.Equal(t, messages.ErrCodeBufferFull, msg.field(t, "code"))
}

func TestPingAndInvalidMessages(t *testing.T) {
	r := newRelay(t, 2)
	conn := r.connect(t)
	waitReady(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "control", "payload": map[string]any{"action": "ping"}}))
	readUntil(t, conn, isStatus(t, messages.StatusPong))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{oops`)))
	msg := readUntil(t, conn, func(m received) bool { return m.Type == messages.TypeError })
	assert.Equal(t, messages.ErrCodeInvalidMessage, msg.field(t, "code"))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "video", "payload": map[string]any{}}))
	msg = readUntil(t, conn, func(m received) bool { return m.Type == messages.TypeError })
	assert.Equal(t, "Unknown message type: video", msg.field(t, "message"))
}

func TestToolCallAnsweredUpstream(t *testing.T) {
	r := newRelay(t, 2)
	conn := r.connect(t)
	waitReady(t, conn)
	tr := r.upstream(t, 0)
	nextFrame(t, tr) // setup

	tr.Push(`{"toolCall":{"functionCalls":[{"id":"call-1","name":"get_current_time"}]}}`)

	resp := nextFrame(t, tr)["toolResponse"].(map[string]any)
	fr := resp["functionResponses"].([]any)[0].(map[string]any)
	assert.Equal(t, "call-1", fr["id"])
	assert.Equal(t, "get_current_time", fr["name"])
	assert.Contains(t, fr["response"], "time")

	notice := readUntil(t, conn, func(m received) bool { return m.Type == messages.TypeToolCall })
	assert.Equal(t, "get_current_time", notice.field(t, "name"))
	assert.Equal(t, "call-1", notice.field(t, "id"))
}

func TestMaxSessions(t *testing.T) {
	r := newRelay(t, 1)
	first := r.connect(t)
	waitReady(t, first)

	second := r.connect(t)
	msg := readUntil(t, second, func(m received) bool { return m.Type == messages.TypeError })
	assert.Equal(t, messages.ErrCodeSessionFailed, msg.field(t, "code"))
	assert.Equal(t, session.ErrMaxSessions.Error(), msg.field(t, "message"))
}

func TestUpstreamCloseEndsClient(t *testing.T) {
	r := newRelay(t, 2)
	conn := r.connect(t)
	waitReady(t, conn)

	r.upstream(t, 0).PeerClose()

	var codes []string
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	for {
		var msg received
		if err := conn.ReadJSON(&msg); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)
			break
		}
		if msg.Type == messages.TypeError {
			codes = append(codes, msg.field(t, "code"))
		}
	}
	assert.Contains(t, codes, messages.ErrCodeConnectionClosed)

	require.Eventually(t, func() bool {
		resp, err := http.Get(r.server.URL + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(body), `"sessions":0`)
	}, timeout, 10*time.Millisecond)
}

func TestCheckOrigin(t *testing.T) {
	cfg := &config.Config{AllowedOrigins: []string{"https://app.example.com", " http://localhost:3000"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := session.NewManager(cfg, session.WithLogger(logger))
	require.NoError(t, err)
	srv := NewServerWebsocket(cfg, mgr, logger)

	for origin, want := range map[string]bool{
		"https://app.example.com": true,
		"http://localhost:3000":   true,
		"https://evil.example":    false,
		"":                        false,
	} {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		assert.Equal(t, want, srv.checkOrigin(req), origin)
	}
}

func TestSendBeforeSetupIsNotReady(t *testing.T) {
	r := newRelay(t, 2)
	r.dialer.New = geminitest.NewTransport
	conn := r.connect(t)

	readUntil(t, conn, isStatus(t, messages.StatusConnected))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"text","payload":{"text":"too early"}}`)))

	msg := readUntil(t, conn, func(m received) bool { return m.Type == messages.TypeError })
	assert.Equal(t, messages.ErrCodeNotReady, msg.field(t, "code"))

	tr := r.upstream(t, 0)
	nextFrame(t, tr) // setup
	_, wrote := tr.Next(100 * time.Millisecond)
	assert.False(t, wrote, "early text must not reach the Live API")

	tr.Push(`{"setupComplete":{}}`)
	waitReady(t, conn)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"text","payload":{"text":"now"}}`)))
	assert.Contains(t, nextFrame(t, tr), "clientContent")
}
