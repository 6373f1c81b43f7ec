package gemini_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/room4-2/gemini-live/gemini"
)

func TestClassifyKnownFrames(t *testing.T) {
	tests := []struct {
		frame string
		want  gemini.FrameKind
	}{
		{`{"setupComplete":{}}`, gemini.FrameSetupComplete},
		{`{"setupComplete":null}`, gemini.FrameSetupComplete},
		{`{"serverContent":{"turnComplete":true}}`, gemini.FrameServerContent},
		{`{"toolCall":{"functionCalls":[{"id":"1","name":"f","args":{}}]}}`, gemini.FrameToolCall},
		{`{"toolCallCancellation":{"ids":["1","2"]}}`, gemini.FrameToolCallCancellation},
		{`{"serverContent":{},"usageMetadata":{"totalTokenCount":3}}`, gemini.FrameServerContent},
	}

	for _, tt := range tests {
		t.Run(tt.frame, func(t *testing.T) {
			frame, err := gemini.Classify([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, frame.Kind())
		})
	}
}

func TestClassifyIsTotal(t *testing.T) {
	frames := []string{
		`{}`,
		`{"foo":1}`,
		`[]`,
		`"setupComplete"`,
		`42`,
		`null`,
		`{"setupComplete":{},"serverContent":{}}`,
		`{"toolCall":{},"toolCallCancellation":{}}`,
		`{"setupComplete":{},"serverContent":{},"toolCall":{},"toolCallCancellation":{}}`,
		`{"toolCall":"nope"}`,
		`{"serverContent":{"modelTurn":{"parts":7}}}`,
	}

	for _, raw := range frames {
		t.Run(raw, func(t *testing.T) {
			var frame gemini.Frame
			require.NotPanics(t, func() {
				var err error
				frame, err = gemini.Classify([]byte(raw))
				require.NoError(t, err)
			})
			assert.Equal(t, gemini.FrameUnknown, frame.Kind())
			unknown, ok := frame.(*gemini.UnknownFrame)
			require.True(t, ok)
			assert.Equal(t, raw, string(unknown.Raw))
		})
	}
}

func TestClassifyMalformed(t *testing.T) {
	for _, raw := range []string{``, `{`, `not json`, `{"setupComplete":}`} {
		_, err := gemini.Classify([]byte(raw))
		assert.ErrorIs(t, err, gemini.ErrMalformedFrame, raw)
	}
}

func TestClassifyServerContentParts(t *testing.T) {
	raw := `{"serverContent":{"modelTurn":{"parts":[
		{"text":"hi"},
		{"text":""},
		{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"AAE="}},
		{"functionCall":{"name":"f","args":{"a":1}}},
		{"text":"x","inlineData":{"mimeType":"a","data":""}},
		{}
	]},"interrupted":true}}`

	frame, err := gemini.Classify([]byte(raw))
	require.NoError(t, err)
	content, ok := frame.(*gemini.ServerContent)
	require.True(t, ok)

	parts := content.Parts()
	require.Len(t, parts, 6)
	kinds := make([]gemini.PartKind, len(parts))
	for i, p := range parts {
		kinds[i] = p.Kind()
	}
	assert.Equal(t, []gemini.PartKind{
		gemini.PartText,
		gemini.PartText,
		gemini.PartInlineData,
		gemini.PartFunctionCall,
		gemini.PartUnknown,
		gemini.PartUnknown,
	}, kinds)
	assert.Equal(t, "", *parts[1].Text)
	assert.True(t, content.Interrupted)
	assert.False(t, content.TurnComplete)
}

func TestClassifyToolCall(t *testing.T) {
	frame, err := gemini.Classify([]byte(`{"toolCall":{"functionCalls":[{"id":"42","name":"lookup_weather","args":{"location":"Paris"}}]}}`))
	require.NoError(t, err)

	call, ok := frame.(*gemini.ToolCall)
	require.True(t, ok)
	require.Len(t, call.FunctionCalls, 1)
	assert.Equal(t, "42", call.FunctionCalls[0].ID)
	assert.Equal(t, "lookup_weather", call.FunctionCalls[0].Name)
	assert.Equal(t, "Paris", call.FunctionCalls[0].Args["location"])
}

func TestBlobRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x00},
		{0x00, 0x01, 0xfe, 0xff},
		[]byte("sixteen bit pcm!"),
	}
	for _, p := range payloads {
		blob := gemini.NewBlob("audio/pcm", p)
		decoded, err := blob.Decode()
		require.NoError(t, err)
		assert.Equal(t, blob.Data, base64.StdEncoding.EncodeToString(decoded))
	}

	_, err := gemini.Blob{MIMEType: "audio/pcm", Data: "%%%"}.Decode()
	assert.ErrorIs(t, err, gemini.ErrMalformedFrame)
}

func TestClientMessageEncoding(t *testing.T) {
	tests := []struct {
		name string
		msg  gemini.ClientMessage
		want string
	}{
		{
			name: "client content",
			msg: gemini.ClientMessage{ClientContent: &gemini.ClientContent{
				Turns:        []gemini.Content{gemini.UserText("Hello")},
				TurnComplete: true,
			}},
			want: `{"clientContent":{"turns":[{"role":"user","parts":[{"text":"Hello"}]}],"turnComplete":true}}`,
		},
		{
			name: "realtime input",
			msg: gemini.ClientMessage{RealtimeInput: &gemini.RealtimeInput{
				MediaChunks: []gemini.Blob{gemini.NewBlob("image/jpeg", []byte{1, 2, 3})},
			}},
			want: `{"realtimeInput":{"mediaChunks":[{"mimeType":"image/jpeg","data":"AQID"}]}}`,
		},
		{
			name: "tool response",
			msg: gemini.ClientMessage{ToolResponse: &gemini.ToolResponse{
				FunctionResponses: []gemini.FunctionResponse{{ID: "1", Name: "f", Response: map[string]any{"ok": true}}},
			}},
			want: `{"toolResponse":{"functionResponses":[{"id":"1","name":"f","response":{"ok":true}}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.msg.Encode()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestSetupEncoding(t *testing.T) {
	cfg := gemini.Config{
		Model:             "models/gemini-2.0-flash-exp",
		SystemInstruction: gemini.SystemInstruction("be brief"),
		GenerationConfig: &gemini.GenerationConfig{
			Temperature:  genai.Ptr[float32](0.9),
			SpeechConfig: gemini.VoiceConfig("Kore"),
		},
	}
	data, err := (&gemini.ClientMessage{Setup: &cfg}).Encode()
	require.NoError(t, err)

	var decoded struct {
		Setup struct {
			Model             string `json:"model"`
			SystemInstruction struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"systemInstruction"`
			GenerationConfig struct {
				Temperature  float64 `json:"temperature"`
				SpeechConfig struct {
					VoiceConfig struct {
						PrebuiltVoiceConfig struct {
							VoiceName string `json:"voiceName"`
						} `json:"prebuiltVoiceConfig"`
					} `json:"voiceConfig"`
				} `json:"speechConfig"`
			} `json:"generationConfig"`
		} `json:"setup"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "models/gemini-2.0-flash-exp", decoded.Setup.Model)
	require.Len(t, decoded.Setup.SystemInstruction.Parts, 1)
	assert.Equal(t, "be brief", decoded.Setup.SystemInstruction.Parts[0].Text)
	assert.InDelta(t, 0.9, decoded.Setup.GenerationConfig.Temperature, 1e-6)
	assert.Equal(t, "Kore", decoded.Setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	assert.NotContains(t, string(data), "tools")
}
