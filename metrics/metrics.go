package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/room4-2/gemini-live/gemini"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "geminilive_sessions_active",
		Help: "Number of active relay sessions",
	})

	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geminilive_sessions_total",
		Help: "Relay sessions by outcome",
	}, []string{"result"})

	FramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geminilive_frames_received_total",
		Help: "Inbound Live API frames by kind",
	}, []string{"kind"})

	FramesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geminilive_frames_sent_total",
		Help: "Outbound Live API frames by kind",
	}, []string{"kind"})

	ErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geminilive_errors_total",
		Help: "Error events raised by Live API sessions",
	})

	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geminilive_tool_calls_total",
		Help: "Function calls requested by the model",
	}, []string{"name"})

	SetupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geminilive_setup_duration_seconds",
		Help:    "Time from open to setupComplete",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)

// Observe counts a session's inbound traffic until it closes.
func Observe(s *gemini.Session) {
	opened := time.Now()

	gemini.Subscribe(s.Events(), func(e gemini.ResponseEvent) {
		FramesReceived.WithLabelValues(e.Frame.Kind().String()).Inc()
	})
	s.OnSetupComplete(func() {
		SetupDuration.Observe(time.Since(opened).Seconds())
	})
	s.OnToolCall(func(call *gemini.ToolCall) {
		for _, fc := range call.FunctionCalls {
			ToolCallsTotal.WithLabelValues(fc.Name).Inc()
		}
	})
	s.OnError(func(error) {
		ErrorsTotal.Inc()
	})
}
