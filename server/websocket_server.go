package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/room4-2/gemini-live/config"
	"github.com/room4-2/gemini-live/messages"
	"github.com/room4-2/gemini-live/session"
)

const (
	// 64KB frames hold a few hundred ms of PCM either way
	socketBufferSize = 64 * 1024
	healthTimeout    = 2 * time.Second
)

// Server relays browser websockets to Live API sessions
type Server struct {
	httpServer     *http.Server
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	origins        map[string]bool
	anyOrigin      bool
	config         *config.Config
	logger         *slog.Logger
}

func NewServerWebsocket(cfg *config.Config, sessionManager *session.Manager, logger *slog.Logger) *Server {
	s := &Server{
		sessionManager: sessionManager,
		origins:        make(map[string]bool),
		config:         cfg,
		logger:         logger,
	}
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			s.anyOrigin = true
		}
		s.origins[origin] = true
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:    socketBufferSize,
		WriteBufferSize:   socketBufferSize,
		EnableCompression: true,
		CheckOrigin:       s.checkOrigin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// No WriteTimeout: /ws connections are long lived once upgraded
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the routes for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("🚀 relay listening",
		"ws", fmt.Sprintf("ws://localhost:%d/ws", s.config.Port),
		"model", s.config.Model,
		"max_sessions", s.config.MaxSessions)
	return s.httpServer.ListenAndServe()
}

// Shutdown closes every relayed session, then stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("🛑 Shutting down server...")
	s.sessionManager.Shutdown()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.anyOrigin {
		return true
	}
	origin := r.Header.Get("Origin")
	if s.origins[origin] {
		return true
	}
	s.logger.Warn("rejected origin", "origin", origin)
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	// Opens the Live session and starts relaying
	clientSession, err := s.sessionManager.CreateSession(r.Context(), conn)
	if err != nil {
		s.logger.Error("Failed to create session", "error", err, "remote", r.RemoteAddr)
		if data, encErr := messages.NewErrorMessage("", messages.ErrCodeSessionFailed, err.Error()).Encode(); encErr == nil {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
		conn.Close()
		return
	}

	s.logger.Info("✅ New session created", "session", clientSession.ID, "remote", r.RemoteAddr)

	<-clientSession.CloseChan

	_ = s.sessionManager.RemoveSession(context.Background(), clientSession.ID)
	s.logger.Info("🔌 Session closed", "session", clientSession.ID,
		"duration", time.Since(clientSession.CreatedAt).Round(time.Second))
}

type healthResponse struct {
	Status string `json:"status"`
	session.Stats
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Stats: s.sessionManager.Stats(ctx)}
	code := http.StatusOK
	if resp.Redis == "unreachable" {
		resp.Status = "degraded"
	}
	if resp.Max > 0 && resp.Active >= resp.Max {
		resp.Status = "full"
		code = http.StatusServiceUnavailable
	}

	body, err := sonic.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
