package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/room4-2/gemini-live/config"
	"github.com/room4-2/gemini-live/functions"
	"github.com/room4-2/gemini-live/gemini"
	"github.com/room4-2/gemini-live/metrics"
)

// ErrMaxSessions is returned when the relay is at capacity
var ErrMaxSessions = errors.New("maximum sessions reached")

// Manager manages all client sessions
type Manager struct {
	sessions map[string]*ClientSession
	mu       sync.RWMutex
	redis    *redis.Client
	config   *config.Config
	dialer   gemini.Dialer
	registry *functions.Registry
	logger   *slog.Logger
}

// ManagerOption customizes a Manager
type ManagerOption func(*Manager)

// WithDialer sets the dialer used for every Live session
func WithDialer(d gemini.Dialer) ManagerOption {
	return func(m *Manager) { m.dialer = d }
}

// WithRegistry sets the functions offered to the model
func WithRegistry(r *functions.Registry) ManagerOption {
	return func(m *Manager) { m.registry = r }
}

// WithRedis mirrors session state into an existing client
func WithRedis(client *redis.Client) ManagerOption {
	return func(m *Manager) { m.redis = client }
}

func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a session manager. Redis is optional: when REDIS_URL
// is set but unreachable the manager runs in memory only.
func NewManager(cfg *config.Config, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		sessions: make(map[string]*ClientSession),
		config:   cfg,
		dialer:   gemini.WebsocketDialer{},
		registry: functions.Default(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.redis == nil && cfg.RedisURL != "" {
		m.redis = connectRedis(cfg, m.logger)
	}
	return m, nil
}

func connectRedis(cfg *config.Config, logger *slog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("⚠️ Redis unavailable, continuing without it", "addr", cfg.RedisURL, "error", err)
		client.Close()
		return nil
	}
	logger.Info("✅ Connected to Redis", "addr", cfg.RedisURL)
	return client
}

// CreateSession creates a client session and opens its Live connection
func (sm *Manager) CreateSession(ctx context.Context, clientConn *websocket.Conn) (*ClientSession, error) {
	sm.mu.Lock()
	if len(sm.sessions) >= sm.config.MaxSessions {
		sm.mu.Unlock()
		metrics.SessionsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrMaxSessions
	}

	sessionID := uuid.New().String()
	logger := sm.logger.With("session", shortID(sessionID))
	live := gemini.NewSession(
		sm.config.LiveConfig(DefaultSystemPrompt, sm.registry.Tools()),
		gemini.WithDialer(sm.dialer),
		gemini.WithLogger(logger),
		gemini.WithRequireSetup(),
	)
	session := NewClientSession(sessionID, clientConn, live, sm.registry, sm.config.MaxBufferSize, sm.logger)
	sm.storeSession(ctx, sessionID, session)
	sm.mu.Unlock()

	if err := session.Start(ctx, sm.config.Endpoint()); err != nil {
		sm.RemoveSession(ctx, sessionID)
		metrics.SessionsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	metrics.SessionsTotal.WithLabelValues("ok").Inc()
	go func() {
		<-session.CloseChan
		sm.RemoveSession(context.Background(), sessionID)
	}()
	return session, nil
}

// storeSession saves a session to memory and Redis
func (sm *Manager) storeSession(ctx context.Context, sessionID string, session *ClientSession) {
	sm.sessions[sessionID] = session
	metrics.SessionsActive.Set(float64(len(sm.sessions)))

	if sm.redis != nil {
		sm.redis.HSet(ctx, "session:"+sessionID, map[string]interface{}{
			"created_at":    session.CreatedAt.Format(time.RFC3339),
			"last_activity": session.LastActivity.Format(time.RFC3339),
			"status":        "active",
			"model":         sm.config.Model,
		})
		sm.redis.SAdd(ctx, "active_sessions", sessionID)
		sm.redis.Expire(ctx, "session:"+sessionID, sm.config.SessionTimeout)
	}
}

// GetSession retrieves a session by ID
func (sm *Manager) GetSession(sessionID string) (*ClientSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	return session, exists
}

// RemoveSession cleans up and removes a session
func (sm *Manager) RemoveSession(ctx context.Context, sessionID string) error {
	sm.mu.Lock()
	session, exists := sm.sessions[sessionID]
	if !exists {
		sm.mu.Unlock()
		return nil
	}
	delete(sm.sessions, sessionID)
	metrics.SessionsActive.Set(float64(len(sm.sessions)))
	sm.mu.Unlock()

	session.Close()
	sm.forget(ctx, sessionID)
	return nil
}

func (sm *Manager) forget(ctx context.Context, sessionID string) {
	if sm.redis != nil {
		sm.redis.Del(ctx, "session:"+sessionID)
		sm.redis.SRem(ctx, "active_sessions", sessionID)
	}
}

// GetActiveSessionCount returns current session count
func (sm *Manager) GetActiveSessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Stats is a point-in-time view of the relay for health checks
type Stats struct {
	Active int    `json:"sessions"`
	Max    int    `json:"maxSessions"`
	Redis  string `json:"redis"`
}

// Stats counts sessions and pings Redis when it is configured
func (sm *Manager) Stats(ctx context.Context) Stats {
	st := Stats{
		Active: sm.GetActiveSessionCount(),
		Max:    sm.config.MaxSessions,
		Redis:  "disabled",
	}
	if sm.redis != nil {
		st.Redis = "ok"
		if err := sm.redis.Ping(ctx).Err(); err != nil {
			st.Redis = "unreachable"
		}
	}
	return st
}

// CleanupInactiveSessions removes sessions that have been inactive
func (sm *Manager) CleanupInactiveSessions(ctx context.Context) {
	sm.mu.RLock()
	var stale []string
	for id, session := range sm.sessions {
		if session.Idle() > sm.config.SessionTimeout {
			stale = append(stale, id)
		}
	}
	sm.mu.RUnlock()

	for _, id := range stale {
		sm.logger.Info("🧹 removing inactive session", "session", shortID(id))
		sm.RemoveSession(ctx, id)
	}
}

// StartCleanupRoutine starts periodic cleanup of inactive sessions
func (sm *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupInactiveSessions(ctx)
		}
	}
}

// Shutdown closes all sessions
func (sm *Manager) Shutdown() {
	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[string]*ClientSession)
	metrics.SessionsActive.Set(0)
	sm.mu.Unlock()

	for id, session := range sessions {
		session.Close()
		sm.forget(context.Background(), id)
	}
	if sm.redis != nil {
		sm.redis.Close()
	}
}
