package server

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionManager grants the controlling session to one client at a time.
// When the session ends the onRelease callback runs, which the server uses
// to put the operation configuration back to all-disabled.
type SessionManager struct {
	token     string
	apiSecret string // Optional API secret for handshake
	onRelease func()
	logger    *zap.Logger
	mu        sync.RWMutex
}

// NewSessionManager creates a new session manager
func NewSessionManager(apiSecret string, onRelease func(), logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		apiSecret: apiSecret,
		onRelease: onRelease,
		logger:    logger,
	}
}

// Authorize reports whether secret matches the configured API secret.
// Without a configured secret every caller is authorized.
func (m *SessionManager) Authorize(secret string) bool {
	return m.apiSecret == "" || secret == m.apiSecret
}

// Acquire attempts to acquire the session token
// Returns the token if successful, or empty string if already claimed or invalid secret
func (m *SessionManager) Acquire(secret string, origin string, remoteAddr string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Authorize(secret) {
		return ""
	}
	if m.token != "" {
		return ""
	}

	m.token = uuid.NewString()

	m.logger.Info("session acquired",
		zap.String("session", m.token[:8]),
		zap.String("origin", origin),
		zap.String("ip", remoteAddr))
	return m.token
}

// Active reports whether a session is currently held.
func (m *SessionManager) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token != ""
}

// Release ends the session identified by token. Releasing a stale token is
// a no-op.
func (m *SessionManager) Release(token string) {
	m.mu.Lock()
	if m.token == "" || m.token != token {
		m.mu.Unlock()
		return
	}
	m.logger.Info("session released", zap.String("session", m.token[:8]))
	m.token = ""
	onRelease := m.onRelease
	m.mu.Unlock()

	if onRelease != nil {
		onRelease()
	}
}
