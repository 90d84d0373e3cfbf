package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/antibyte/cpcrun/pkg/configuration"
	"github.com/antibyte/cpcrun/pkg/logger"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("maximum sessions per IP reached")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

// Limits bounds what one client may use.
type Limits struct {
	MaxSessionsPerIP int
	MaxMessages      int // requests per minute and session
}

// LimitsFromConfig reads the limits from [Server].
func LimitsFromConfig() Limits {
	return Limits{
		MaxSessionsPerIP: configuration.GetInt("Server", "max_sessions_per_ip", 5),
		MaxMessages:      configuration.GetInt("Server", "rate_limit_messages", 600),
	}
}

// entry verwaltet die Ressourcen einer einzelnen Session
type entry struct {
	session      *Session
	ipAddress    string
	createdAt    time.Time
	lastActivity time.Time
	windowStart  time.Time
	messageCount int
}

// Manager is the registry of live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry // SessionID -> entry
	limits   Limits
	now      func() time.Time
}

// NewManager creates an empty registry.
func NewManager(limits Limits) *Manager {
	return &Manager{
		sessions: make(map[string]*entry),
		limits:   limits,
		now:      time.Now,
	}
}

// Register adds s, refusing it when ip already holds too many sessions.
func (m *Manager) Register(s *Session, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.limits.MaxSessionsPerIP > 0 {
		count := 0
		for _, e := range m.sessions {
			if e.ipAddress == ip {
				count++
			}
		}
		if count >= m.limits.MaxSessionsPerIP {
			return fmt.Errorf("%w for %s: %d", ErrTooManySessions, ip, count)
		}
	}

	now := m.now()
	m.sessions[s.ID] = &entry{
		session:      s,
		ipAddress:    ip,
		createdAt:    now,
		lastActivity: now,
		windowStart:  now,
	}
	logger.Info(logger.AreaSession, "session registered: %s (IP: %s)", s.ID, ip)
	return nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e.session, nil
}

// Touch records a request for id and enforces the per-minute limit.
func (m *Manager) Touch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	now := m.now()
	e.lastActivity = now
	if now.Sub(e.windowStart) >= time.Minute {
		e.windowStart = now
		e.messageCount = 0
	}
	e.messageCount++
	if m.limits.MaxMessages > 0 && e.messageCount > m.limits.MaxMessages {
		return fmt.Errorf("%w: %d requests in the last minute", ErrRateLimited, e.messageCount)
	}
	return nil
}

// Remove unregisters the session with id and closes it.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.session.Close()
	logger.Info(logger.AreaSession, "session unregistered: %s (lived %v)", id, m.now().Sub(e.createdAt).Round(time.Second))
	return nil
}

// CloseIdle closes sessions without a request for longer than maxIdle and
// returns how many it closed.
func (m *Manager) CloseIdle(maxIdle time.Duration) int {
	now := m.now()
	var idle []string
	m.mu.RLock()
	for id, e := range m.sessions {
		if now.Sub(e.lastActivity) > maxIdle {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idle {
		if err := m.Remove(id); err != nil {
			logger.Debug(logger.AreaSession, "idle cleanup: %v", err)
		}
	}
	return len(idle)
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range all {
		e.session.Close()
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
