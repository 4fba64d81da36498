// Package resources bounds what a single visitor can hold open: concurrent
// terminal sessions per IP and in total. The limits exist because every
// session carries its own typewriter goroutines and database-backed command
// registry.
package resources

import (
	"fmt"
	"sync"
	"time"

	"github.com/folioterm/folioterm/pkg/configuration"
	"github.com/folioterm/folioterm/pkg/logger"
)

// sessionEntry tracks one registered terminal session.
type sessionEntry struct {
	ip           string
	lastActivity time.Time
}

// SessionLimiter enforces the per-IP and global session caps. Stale entries
// are pruned lazily on registration, so no background goroutine is needed.
type SessionLimiter struct {
	mu          sync.Mutex
	sessions    map[string]*sessionEntry
	maxPerIP    int
	maxTotal    int
	idleTimeout time.Duration
	now         func() time.Time
}

// NewSessionLimiter reads the [Security] configuration section.
func NewSessionLimiter() *SessionLimiter {
	return &SessionLimiter{
		sessions:    make(map[string]*sessionEntry),
		maxPerIP:    configuration.GetInt("Security", "max_sessions_per_ip", 5),
		maxTotal:    configuration.GetInt("Security", "max_total_sessions", 200),
		idleTimeout: configuration.GetDuration("Security", "session_idle_timeout", 30*time.Minute),
		now:         time.Now,
	}
}

// Register admits a new session or returns an error naming the exceeded cap.
// Re-registering a known session only refreshes its activity stamp.
func (l *SessionLimiter) Register(sessionID, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)

	if entry, ok := l.sessions[sessionID]; ok {
		entry.lastActivity = now
		return nil
	}

	if l.maxTotal > 0 && len(l.sessions) >= l.maxTotal {
		logger.SecurityWarn("session cap reached (%d), rejecting %s", l.maxTotal, ip)
		return fmt.Errorf("session limit reached: %d active", len(l.sessions))
	}

	perIP := 0
	for _, entry := range l.sessions {
		if entry.ip == ip {
			perIP++
		}
	}
	if l.maxPerIP > 0 && perIP >= l.maxPerIP {
		logger.SecurityWarn("per-IP session cap reached for %s (%d)", ip, perIP)
		return fmt.Errorf("too many sessions from %s: %d active", ip, perIP)
	}

	l.sessions[sessionID] = &sessionEntry{ip: ip, lastActivity: now}
	return nil
}

// Touch refreshes a session's activity stamp. Unknown IDs are ignored.
func (l *SessionLimiter) Touch(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.sessions[sessionID]; ok {
		entry.lastActivity = l.now()
	}
}

// Unregister releases a session slot. Idempotent.
func (l *SessionLimiter) Unregister(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, sessionID)
}

// Active returns the number of registered sessions.
func (l *SessionLimiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// pruneLocked drops sessions idle past the timeout. A disconnect normally
// unregisters explicitly; this catches slots leaked by dead connections.
func (l *SessionLimiter) pruneLocked(now time.Time) {
	if l.idleTimeout <= 0 {
		return
	}
	for id, entry := range l.sessions {
		if now.Sub(entry.lastActivity) > l.idleTimeout {
			logger.Debug(logger.AreaSecurity, "pruning idle session %s", id)
			delete(l.sessions, id)
		}
	}
}
