package player

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// SessionManager is the registry of connected sessions keyed by player ID.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.Logger
}

func NewSessionManager(logger *zap.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Register adds s, closing any earlier session of the same player (reconnect).
func (sm *SessionManager) Register(s *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if old, ok := sm.sessions[s.PlayerID]; ok && old != s {
		old.Close()
		sm.logger.Info("duplicate session displaced", zap.String("player_id", s.PlayerID))
	}
	sm.sessions[s.PlayerID] = s
	sm.logger.Info("player session registered",
		zap.String("player_id", s.PlayerID),
		zap.String("arena_id", s.ArenaID))
}

// Unregister removes s unless a newer session already replaced it.
// It reports whether s was the registered session.
func (sm *SessionManager) Unregister(s *Session) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if cur, ok := sm.sessions[s.PlayerID]; !ok || cur != s {
		return false
	}
	delete(sm.sessions, s.PlayerID)
	sm.logger.Info("player session unregistered", zap.String("player_id", s.PlayerID))
	return true
}

func (sm *SessionManager) Get(playerID string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[playerID]
}

// All returns the registered sessions sorted by player ID.
func (sm *SessionManager) All() []*Session {
	sm.mu.RLock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	sm.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CloseAll closes every session; their read pumps unregister them.
func (sm *SessionManager) CloseAll() {
	sm.mu.RLock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	sm.mu.RUnlock()

	sm.logger.Info("closing all sessions", zap.Int("count", len(sessions)))
	for _, s := range sessions {
		s.Close()
	}
}
