package chat

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry tracks live sessions keyed by (userId, sessionId). A user is
// online iff it owns at least one registered session, so multi-device
// connections work and exactly one offline announcement fires when the last
// session goes away.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]map[uuid.UUID]*Session
	presence *PresenceBroadcaster
	log      *zap.SugaredLogger
}

func NewRegistry(presence *PresenceBroadcaster, log *zap.SugaredLogger) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]map[uuid.UUID]*Session),
		presence: presence,
		log:      log,
	}
}

// Register stores an authenticated session. If this is the user's first live
// session, the online transition is announced to everyone else.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	set := r.sessions[s.UserID]
	if set == nil {
		set = make(map[uuid.UUID]*Session)
		r.sessions[s.UserID] = set
	}
	wasOnline := len(set) > 0
	set[s.ID] = s

	var recipients []*Session
	if !wasOnline {
		recipients = r.sessionsExceptLocked(s.UserID)
	}
	r.mu.Unlock()

	r.log.Infow("session registered", "username", s.Username, "session", s.ID)
	if !wasOnline {
		r.presence.Announce(s.Username, true, recipients)
	}
}

// Unregister removes a session. Announces offline exactly once, when the
// user's last session disappears. Safe to call twice for the same session.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	set, ok := r.sessions[s.UserID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, ok := set[s.ID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(set, s.ID)
	nowOffline := len(set) == 0
	if nowOffline {
		delete(r.sessions, s.UserID)
	}

	var recipients []*Session
	if nowOffline {
		recipients = r.sessionsExceptLocked(s.UserID)
	}
	r.mu.Unlock()

	r.log.Infow("session unregistered", "username", s.Username, "session", s.ID)
	if nowOffline {
		r.presence.Announce(s.Username, false, recipients)
	}
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID]) > 0
}

// AllSessions returns a snapshot of every live session.
func (r *Registry) AllSessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, set := range r.sessions {
		for _, s := range set {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) sessionsExceptLocked(userID uuid.UUID) []*Session {
	var out []*Session
	for uid, set := range r.sessions {
		if uid == userID {
			continue
		}
		for _, s := range set {
			out = append(out, s)
		}
	}
	return out
}
