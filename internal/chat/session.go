package chat

import (
	"sync"

	"github.com/google/uuid"
)

// Session is one live socket connection. Identity fields are zero until the
// connection authenticates. The joined set tracks this connection's transient
// room subscriptions; the reader goroutine mutates it on join/leave, but
// teardown may run on whatever goroutine noticed the session die (the write
// pump, a sender evicting a slow subscriber, hub shutdown), so it sits behind
// the session mutex along with the authenticated flag.
type Session struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Username string

	mu            sync.Mutex
	authenticated bool
	joined        map[string]struct{}

	send chan []byte
	done chan struct{}

	closeOnce    sync.Once
	teardownOnce sync.Once
}

const sendBufferSize = 256

func NewSession() *Session {
	return &Session{
		ID:     uuid.New(),
		joined: make(map[string]struct{}),
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// enqueue offers a frame to the outbound queue without blocking. A full
// buffer or a closed session reports false; the caller decides whether that
// means dropping the frame or evicting the session.
func (s *Session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- frame:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

func (s *Session) setAuthenticated() {
	s.mu.Lock()
	s.authenticated = true
	s.mu.Unlock()
}

func (s *Session) isAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *Session) markJoined(roomID string) {
	s.mu.Lock()
	s.joined[roomID] = struct{}{}
	s.mu.Unlock()
}

// unmarkJoined removes the subscription record and reports whether it existed.
func (s *Session) unmarkJoined(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.joined[roomID]
	if ok {
		delete(s.joined, roomID)
	}
	return ok
}

// drainJoined empties the subscription record and returns what it held.
func (s *Session) drainJoined() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.joined))
	for roomID := range s.joined {
		out = append(out, roomID)
	}
	s.joined = make(map[string]struct{})
	return out
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
