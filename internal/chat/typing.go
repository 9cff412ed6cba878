package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// typingIdleWindow is how long a typing signal stays alive without a
// refresh before the coordinator clears it on its own.
const typingIdleWindow = 1000 * time.Millisecond

type typingKey struct {
	userID uuid.UUID
	roomID string
}

// TypingCoordinator owns the ephemeral per-(user, room) typing state. Every
// active signal has exactly one expiry timer; refreshing replaces it,
// stopping or disconnecting cancels it, and an uncancelled timer broadcasts
// "stopped" on the user's behalf.
type TypingCoordinator struct {
	rooms  *RoomManager
	window time.Duration

	mu     sync.Mutex
	timers map[typingKey]*time.Timer

	log *zap.SugaredLogger
}

func NewTypingCoordinator(rooms *RoomManager, log *zap.SugaredLogger) *TypingCoordinator {
	return &TypingCoordinator{
		rooms:  rooms,
		window: typingIdleWindow,
		timers: make(map[typingKey]*time.Timer),
		log:    log,
	}
}

// SetTyping broadcasts the transition to the room's other subscribers.
// isTyping=true arms (or re-arms) the expiry timer; false clears it.
// Unknown rooms are ignored, matching the leniency of the wire contract.
func (tc *TypingCoordinator) SetTyping(s *Session, roomID string, isTyping bool) {
	room, ok := tc.rooms.Get(roomID)
	if !ok {
		return
	}

	key := typingKey{userID: s.UserID, roomID: roomID}
	username := s.Username

	tc.mu.Lock()
	if t, ok := tc.timers[key]; ok {
		t.Stop()
		delete(tc.timers, key)
	}
	if isTyping {
		var t *time.Timer
		t = time.AfterFunc(tc.window, func() {
			tc.expire(key, username, t)
		})
		tc.timers[key] = t
	}
	tc.mu.Unlock()

	tc.broadcast(room, s.UserID, username, isTyping)
}

// expire fires when the idle window elapses without a refresh. The timer
// identity check discards stale callbacks that lost the race with a refresh.
func (tc *TypingCoordinator) expire(key typingKey, username string, self *time.Timer) {
	tc.mu.Lock()
	current, ok := tc.timers[key]
	if !ok || current != self {
		tc.mu.Unlock()
		return
	}
	delete(tc.timers, key)
	tc.mu.Unlock()

	room, ok := tc.rooms.Get(key.roomID)
	if !ok {
		return
	}
	tc.log.Debugw("typing state expired", "roomId", key.roomID, "username", username)
	tc.broadcast(room, key.userID, username, false)
}

// CancelUser stops every pending timer for the user. Called during
// disconnect teardown so no timer outlives its connection.
func (tc *TypingCoordinator) CancelUser(userID uuid.UUID) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for key, t := range tc.timers {
		if key.userID == userID {
			t.Stop()
			delete(tc.timers, key)
		}
	}
}

// ActiveTimers reports the number of armed expiry timers.
func (tc *TypingCoordinator) ActiveTimers() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.timers)
}

func (tc *TypingCoordinator) broadcast(room *Room, userID uuid.UUID, username string, isTyping bool) {
	frame := encodeFrame(EvtUserTyping, TypingEventPayload{
		Username: username,
		RoomID:   room.ID,
		IsTyping: isTyping,
	})

	room.mu.Lock()
	slow := room.broadcastLocked(frame, userID)
	room.mu.Unlock()

	for _, sub := range slow {
		tc.log.Warnw("typing update dropped", "roomId", room.ID, "recipient", sub.Username)
	}
}
