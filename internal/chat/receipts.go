package chat

import (
	"github.com/google/uuid"
)

// ReadReceiptTracker applies read receipts to the room log. Receipts are
// monotonic set unions: a reader is added at most once and never removed.
type ReadReceiptTracker struct {
	rooms *RoomManager
}

func NewReadReceiptTracker(rooms *RoomManager) *ReadReceiptTracker {
	return &ReadReceiptTracker{rooms: rooms}
}

// MarkRead records the user as a reader of each listed message. Unknown
// rooms, unknown message ids, and duplicate receipts are silent no-ops.
func (t *ReadReceiptTracker) MarkRead(s *Session, roomID string, messageIDs []uuid.UUID) {
	room, ok := t.rooms.Get(roomID)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	for _, id := range messageIDs {
		if msg, ok := room.byID[id]; ok {
			msg.AddReader(s.UserID)
		}
	}
}
