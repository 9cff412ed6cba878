package chat

import (
	"strings"
	"time"

	"chat-hub/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// notifyPreviewLimit caps the content preview carried by offline
// notifications.
const notifyPreviewLimit = 50

// Router accepts inbound messages, assigns them their canonical per-room
// order, fans them out to live subscribers, and emits offline notifications
// to members without a live session.
type Router struct {
	rooms    *RoomManager
	registry *Registry
	notifier NotificationSink
	evict    func(*Session)
	log      *zap.SugaredLogger
}

func NewRouter(rooms *RoomManager, registry *Registry, notifier NotificationSink, log *zap.SugaredLogger) *Router {
	return &Router{
		rooms:    rooms,
		registry: registry,
		notifier: notifier,
		log:      log,
	}
}

// SetEvictFunc installs the teardown used for subscribers whose send buffer
// is full. A slow consumer is disconnected rather than allowed to stall or
// reorder the room broadcast.
func (rt *Router) SetEvictFunc(evict func(*Session)) {
	rt.evict = evict
}

// Send validates, timestamps, and appends the message, then broadcasts it.
// The whole sequence runs under the room lock, so two concurrent sends
// cannot interleave their log position and their fan-out order. A failed
// precondition leaves no trace: nothing is appended and nobody is notified.
func (rt *Router) Send(s *Session, roomID, content string, kind models.MessageKind) (*models.Message, error) {
	room, ok := rt.rooms.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	if kind != models.MessageFile {
		kind = models.MessageText
	}
	if kind == models.MessageText && strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}

	room.mu.Lock()
	stamp := time.Now()
	if stamp.Before(room.lastStamp) {
		stamp = room.lastStamp
	}
	msg := &models.Message{
		ID:        uuid.New(),
		RoomID:    room.ID,
		SenderID:  s.UserID,
		Sender:    s.Username,
		Content:   content,
		Kind:      kind,
		Timestamp: stamp,
		ReadBy:    []uuid.UUID{s.UserID},
	}
	room.log = append(room.log, msg)
	room.byID[msg.ID] = msg
	room.lastStamp = stamp

	frame := encodeFrame(EvtNewMessage, msg)
	slow := room.broadcastLocked(frame, uuid.Nil)

	members := make([]uuid.UUID, 0, len(room.members))
	for uid := range room.members {
		members = append(members, uid)
	}
	room.mu.Unlock()

	for _, sub := range slow {
		rt.log.Warnw("evicting slow subscriber", "roomId", roomID, "username", sub.Username)
		if rt.evict != nil {
			rt.evict(sub)
		}
	}

	preview := truncateContent(content, notifyPreviewLimit)
	for _, uid := range members {
		if uid == s.UserID || rt.registry.IsOnline(uid) {
			continue
		}
		rt.notifier.Notify(uid, NotificationPayload{
			Type:    "new_message",
			RoomID:  room.ID,
			Sender:  s.Username,
			Content: preview,
		})
	}

	rt.log.Debugw("message routed", "roomId", roomID, "messageId", msg.ID, "sender", s.Username)
	return msg, nil
}

func truncateContent(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}
