package chat

import (
	"sort"
	"sync"
	"time"

	"chat-hub/internal/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Room owns all state scoped to one room: the durable membership used for
// offline notification routing, the transient subscriber set receiving the
// live broadcast, and the ordered message log. The mutex serializes every
// mutation, which is what guarantees that subscribers observe messages in
// append order. Membership and subscription are deliberately independent: a
// connection may subscribe without being a member, and members stay members
// after disconnecting.
type Room struct {
	ID        string
	Name      string
	Kind      models.RoomKind
	CreatedAt time.Time

	mu          sync.Mutex
	members     map[uuid.UUID]struct{}
	subscribers map[uuid.UUID]*Session
	log         []*models.Message
	byID        map[uuid.UUID]*models.Message
	lastStamp   time.Time
}

func newRoom(id, name string, kind models.RoomKind) *Room {
	return &Room{
		ID:          id,
		Name:        name,
		Kind:        kind,
		CreatedAt:   time.Now(),
		members:     make(map[uuid.UUID]struct{}),
		subscribers: make(map[uuid.UUID]*Session),
		byID:        make(map[uuid.UUID]*models.Message),
	}
}

func (r *Room) Summary() models.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.RoomSummary{
		ID:          r.ID,
		Name:        r.Name,
		Kind:        r.Kind,
		MemberCount: len(r.members),
	}
}

// broadcastLocked queues a frame to every subscriber except the excluded
// user's sessions. Callers hold r.mu. Returns sessions whose buffers were
// full so the caller can deal with them after releasing the lock.
func (r *Room) broadcastLocked(frame []byte, excludeUser uuid.UUID) []*Session {
	var slow []*Session
	for _, sub := range r.subscribers {
		if sub.UserID == excludeUser {
			continue
		}
		if !sub.enqueue(frame) {
			slow = append(slow, sub)
		}
	}
	return slow
}

// RoomManager mediates room creation, lookup, and the join/leave lifecycle.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	log   *zap.SugaredLogger
}

func NewRoomManager(log *zap.SugaredLogger) *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*Room),
		log:   log,
	}
}

// Seed registers a room under a fixed id, used for the default public room
// created at startup.
func (m *RoomManager) Seed(id, name string) *Room {
	room := newRoom(id, name, models.RoomPublic)

	m.mu.Lock()
	m.rooms[id] = room
	m.mu.Unlock()

	m.log.Infow("room seeded", "roomId", id, "name", name)
	return room
}

// CreateRoom allocates a room with a fresh id. Membership is fixed here:
// the creator plus any invited participants. Joining later subscribes a
// connection to the broadcast but never alters this list.
func (m *RoomManager) CreateRoom(name string, kind models.RoomKind, creator uuid.UUID, participants []uuid.UUID) *Room {
	if kind != models.RoomPrivate {
		kind = models.RoomPublic
	}
	room := newRoom(uuid.NewString(), name, kind)
	room.members[creator] = struct{}{}
	for _, p := range participants {
		room.members[p] = struct{}{}
	}

	m.mu.Lock()
	m.rooms[room.ID] = room
	m.mu.Unlock()

	m.log.Infow("room created", "roomId", room.ID, "name", name, "kind", kind, "members", len(room.members))
	return room
}

func (m *RoomManager) Get(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

// ListRooms returns summaries sorted by name. Snapshot semantics: a
// concurrent join may be missing from the counts.
func (m *RoomManager) ListRooms() []models.RoomSummary {
	m.mu.RLock()
	rooms := lo.Values(m.rooms)
	m.mu.RUnlock()

	summaries := lo.Map(rooms, func(r *Room, _ int) models.RoomSummary {
		return r.Summary()
	})
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries
}

// Join subscribes the session to the room's broadcast and tells the other
// subscribers. The joiner gets its confirmation separately (room_joined).
func (m *RoomManager) Join(s *Session, roomID string) (models.RoomSummary, error) {
	room, ok := m.Get(roomID)
	if !ok {
		return models.RoomSummary{}, ErrRoomNotFound
	}

	frame := encodeFrame(EvtUserJoinedRoom, RoomEventPayload{Username: s.Username, RoomID: roomID})

	room.mu.Lock()
	room.subscribers[s.ID] = s
	for _, sub := range room.subscribers {
		if sub.ID == s.ID {
			continue
		}
		if !sub.enqueue(frame) {
			m.log.Warnw("join notice dropped", "roomId", roomID, "recipient", sub.Username)
		}
	}
	summary := models.RoomSummary{ID: room.ID, Name: room.Name, Kind: room.Kind, MemberCount: len(room.members)}
	room.mu.Unlock()

	s.markJoined(roomID)
	m.log.Infow("subscriber joined", "roomId", roomID, "username", s.Username)
	return summary, nil
}

// Leave drops the subscription. No-op when the session is not subscribed.
func (m *RoomManager) Leave(s *Session, roomID string) {
	if !s.unmarkJoined(roomID) {
		return
	}

	room, ok := m.Get(roomID)
	if !ok {
		return
	}

	frame := encodeFrame(EvtUserLeftRoom, RoomEventPayload{Username: s.Username, RoomID: roomID})

	room.mu.Lock()
	delete(room.subscribers, s.ID)
	slow := room.broadcastLocked(frame, uuid.Nil)
	room.mu.Unlock()

	for _, sub := range slow {
		m.log.Warnw("leave notice dropped", "roomId", roomID, "recipient", sub.Username)
	}
	m.log.Infow("subscriber left", "roomId", roomID, "username", s.Username)
}

// UnsubscribeAll silently removes the session from every room it subscribed
// to. Part of disconnect teardown; membership is left untouched.
func (m *RoomManager) UnsubscribeAll(s *Session) {
	for _, roomID := range s.drainJoined() {
		if room, ok := m.Get(roomID); ok {
			room.mu.Lock()
			delete(room.subscribers, s.ID)
			room.mu.Unlock()
		}
	}
}

// History returns a copy of the room's message log for the REST snapshot
// endpoint. ReadBy slices are copied so later receipts don't race readers.
func (m *RoomManager) History(roomID string) ([]models.Message, error) {
	room, ok := m.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	out := make([]models.Message, 0, len(room.log))
	for _, msg := range room.log {
		cp := *msg
		cp.ReadBy = append([]uuid.UUID(nil), msg.ReadBy...)
		out = append(out, cp)
	}
	return out, nil
}

// PruneHistory trims every room's log to at most keep messages, newest kept.
// Returns how many messages were dropped.
func (m *RoomManager) PruneHistory(keep int) int {
	m.mu.RLock()
	rooms := lo.Values(m.rooms)
	m.mu.RUnlock()

	dropped := 0
	for _, room := range rooms {
		room.mu.Lock()
		if excess := len(room.log) - keep; excess > 0 {
			for _, msg := range room.log[:excess] {
				delete(room.byID, msg.ID)
			}
			room.log = append([]*models.Message(nil), room.log[excess:]...)
			dropped += excess
		}
		room.mu.Unlock()
	}
	return dropped
}
