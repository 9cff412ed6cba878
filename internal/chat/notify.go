package chat

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationSink receives notifications addressed to a user's personal
// channel. The core only emits; how (or whether) a notification reaches the
// user is the sink's business. A push gateway can implement this.
type NotificationSink interface {
	Notify(userID uuid.UUID, n NotificationPayload)
}

// PendingQueue is the default sink: it parks notifications in memory and
// flushes them to the user's sessions on the next successful authenticate.
type PendingQueue struct {
	mu      sync.Mutex
	pending map[uuid.UUID][]NotificationPayload
	limit   int
	log     *zap.SugaredLogger
}

const pendingLimit = 100

func NewPendingQueue(log *zap.SugaredLogger) *PendingQueue {
	return &PendingQueue{
		pending: make(map[uuid.UUID][]NotificationPayload),
		limit:   pendingLimit,
		log:     log,
	}
}

func (q *PendingQueue) Notify(userID uuid.UUID, n NotificationPayload) {
	q.mu.Lock()
	list := append(q.pending[userID], n)
	if len(list) > q.limit {
		list = list[len(list)-q.limit:]
	}
	q.pending[userID] = list
	q.mu.Unlock()

	q.log.Debugw("notification queued", "userId", userID, "roomId", n.RoomID, "sender", n.Sender)
}

// Flush drains the user's queue into the given session. Returns how many
// notifications were delivered.
func (q *PendingQueue) Flush(s *Session) int {
	q.mu.Lock()
	list := q.pending[s.UserID]
	delete(q.pending, s.UserID)
	q.mu.Unlock()

	delivered := 0
	for _, n := range list {
		if s.enqueue(encodeFrame(EvtNotification, n)) {
			delivered++
		}
	}
	if delivered > 0 {
		q.log.Infow("pending notifications delivered", "username", s.Username, "count", delivered)
	}
	return delivered
}

// PendingFor reports the queue depth for a user.
func (q *PendingQueue) PendingFor(userID uuid.UUID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[userID])
}
