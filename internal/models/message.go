package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	MessageText MessageKind = "text"
	MessageFile MessageKind = "file"
)

type Message struct {
	ID        uuid.UUID   `json:"id"`
	RoomID    string      `json:"roomId"`
	SenderID  uuid.UUID   `json:"senderId"`
	Sender    string      `json:"sender"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	ReadBy    []uuid.UUID `json:"readBy"`
}

// AddReader records a read receipt. Idempotent: an already-present reader is
// a no-op. Callers must hold the owning room's lock.
func (m *Message) AddReader(userID uuid.UUID) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return false
		}
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true
}

func (m *Message) ReadByUser(userID uuid.UUID) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}
