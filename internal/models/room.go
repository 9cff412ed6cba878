package models

type RoomKind string

const (
	RoomPublic  RoomKind = "public"
	RoomPrivate RoomKind = "private"
)

// RoomSummary is the read-only view handed to clients; the live room state
// (membership, subscribers, message log) is owned by the chat package.
type RoomSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Kind        RoomKind `json:"type"`
	MemberCount int      `json:"participants"`
}
