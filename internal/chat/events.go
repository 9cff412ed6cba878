package chat

import (
	"encoding/json"

	"chat-hub/internal/models"
)

type EventType string

// Client → server events.
const (
	EvtAuthenticate EventType = "authenticate"
	EvtJoinRoom     EventType = "join_room"
	EvtLeaveRoom    EventType = "leave_room"
	EvtSendMessage  EventType = "send_message"
	EvtTyping       EventType = "typing"
	EvtReadMessages EventType = "read_messages"
)

// Server → client events.
const (
	EvtAuthenticated    EventType = "authenticated"
	EvtRoomJoined       EventType = "room_joined"
	EvtUserJoinedRoom   EventType = "user_joined_room"
	EvtUserLeftRoom     EventType = "user_left_room"
	EvtNewMessage       EventType = "new_message"
	EvtUserTyping       EventType = "user_typing"
	EvtUserStatusChange EventType = "user_status_change"
	EvtNotification     EventType = "notification"
	EvtError            EventType = "error"
)

// Frame is the envelope for every event crossing the socket, in both
// directions. Data carries the event-specific payload.
type Frame struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type AuthenticatePayload struct {
	Token string `json:"token"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

type SendMessagePayload struct {
	RoomID  string             `json:"roomId"`
	Content string             `json:"content"`
	Kind    models.MessageKind `json:"type"`
}

type TypingPayload struct {
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

type ReadMessagesPayload struct {
	RoomID     string   `json:"roomId"`
	MessageIDs []string `json:"messageIds"`
}

type AuthenticatedPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type RoomJoinedPayload struct {
	RoomID string             `json:"roomId"`
	Room   models.RoomSummary `json:"room"`
}

type RoomEventPayload struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

type TypingEventPayload struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

type StatusChangePayload struct {
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
}

type NotificationPayload struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes surfaced on the wire.
const (
	CodeAuthRequired = "auth_required"
	CodeRoomNotFound = "room_not_found"
	CodeValidation   = "validation_error"
	CodeBadRequest   = "bad_request"
	CodeRateLimited  = "rate_limited"
)

// encodeFrame marshals an outbound event. Payloads are our own structs, so a
// marshal failure is a programming error and yields an empty frame.
func encodeFrame(event EventType, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		data = nil
	}
	raw, _ := json.Marshal(Frame{Event: event, Data: data})
	return raw
}
