package chat

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Identity is what a verified credential resolves to.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

// IdentityVerifier turns the opaque token from the authenticate event into
// a verified identity. The auth package provides the JWT-backed
// implementation; the hub only cares about this boundary.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Hub wires the session, presence, room, and routing components together
// and dispatches inbound frames to them. One Hub per process.
type Hub struct {
	verifier IdentityVerifier

	Registry *Registry
	Rooms    *RoomManager
	Router   *Router
	Typing   *TypingCoordinator
	Receipts *ReadReceiptTracker
	Queue    *PendingQueue

	log *zap.SugaredLogger
}

func NewHub(verifier IdentityVerifier, log *zap.SugaredLogger) *Hub {
	presence := NewPresenceBroadcaster(log)
	registry := NewRegistry(presence, log)
	rooms := NewRoomManager(log)
	queue := NewPendingQueue(log)
	router := NewRouter(rooms, registry, queue, log)
	typing := NewTypingCoordinator(rooms, log)
	receipts := NewReadReceiptTracker(rooms)

	h := &Hub{
		verifier: verifier,
		Registry: registry,
		Rooms:    rooms,
		Router:   router,
		Typing:   typing,
		Receipts: receipts,
		Queue:    queue,
		log:      log,
	}
	router.SetEvictFunc(h.Disconnect)
	return h
}

// HandleFrame processes one inbound client event. Everything except
// authenticate requires an authenticated session.
func (h *Hub) HandleFrame(ctx context.Context, s *Session, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.sendError(s, CodeBadRequest, "malformed frame")
		return
	}

	if frame.Event == EvtAuthenticate {
		h.handleAuthenticate(ctx, s, frame.Data)
		return
	}

	if !s.isAuthenticated() {
		h.sendError(s, CodeAuthRequired, ErrNotAuthed.Error())
		return
	}

	switch frame.Event {
	case EvtJoinRoom:
		h.handleJoin(s, frame.Data)
	case EvtLeaveRoom:
		h.handleLeave(s, frame.Data)
	case EvtSendMessage:
		h.handleSend(s, frame.Data)
	case EvtTyping:
		h.handleTyping(s, frame.Data)
	case EvtReadMessages:
		h.handleReadMessages(s, frame.Data)
	default:
		h.sendError(s, CodeBadRequest, "unknown event: "+string(frame.Event))
	}
}

// Disconnect tears a session down: typing timers cancelled, subscriptions
// removed, registry entry dropped (which announces offline if it was the
// last one). Room membership is deliberately left alone. Idempotent.
func (h *Hub) Disconnect(s *Session) {
	s.teardownOnce.Do(func() {
		s.close()
		if s.isAuthenticated() {
			h.Typing.CancelUser(s.UserID)
			h.Rooms.UnsubscribeAll(s)
			h.Registry.Unregister(s)
		}
		h.log.Infow("session torn down", "session", s.ID, "username", s.Username)
	})
}

// Shutdown closes every live session.
func (h *Hub) Shutdown() {
	for _, s := range h.Registry.AllSessions() {
		h.Disconnect(s)
	}
	h.log.Info("hub shut down")
}

func (h *Hub) handleAuthenticate(ctx context.Context, s *Session, data json.RawMessage) {
	var payload AuthenticatePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Token == "" {
		s.enqueue(encodeFrame(EvtAuthenticated, AuthenticatedPayload{Success: false, Error: "missing token"}))
		return
	}

	identity, err := h.verifier.Verify(ctx, payload.Token)
	if err != nil {
		h.log.Warnw("authentication failed", "session", s.ID, "error", err)
		s.enqueue(encodeFrame(EvtAuthenticated, AuthenticatedPayload{Success: false, Error: "Invalid token"}))
		return
	}

	// A session's identity is fixed at its first successful authenticate.
	// Repeating the same credential is an idempotent ack; a token for a
	// different user cannot rebind a live session.
	if s.isAuthenticated() {
		if identity.UserID != s.UserID {
			s.enqueue(encodeFrame(EvtAuthenticated, AuthenticatedPayload{Success: false, Error: "session already authenticated"}))
			return
		}
		s.enqueue(encodeFrame(EvtAuthenticated, AuthenticatedPayload{Success: true}))
		return
	}

	s.UserID = identity.UserID
	s.Username = identity.Username
	s.setAuthenticated()

	h.Registry.Register(s)
	s.enqueue(encodeFrame(EvtAuthenticated, AuthenticatedPayload{Success: true}))
	h.Queue.Flush(s)
}

func (h *Hub) handleJoin(s *Session, data json.RawMessage) {
	var payload JoinRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(s, CodeBadRequest, "malformed join_room payload")
		return
	}

	summary, err := h.Rooms.Join(s, payload.RoomID)
	if err != nil {
		h.sendError(s, CodeRoomNotFound, "room not found: "+payload.RoomID)
		return
	}
	s.enqueue(encodeFrame(EvtRoomJoined, RoomJoinedPayload{RoomID: payload.RoomID, Room: summary}))
}

func (h *Hub) handleLeave(s *Session, data json.RawMessage) {
	var payload LeaveRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(s, CodeBadRequest, "malformed leave_room payload")
		return
	}
	h.Rooms.Leave(s, payload.RoomID)
}

func (h *Hub) handleSend(s *Session, data json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(s, CodeBadRequest, "malformed send_message payload")
		return
	}

	_, err := h.Router.Send(s, payload.RoomID, payload.Content, payload.Kind)
	switch {
	case errors.Is(err, ErrRoomNotFound):
		h.sendError(s, CodeRoomNotFound, "room not found: "+payload.RoomID)
	case errors.Is(err, ErrEmptyMessage):
		h.sendError(s, CodeValidation, ErrEmptyMessage.Error())
	}
}

func (h *Hub) handleTyping(s *Session, data json.RawMessage) {
	var payload TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(s, CodeBadRequest, "malformed typing payload")
		return
	}
	h.Typing.SetTyping(s, payload.RoomID, payload.IsTyping)
}

func (h *Hub) handleReadMessages(s *Session, data json.RawMessage) {
	var payload ReadMessagesPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(s, CodeBadRequest, "malformed read_messages payload")
		return
	}

	ids := make([]uuid.UUID, 0, len(payload.MessageIDs))
	for _, raw := range payload.MessageIDs {
		if id, err := uuid.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	h.Receipts.MarkRead(s, payload.RoomID, ids)
}

func (h *Hub) sendError(s *Session, code, message string) {
	s.enqueue(encodeFrame(EvtError, ErrorPayload{Code: code, Message: message}))
}
