package chat

import (
	"context"
	"sync"
	"testing"

	"chat-hub/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(tokens map[string]Identity) *Hub {
	hub := NewHub(&fakeVerifier{identities: tokens}, testLogger())
	hub.Rooms.Seed("general", "General")
	return hub
}

func connect(t *testing.T, hub *Hub, token string) *Session {
	t.Helper()
	s := NewSession()
	hub.HandleFrame(context.Background(), s, mustFrame(t, EvtAuthenticate, AuthenticatePayload{Token: token}))

	// The authenticated ack is always the first frame; pending
	// notifications, if any, follow and stay queued for the test.
	frame := nextFrame(t, s)
	require.Equal(t, EvtAuthenticated, frame.Event)
	require.True(t, decodePayload[AuthenticatedPayload](t, frame).Success)
	return s
}

func join(t *testing.T, hub *Hub, s *Session, roomID string) {
	t.Helper()
	hub.HandleFrame(context.Background(), s, mustFrame(t, EvtJoinRoom, JoinRoomPayload{RoomID: roomID}))
	frames := framesOf(drainFrames(t, s), EvtRoomJoined)
	require.Len(t, frames, 1)
	require.Equal(t, roomID, decodePayload[RoomJoinedPayload](t, frames[0]).RoomID)
}

func testIdentities() (map[string]Identity, Identity, Identity) {
	alice := Identity{UserID: uuid.New(), Username: "alice"}
	bob := Identity{UserID: uuid.New(), Username: "bob"}
	return map[string]Identity{"tok-alice": alice, "tok-bob": bob}, alice, bob
}

func TestSendAndReadScenario(t *testing.T) {
	tokens, alice, bob := testIdentities()
	hub := newTestHub(tokens)

	a := connect(t, hub, "tok-alice")
	b := connect(t, hub, "tok-bob")
	join(t, hub, a, "general")
	join(t, hub, b, "general")
	drainFrames(t, a)
	drainFrames(t, b)

	hub.HandleFrame(context.Background(), a, mustFrame(t, EvtSendMessage, SendMessagePayload{
		RoomID:  "general",
		Content: "hi",
		Kind:    models.MessageText,
	}))

	frames := framesOf(drainFrames(t, b), EvtNewMessage)
	require.Len(t, frames, 1)
	msg := decodePayload[models.Message](t, frames[0])
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, alice.UserID, msg.SenderID)
	assert.Equal(t, "hi", msg.Content)
	assert.NotEqual(t, uuid.Nil, msg.ID)
	assert.Equal(t, []uuid.UUID{alice.UserID}, msg.ReadBy)

	hub.HandleFrame(context.Background(), b, mustFrame(t, EvtReadMessages, ReadMessagesPayload{
		RoomID:     "general",
		MessageIDs: []string{msg.ID.String()},
	}))

	history, err := hub.Rooms.History("general")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.ElementsMatch(t, []uuid.UUID{alice.UserID, bob.UserID}, history[0].ReadBy)
}

func TestSendToUnknownRoomSignalsSender(t *testing.T) {
	tokens, _, _ := testIdentities()
	hub := newTestHub(tokens)

	a := connect(t, hub, "tok-alice")
	b := connect(t, hub, "tok-bob")
	join(t, hub, b, "general")
	drainFrames(t, b)

	hub.HandleFrame(context.Background(), a, mustFrame(t, EvtSendMessage, SendMessagePayload{
		RoomID:  "nonexistent",
		Content: "hi",
		Kind:    models.MessageText,
	}))

	errs := framesOf(drainFrames(t, a), EvtError)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeRoomNotFound, decodePayload[ErrorPayload](t, errs[0]).Code)

	assert.Empty(t, framesOf(drainFrames(t, b), EvtNewMessage), "nobody else hears about the failure")
}

func TestEmptyMessageSignalsValidation(t *testing.T) {
	tokens, _, _ := testIdentities()
	hub := newTestHub(tokens)

	a := connect(t, hub, "tok-alice")
	hub.HandleFrame(context.Background(), a, mustFrame(t, EvtSendMessage, SendMessagePayload{
		RoomID: "general",
		Kind:   models.MessageText,
	}))

	errs := framesOf(drainFrames(t, a), EvtError)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeValidation, decodePayload[ErrorPayload](t, errs[0]).Code)
}

func TestInvalidTokenLeavesSessionUnauthenticated(t *testing.T) {
	tokens, _, _ := testIdentities()
	hub := newTestHub(tokens)

	s := NewSession()
	hub.HandleFrame(context.Background(), s, mustFrame(t, EvtAuthenticate, AuthenticatePayload{Token: "forged"}))

	frames := framesOf(drainFrames(t, s), EvtAuthenticated)
	require.Len(t, frames, 1)
	payload := decodePayload[AuthenticatedPayload](t, frames[0])
	assert.False(t, payload.Success)
	assert.NotEmpty(t, payload.Error)

	hub.HandleFrame(context.Background(), s, mustFrame(t, EvtJoinRoom, JoinRoomPayload{RoomID: "general"}))
	errs := framesOf(drainFrames(t, s), EvtError)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeAuthRequired, decodePayload[ErrorPayload](t, errs[0]).Code)
}

func TestDisconnectAnnouncesOfflineExactlyOnce(t *testing.T) {
	tokens, _, _ := testIdentities()
	hub := newTestHub(tokens)

	b := connect(t, hub, "tok-bob")
	a := connect(t, hub, "tok-alice")
	drainFrames(t, b)

	hub.Disconnect(a)
	hub.Disconnect(a)

	frames := framesOf(drainFrames(t, b), EvtUserStatusChange)
	require.Len(t, frames, 1)
	payload := decodePayload[StatusChangePayload](t, frames[0])
	assert.Equal(t, "alice", payload.Username)
	assert.False(t, payload.IsOnline)
}

func TestDisconnectRemovesSubscriptionsAndTimers(t *testing.T) {
	tokens, alice, _ := testIdentities()
	hub := newTestHub(tokens)

	a := connect(t, hub, "tok-alice")
	private := hub.Rooms.CreateRoom("team", models.RoomPrivate, alice.UserID, nil)
	join(t, hub, a, "general")
	hub.HandleFrame(context.Background(), a, mustFrame(t, EvtTyping, TypingPayload{RoomID: "general", IsTyping: true}))
	require.Equal(t, 1, hub.Typing.ActiveTimers())

	hub.Disconnect(a)

	assert.Equal(t, 0, hub.Typing.ActiveTimers())
	room, ok := hub.Rooms.Get("general")
	require.True(t, ok)
	assert.Empty(t, subscriberIDs(room))

	// Teardown never touches durable membership.
	assert.Equal(t, 1, private.Summary().MemberCount)
}

// Teardown can run on whatever goroutine noticed the session die, while the
// session's own reader is still joining and leaving rooms. Run under -race.
func TestTeardownConcurrentWithJoinLeave(t *testing.T) {
	tokens, _, _ := testIdentities()
	hub := newTestHub(tokens)

	for i := 0; i < 25; i++ {
		s := connect(t, hub, "tok-alice")
		_, err := hub.Rooms.Join(s, "general")
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hub.Rooms.Join(s, "general")
				hub.Rooms.Leave(s, "general")
			}
		}()
		go func() {
			defer wg.Done()
			hub.Disconnect(s)
		}()
		wg.Wait()

		// A join that raced past teardown is cleaned up here; the room
		// must end each round with no trace of the session.
		hub.Rooms.UnsubscribeAll(s)
		room, ok := hub.Rooms.Get("general")
		require.True(t, ok)
		assert.False(t, subscriberIDs(room)[s.ID])
	}
}

func TestReauthenticateCannotSwitchIdentity(t *testing.T) {
	tokens, alice, _ := testIdentities()
	hub := newTestHub(tokens)

	a := connect(t, hub, "tok-alice")

	// A valid credential for a different user does not rebind the session.
	hub.HandleFrame(context.Background(), a, mustFrame(t, EvtAuthenticate, AuthenticatePayload{Token: "tok-bob"}))
	frames := framesOf(drainFrames(t, a), EvtAuthenticated)
	require.Len(t, frames, 1)
	payload := decodePayload[AuthenticatedPayload](t, frames[0])
	assert.False(t, payload.Success)
	assert.NotEmpty(t, payload.Error)
	assert.Equal(t, alice.UserID, a.UserID)
	assert.Equal(t, "alice", a.Username)

	// Repeating the original credential is an idempotent ack.
	hub.HandleFrame(context.Background(), a, mustFrame(t, EvtAuthenticate, AuthenticatePayload{Token: "tok-alice"}))
	frames = framesOf(drainFrames(t, a), EvtAuthenticated)
	require.Len(t, frames, 1)
	assert.True(t, decodePayload[AuthenticatedPayload](t, frames[0]).Success)
}

func TestPendingNotificationsFlushOnAuthenticate(t *testing.T) {
	tokens, alice, bob := testIdentities()
	hub := newTestHub(tokens)

	a := connect(t, hub, "tok-alice")
	room := hub.Rooms.CreateRoom("team", models.RoomPrivate, alice.UserID, []uuid.UUID{bob.UserID})

	hub.HandleFrame(context.Background(), a, mustFrame(t, EvtSendMessage, SendMessagePayload{
		RoomID:  room.ID,
		Content: "standup in five",
		Kind:    models.MessageText,
	}))
	require.Equal(t, 1, hub.Queue.PendingFor(bob.UserID))

	b := connect(t, hub, "tok-bob")

	frames := framesOf(drainFrames(t, b), EvtNotification)
	require.Len(t, frames, 1)
	payload := decodePayload[NotificationPayload](t, frames[0])
	assert.Equal(t, "alice", payload.Sender)
	assert.Equal(t, room.ID, payload.RoomID)
	assert.Equal(t, "standup in five", payload.Content)
	assert.Equal(t, 0, hub.Queue.PendingFor(bob.UserID))
}

func TestMalformedFrameGetsBadRequest(t *testing.T) {
	tokens, _, _ := testIdentities()
	hub := newTestHub(tokens)

	a := connect(t, hub, "tok-alice")
	hub.HandleFrame(context.Background(), a, []byte("not json"))

	errs := framesOf(drainFrames(t, a), EvtError)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeBadRequest, decodePayload[ErrorPayload](t, errs[0]).Code)
}
