package chat

import (
	"fmt"
	"testing"

	"chat-hub/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscriberIDs(room *Room) map[uuid.UUID]bool {
	room.mu.Lock()
	defer room.mu.Unlock()
	out := make(map[uuid.UUID]bool, len(room.subscribers))
	for id := range room.subscribers {
		out[id] = true
	}
	return out
}

func TestJoinUnknownRoom(t *testing.T) {
	rooms := NewRoomManager(testLogger())
	_, err := rooms.Join(authedSession("alice"), "nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinLeaveTracksSubscriberSet(t *testing.T) {
	rooms := NewRoomManager(testLogger())
	room := rooms.Seed("general", "General")

	sessions := make([]*Session, 5)
	for i := range sessions {
		sessions[i] = authedSession(fmt.Sprintf("user-%d", i))
		_, err := rooms.Join(sessions[i], "general")
		require.NoError(t, err)
	}

	rooms.Leave(sessions[1], "general")
	rooms.Leave(sessions[3], "general")
	_, err := rooms.Join(sessions[1], "general")
	require.NoError(t, err)

	subs := subscriberIDs(room)
	assert.True(t, subs[sessions[0].ID])
	assert.True(t, subs[sessions[1].ID], "rejoined after leaving")
	assert.True(t, subs[sessions[2].ID])
	assert.False(t, subs[sessions[3].ID], "most recent operation was leave")
	assert.True(t, subs[sessions[4].ID])
}

func TestJoinNotifiesExistingSubscribers(t *testing.T) {
	rooms := NewRoomManager(testLogger())
	rooms.Seed("general", "General")

	alice := authedSession("alice")
	_, err := rooms.Join(alice, "general")
	require.NoError(t, err)
	drainFrames(t, alice)

	bob := authedSession("bob")
	_, err = rooms.Join(bob, "general")
	require.NoError(t, err)

	frames := framesOf(drainFrames(t, alice), EvtUserJoinedRoom)
	require.Len(t, frames, 1)
	payload := decodePayload[RoomEventPayload](t, frames[0])
	assert.Equal(t, "bob", payload.Username)
	assert.Equal(t, "general", payload.RoomID)

	// The joiner does not get its own join notice.
	assert.Empty(t, framesOf(drainFrames(t, bob), EvtUserJoinedRoom))
}

func TestLeaveIsNoOpWhenNotJoined(t *testing.T) {
	rooms := NewRoomManager(testLogger())
	rooms.Seed("general", "General")

	alice := authedSession("alice")
	_, err := rooms.Join(alice, "general")
	require.NoError(t, err)
	drainFrames(t, alice)

	bob := authedSession("bob")
	rooms.Leave(bob, "general")

	assert.Empty(t, framesOf(drainFrames(t, alice), EvtUserLeftRoom))
}

func TestLeaveNotifiesRemainingSubscribers(t *testing.T) {
	rooms := NewRoomManager(testLogger())
	rooms.Seed("general", "General")

	alice := authedSession("alice")
	bob := authedSession("bob")
	_, err := rooms.Join(alice, "general")
	require.NoError(t, err)
	_, err = rooms.Join(bob, "general")
	require.NoError(t, err)
	drainFrames(t, alice)

	rooms.Leave(bob, "general")

	frames := framesOf(drainFrames(t, alice), EvtUserLeftRoom)
	require.Len(t, frames, 1)
	assert.Equal(t, "bob", decodePayload[RoomEventPayload](t, frames[0]).Username)
}

func TestUnsubscribeAllIsSilent(t *testing.T) {
	rooms := NewRoomManager(testLogger())
	room := rooms.Seed("general", "General")

	alice := authedSession("alice")
	bob := authedSession("bob")
	_, err := rooms.Join(alice, "general")
	require.NoError(t, err)
	_, err = rooms.Join(bob, "general")
	require.NoError(t, err)
	drainFrames(t, alice)

	rooms.UnsubscribeAll(bob)

	assert.Empty(t, bob.joined)
	assert.False(t, subscriberIDs(room)[bob.ID])
	assert.Empty(t, framesOf(drainFrames(t, alice), EvtUserLeftRoom))
}

func TestCreateRoomMembershipFixedAtCreation(t *testing.T) {
	rooms := NewRoomManager(testLogger())

	creator := uuid.New()
	invited := uuid.New()
	room := rooms.CreateRoom("planning", models.RoomPrivate, creator, []uuid.UUID{invited})

	summary := room.Summary()
	assert.Equal(t, models.RoomPrivate, summary.Kind)
	assert.Equal(t, 2, summary.MemberCount)

	// Joining subscribes but never grows the durable membership.
	outsider := authedSession("carol")
	_, err := rooms.Join(outsider, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, room.Summary().MemberCount)
}

func TestListRoomsSortedSummaries(t *testing.T) {
	rooms := NewRoomManager(testLogger())
	rooms.Seed("general", "General")
	rooms.CreateRoom("Alpha", models.RoomPublic, uuid.New(), nil)

	list := rooms.ListRooms()
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0].Name)
	assert.Equal(t, "General", list[1].Name)
}

func TestPruneHistoryKeepsNewest(t *testing.T) {
	rooms := NewRoomManager(testLogger())
	rooms.Seed("general", "General")
	registry := newTestRegistry()
	router := NewRouter(rooms, registry, NewPendingQueue(testLogger()), testLogger())

	alice := authedSession("alice")
	var last *models.Message
	for i := 0; i < 10; i++ {
		msg, err := router.Send(alice, "general", fmt.Sprintf("msg %d", i), models.MessageText)
		require.NoError(t, err)
		last = msg
	}

	dropped := rooms.PruneHistory(3)
	assert.Equal(t, 7, dropped)

	history, err := rooms.History("general")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, last.ID, history[2].ID)

	// Pruned messages are gone from the receipt index too.
	tracker := NewReadReceiptTracker(rooms)
	tracker.MarkRead(authedSession("bob"), "general", []uuid.UUID{history[0].ID})
	refreshed, err := rooms.History("general")
	require.NoError(t, err)
	assert.Len(t, refreshed[0].ReadBy, 2)
}
