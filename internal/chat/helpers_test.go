package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func authedSession(name string) *Session {
	s := NewSession()
	s.UserID = uuid.New()
	s.Username = name
	s.authenticated = true
	return s
}

// drainFrames empties the session's outbound queue and decodes every frame.
func drainFrames(t *testing.T, s *Session) []Frame {
	t.Helper()
	var frames []Frame
	for {
		select {
		case raw := <-s.send:
			var f Frame
			require.NoError(t, json.Unmarshal(raw, &f))
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

// nextFrame pops and decodes a single queued frame.
func nextFrame(t *testing.T, s *Session) Frame {
	t.Helper()
	select {
	case raw := <-s.send:
		var f Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	default:
		t.Fatal("no frame queued")
		return Frame{}
	}
}

// framesOf filters drained frames by event type.
func framesOf(frames []Frame, event EventType) []Frame {
	var out []Frame
	for _, f := range frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func decodePayload[T any](t *testing.T, f Frame) T {
	t.Helper()
	var payload T
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	return payload
}

type fakeVerifier struct {
	identities map[string]Identity
}

func (v *fakeVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if id, ok := v.identities[token]; ok {
		return id, nil
	}
	return Identity{}, errors.New("invalid token")
}

func mustFrame(t *testing.T, event EventType, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(Frame{Event: event, Data: data})
	require.NoError(t, err)
	return raw
}
