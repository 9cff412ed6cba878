package chat

import "go.uber.org/zap"

// PresenceBroadcaster pushes online/offline transitions to connected
// sessions. It is driven exclusively by the Registry, which hands it the
// recipient snapshot so no registry lock is held while frames are queued.
type PresenceBroadcaster struct {
	log *zap.SugaredLogger
}

func NewPresenceBroadcaster(log *zap.SugaredLogger) *PresenceBroadcaster {
	return &PresenceBroadcaster{log: log}
}

func (p *PresenceBroadcaster) Announce(username string, online bool, recipients []*Session) {
	frame := encodeFrame(EvtUserStatusChange, StatusChangePayload{
		Username: username,
		IsOnline: online,
	})

	for _, s := range recipients {
		if !s.enqueue(frame) {
			p.log.Warnw("presence update dropped", "recipient", s.Username, "subject", username)
		}
	}
	p.log.Infow("presence change announced", "username", username, "online", online, "recipients", len(recipients))
}
