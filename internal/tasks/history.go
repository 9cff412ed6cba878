package tasks

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"chat-hub/internal/chat"
)

// HistoryPruner periodically trims each room's in-memory log so long-lived
// rooms don't grow without bound. Retention only; durable storage is out of
// scope.
type HistoryPruner struct {
	rooms *chat.RoomManager
	keep  int
	cron  *cron.Cron
	log   *zap.SugaredLogger
}

func NewHistoryPruner(rooms *chat.RoomManager, keep int, log *zap.SugaredLogger) *HistoryPruner {
	return &HistoryPruner{
		rooms: rooms,
		keep:  keep,
		log:   log,
	}
}

func (p *HistoryPruner) Start() error {
	c := cron.New()

	_, err := c.AddFunc("@every 10m", func() {
		if dropped := p.rooms.PruneHistory(p.keep); dropped > 0 {
			p.log.Infow("room history pruned", "dropped", dropped, "keep", p.keep)
		}
	})
	if err != nil {
		return err
	}

	c.Start()
	p.cron = c
	return nil
}

func (p *HistoryPruner) Stop() {
	if p.cron != nil {
		p.cron.Stop()
	}
}
