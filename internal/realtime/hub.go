// Package realtime fans board events out to connected clients through
// redis pub/sub, one channel per board.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/taskboard/internal/model"
)

// Channel is the redis channel carrying the events of a board.
func Channel(boardID uint64) string {
	return fmt.Sprintf("board:%d:events", boardID)
}

// Hub publishes and subscribes to board event channels.
type Hub struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewHub(rdb *redis.Client, log *zap.Logger) *Hub {
	return &Hub{rdb: rdb, log: log}
}

// Publish sends ev to its board channel.
func (h *Hub) Publish(ctx context.Context, ev model.BoardEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, Channel(ev.BoardID), body).Err()
}

// Subscription delivers the events of one board until closed.
type Subscription struct {
	C      <-chan model.BoardEvent
	pubsub *redis.PubSub
}

// Close stops delivery and closes C.
func (s *Subscription) Close() error { return s.pubsub.Close() }

// Subscribe listens to a board channel. The subscription is confirmed by
// redis before Subscribe returns, so events published afterwards are not
// missed. Undecodable messages are skipped.
func (h *Hub) Subscribe(ctx context.Context, boardID uint64) (*Subscription, error) {
	ps := h.rdb.Subscribe(ctx, Channel(boardID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Channel(boardID), err)
	}
	out := make(chan model.BoardEvent, 16)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var ev model.BoardEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.log.Warn("realtime: bad event payload", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return &Subscription{C: out, pubsub: ps}, nil
}
