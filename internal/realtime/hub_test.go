package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/taskboard/internal/model"
)

func TestHubDeliversBoardEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	hub := NewHub(rdb, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub, err := hub.Subscribe(ctx, 7)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, hub.Publish(ctx, model.BoardEvent{Type: model.EventListCreated, BoardID: 8}))
	require.NoError(t, hub.Publish(ctx, model.BoardEvent{Type: model.EventCardMoved, BoardID: 7, CardID: 3}))

	select {
	case ev := <-sub.C:
		assert.Equal(t, model.EventCardMoved, ev.Type)
		assert.Equal(t, uint64(3), ev.CardID)
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "board:42:events", Channel(42))
}
