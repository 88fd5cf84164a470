package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/taskboard/internal/model"
)

// stalledPublisher blocks every delivery until release is closed, like a
// broker that stopped answering.
type stalledPublisher struct {
	started chan struct{}
	release chan struct{}
	rec     recordingPublisher
}

func (p *stalledPublisher) Publish(ctx context.Context, ev model.BoardEvent) error {
	select {
	case p.started <- struct{}{}:
	default:
	}
	<-p.release
	return p.rec.Publish(ctx, ev)
}

func TestAsyncPublisherDoesNotWaitForSink(t *testing.T) {
	sink := &stalledPublisher{started: make(chan struct{}, 1), release: make(chan struct{})}
	p := NewAsyncPublisher(sink, 1, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, model.BoardEvent{Type: model.EventBoardCreated, BoardID: 1}))
	select {
	case <-sink.started:
	case <-time.After(5 * time.Second):
		t.Fatal("event never reached the sink")
	}

	// the sink is stuck on the first event: one more fits the buffer
	start := time.Now()
	require.NoError(t, p.Publish(ctx, model.BoardEvent{Type: model.EventListCreated, BoardID: 1}))
	assert.ErrorIs(t, p.Publish(ctx, model.BoardEvent{Type: model.EventCardCreated, BoardID: 1}), ErrEventBufferFull)
	assert.Less(t, time.Since(start), time.Second)

	close(sink.release)
	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, p.Close(closeCtx))
	assert.Equal(t, []string{model.EventBoardCreated, model.EventListCreated}, sink.rec.types())

	assert.ErrorIs(t, p.Publish(ctx, model.BoardEvent{Type: model.EventCardMoved}), ErrPublisherClosed)
	require.NoError(t, p.Close(closeCtx))
}

func TestAsyncPublisherCloseHonoursDeadline(t *testing.T) {
	sink := &stalledPublisher{started: make(chan struct{}, 1), release: make(chan struct{})}
	defer close(sink.release)
	p := NewAsyncPublisher(sink, 4, zap.NewNop())
	require.NoError(t, p.Publish(context.Background(), model.BoardEvent{Type: model.EventBoardCreated}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Close(ctx), context.DeadlineExceeded)
}
