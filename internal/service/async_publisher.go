package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/taskboard/internal/model"
)

// ErrEventBufferFull is returned by AsyncPublisher.Publish when the
// buffer is full and the event was dropped.
var ErrEventBufferFull = errors.New("event buffer full")

// ErrPublisherClosed is returned by AsyncPublisher.Publish after Close.
var ErrPublisherClosed = errors.New("event publisher closed")

const asyncPublishTimeout = 5 * time.Second

// AsyncPublisher queues events in a bounded buffer and hands them to the
// next Publisher from a single goroutine, so a slow or unreachable sink
// never delays a request.
type AsyncPublisher struct {
	next Publisher
	log  *zap.Logger

	mu     sync.RWMutex
	closed bool
	events chan model.BoardEvent
	done   chan struct{}
}

// NewAsyncPublisher starts the delivery goroutine. size is the number of
// events buffered before new ones are dropped.
func NewAsyncPublisher(next Publisher, size int, log *zap.Logger) *AsyncPublisher {
	if size < 1 {
		size = 1
	}
	p := &AsyncPublisher{
		next:   next,
		log:    orNop(log),
		events: make(chan model.BoardEvent, size),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for ev := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), asyncPublishTimeout)
		if err := p.next.Publish(ctx, ev); err != nil {
			p.log.Warn("deliver board event", zap.String("type", ev.Type), zap.Uint64("board_id", ev.BoardID), zap.Error(err))
		}
		cancel()
	}
}

// Publish enqueues ev without blocking. The request context is not
// carried over: delivery outlives the request.
func (p *AsyncPublisher) Publish(_ context.Context, ev model.BoardEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.events <- ev:
		return nil
	default:
		return ErrEventBufferFull
	}
}

// Close stops accepting events and waits until the buffered ones are
// delivered or ctx ends.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	p.mu.Unlock()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
