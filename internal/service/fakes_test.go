package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/iliyamo/taskboard/internal/model"
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.BoardEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.BoardEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type memAvatars struct{ puts int }

func (a *memAvatars) PutAvatar(_ context.Context, userID uint64, _ string, body io.Reader, _ int64) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	a.puts++
	return fmt.Sprintf("https://objects.test/avatars/%d.png", userID), nil
}
