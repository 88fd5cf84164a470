package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/taskboard/internal/model"
)

// Forwarder receives every consumed event, typically the realtime hub.
type Forwarder interface {
	Publish(ctx context.Context, ev model.BoardEvent) error
}

// Consumer drains ActivityQueue, appending each event to
// <dir>/activity.log and forwarding it.
type Consumer struct {
	url     string
	dir     string
	forward Forwarder
	log     *zap.Logger

	mu sync.Mutex // serializes writes to the log file
}

// NewConsumer builds a consumer; forward may be nil.
func NewConsumer(url, dir string, forward Forwarder, log *zap.Logger) *Consumer {
	if dir == "" {
		dir = "logs"
	}
	return &Consumer{url: url, dir: dir, forward: forward, log: log}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff (capped at 30s) whenever the broker connection drops.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := dial(c.url)
		if err != nil {
			c.log.Warn("activity consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("activity consumer: loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("activity consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(ActivityQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, ActivityQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("activity consumer started", zap.String("queue", ActivityQueue))

	for d := range msgs {
		if err := c.Handle(ctx, d.Body); err != nil {
			c.log.Warn("activity consumer: handle message failed", zap.Error(err))
			_ = d.Nack(false, false) // do not requeue poison messages
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// Handle processes one message body: the event is appended to the
// activity log and then forwarded. Forwarding failures are logged only.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	ev, err := decodeEvent(body)
	if err != nil {
		return err
	}
	if err := c.appendLine(activityLine(ev)); err != nil {
		return err
	}
	if c.forward != nil {
		if err := c.forward.Publish(ctx, ev); err != nil {
			c.log.Warn("activity consumer: forward failed", zap.Uint64("board_id", ev.BoardID), zap.Error(err))
		}
	}
	return nil
}

func (c *Consumer) appendLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, "activity.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
