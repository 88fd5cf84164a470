// Package queue carries board activity over RabbitMQ: the publisher sends
// every board event to a durable queue and the consumer appends it to the
// activity log and forwards it to the realtime hub.
package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/taskboard/internal/model"
)

// ActivityQueue is the durable queue board events are published to.
const ActivityQueue = "board.activity"

func encodeEvent(ev model.BoardEvent) ([]byte, error) {
	return json.Marshal(ev)
}

func decodeEvent(body []byte) (model.BoardEvent, error) {
	var ev model.BoardEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.BoardID == 0 {
		return ev, fmt.Errorf("incomplete event: type=%q board=%d", ev.Type, ev.BoardID)
	}
	return ev, nil
}

// activityLine renders one event as a single human readable log line.
func activityLine(ev model.BoardEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | board_id=%d | actor_id=%d",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.BoardID, ev.ActorID)
	if ev.ListID != 0 {
		fmt.Fprintf(&b, " | list_id=%d", ev.ListID)
	}
	if ev.CardID != 0 {
		fmt.Fprintf(&b, " | card_id=%d", ev.CardID)
	}
	b.WriteByte('\n')
	return b.String()
}
