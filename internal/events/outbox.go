package events

import (
	"context"
	"time"

	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

type pending struct {
	stream string
	event  Event
}

// Outbox collects events inside a transaction; Flush publishes them once the
// transaction has committed.
type Outbox struct {
	items []pending
}

func (o *Outbox) Add(stream, eventType string, occurredAt time.Time, payload map[string]any) {
	o.items = append(o.items, pending{stream: stream, event: New(eventType, occurredAt, payload)})
}

// Reset drops collected events, e.g. after a rolled back transaction.
func (o *Outbox) Reset() {
	o.items = nil
}

func (o *Outbox) Flush(ctx context.Context, publisher Publisher, logger *logger.Logger) {
	for _, item := range o.items {
		if err := publisher.Publish(ctx, item.stream, item.event); err != nil {
			logger.Error("[Outbox][Publish]", map[string]string{
				"stream": item.stream,
				"type":   item.event.Type,
				"error":  err.Error(),
			})
		}
	}
	o.items = nil
}
