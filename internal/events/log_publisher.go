package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

// LogPublisher writes events to the application log. Used when no broker is configured.
type LogPublisher struct {
	logger *logger.Logger
}

func NewLogPublisher(logger *logger.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, stream string, event Event) error {
	fields := map[string]string{
		"stream":   stream,
		"event_id": event.ID,
		"type":     event.Type,
	}
	for k, v := range event.Payload {
		fields[k] = fmt.Sprintf("%v", v)
	}
	p.logger.Info("[Publish][event]", fields)
	return nil
}

// MemoryPublisher keeps published events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, _ string, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Types returns the published event types in order.
func (p *MemoryPublisher) Types() []string {
	var types []string
	for _, e := range p.Events() {
		types = append(types, e.Type)
	}
	return types
}
