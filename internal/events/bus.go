package events

import (
	"context"
	"log/slog"
	"sync"
)

// Bus is an in-process fan-out sink. Subscribers get a buffered channel; a
// full channel drops the event for that subscriber rather than stalling the
// publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Event
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe returns a channel receiving every subsequent event.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, ch)
	return ch
}

// Publish fans the event out to all subscribers without blocking.
func (b *Bus) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("event subscriber backlogged, dropping event",
				"type", event.Type, "asset_id", event.AssetID)
		}
	}
	return nil
}
