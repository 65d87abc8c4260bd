// Package notification delivers acquisition outcomes to interested
// subscribers. The pipeline publishes and does not know how outcomes are
// delivered; subscribers decide.
package notification

import (
	"sync"

	"github.com/shelfstream/shelfstream/internal/logger"
	"github.com/shelfstream/shelfstream/internal/outcome"
)

// Handler consumes one outcome. Handlers must not block; slow delivery
// belongs inside the handler, not on the publish path.
type Handler func(outcome.Outcome)

// Bus is an in-process publish/subscribe fan-out for outcomes.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	log      *logger.Logger
}

// NewBus creates an outcome bus.
func NewBus(log *logger.Logger) *Bus {
	return &Bus{log: log.WithComponent("notification")}
}

// Subscribe registers a handler for every future outcome.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers one outcome to every subscriber. A panicking subscriber
// is logged and skipped; it never takes the pipeline down.
func (b *Bus) Publish(o outcome.Outcome) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error().Interface("panic", r).Msg("Notification handler panicked")
				}
			}()
			h(o)
		}()
	}
}
