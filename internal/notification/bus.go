package notification

import (
	"context"
	"sync"

	"autoshield/internal/registry/models"
)

// DefaultSubscriberBuffer is the per-subscriber channel size.
const DefaultSubscriberBuffer = 64

// Bus is an in-process sink that fans notifications out to subscribers.
// Delivery never blocks: a subscriber whose channel is full misses the
// notification.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan models.ChangeNotification
	nextID  uint64
	buffer  int
	metrics *Metrics
}

func NewBus(metrics *Metrics) *Bus {
	return &Bus{
		subs:    make(map[uint64]chan models.ChangeNotification),
		buffer:  DefaultSubscriberBuffer,
		metrics: metrics,
	}
}

func (b *Bus) Name() string { return "bus" }

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe() (<-chan models.ChangeNotification, func()) {
	ch := make(chan models.ChangeNotification, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of active subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) Deliver(_ context.Context, n models.ChangeNotification) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
			b.metrics.recordSubscriberDropped()
		}
	}
	return nil
}
