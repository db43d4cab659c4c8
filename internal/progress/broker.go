package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

const DefaultBuffer = 64

// Broker is an in-memory pub/sub keyed by topic. A subscriber whose buffer
// is full misses the event.
type Broker struct {
	mu      sync.RWMutex
	subs    map[string]map[uint64]chan Event
	nextID  uint64
	buffer  int
	dropped atomic.Int64
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{
		subs:   map[string]map[uint64]chan Event{},
		buffer: buffer,
	}
}

func (b *Broker) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[e.Topic] {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a listener on topic. The returned cancel func closes
// the channel and is safe to call more than once.
func (b *Broker) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = map[uint64]chan Event{}
	}
	b.subs[topic][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			close(ch)
		})
	}
	return ch, cancel
}

func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Dropped is the number of events lost to full subscriber buffers.
func (b *Broker) Dropped() int64 {
	return b.dropped.Load()
}
