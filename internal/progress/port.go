package progress

// Publisher is fire-and-forget. Implementations never block and never fail
// the caller.
type Publisher interface {
	Publish(e Event)
}

type Subscriber interface {
	Subscribe(topic string) (<-chan Event, func())
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}
