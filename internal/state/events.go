package state

// EventType identifies what changed on the bench.
type EventType string

const (
	EventOperatorAdded   EventType = "operator_added"
	EventOperatorRemoved EventType = "operator_removed"
	EventOperatorUpdated EventType = "operator_updated"
	EventSourceUpdated   EventType = "source_updated"
	EventScreenUpdated   EventType = "screen_updated"
	EventSystemFilled    EventType = "system_filled"
	EventTraceCompleted  EventType = "trace_completed"
)

// Event is emitted to subscribers after a bench mutation or a
// completed trace.
type Event struct {
	Type EventType

	// Label is the affected element label, where applicable.
	Label string

	// SessionID and Rays describe a completed trace.
	SessionID string
	Rays      int
}

type subscriber struct {
	id int
	fn func(Event)
}

// Subscribe registers a callback for bench events. It returns an
// unsubscribe function. Callbacks run outside the bench lock and must
// not block; slow consumers should hand off to a channel.
func (b *BenchState) Subscribe(fn func(Event)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i := range b.subs {
			if b.subs[i].id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// subscribersLocked copies the current subscriber callbacks so events
// can be delivered after the lock is released. Caller must hold b.mu.
func (b *BenchState) subscribersLocked() []func(Event) {
	if len(b.subs) == 0 {
		return nil
	}
	out := make([]func(Event), len(b.subs))
	for i, sub := range b.subs {
		out[i] = sub.fn
	}
	return out
}

func deliver(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}
