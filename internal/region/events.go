package region

import "sync"

// EventKind names a timeline notification.
type EventKind string

const (
	// EventRegionAdd fires when a new region is admitted.
	EventRegionAdd EventKind = "regionadd"
	// EventRegionRemove fires when a region falls behind the seek range.
	EventRegionRemove EventKind = "regionremove"
)

// Event carries exactly one region.
type Event[T any] struct {
	Kind   EventKind
	Region Region[T]
}

// Handler is called synchronously for each event it is subscribed to.
type Handler[T any] func(Event[T])

// Subscription represents an active handler registration.
type Subscription struct {
	id          uint64
	kind        EventKind
	unsubscribe func(kind EventKind, id uint64)
}

// Unsubscribe removes the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.unsubscribe == nil {
		return
	}
	s.unsubscribe(s.kind, s.id)
	s.unsubscribe = nil
}

type handlerEntry[T any] struct {
	id      uint64
	handler Handler[T]
}

// notifier keeps handlers per event kind in subscription order.
type notifier[T any] struct {
	mu       sync.RWMutex
	handlers map[EventKind][]handlerEntry[T]
	nextID   uint64
	closed   bool
}

func newNotifier[T any]() *notifier[T] {
	return &notifier[T]{
		handlers: make(map[EventKind][]handlerEntry[T]),
	}
}

func (n *notifier[T]) subscribe(kind EventKind, h Handler[T]) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed || h == nil {
		return &Subscription{}
	}

	id := n.nextID
	n.nextID++
	n.handlers[kind] = append(n.handlers[kind], handlerEntry[T]{id: id, handler: h})

	return &Subscription{id: id, kind: kind, unsubscribe: n.unsubscribe}
}

func (n *notifier[T]) unsubscribe(kind EventKind, id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	entries := n.handlers[kind]
	for i, e := range entries {
		if e.id == id {
			n.handlers[kind] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(n.handlers[kind]) == 0 {
		delete(n.handlers, kind)
	}
}

// notify delivers ev to every handler of its kind on the calling goroutine.
// Handlers run outside the lock so they may subscribe or unsubscribe.
func (n *notifier[T]) notify(ev Event[T]) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	entries := n.handlers[ev.Kind]
	handlers := make([]Handler[T], len(entries))
	for i, e := range entries {
		handlers[i] = e.handler
	}
	n.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// close drops every handler; later notifications are discarded.
func (n *notifier[T]) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.handlers = make(map[EventKind][]handlerEntry[T])
}
