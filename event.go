package track

import "sync"

// Event is a multicast signal targets can expose as an exported *Event
// field so persist triggers can bind to it by name. Handlers receive
// whatever arguments the source fires with.
type Event struct {
	mu       sync.Mutex
	nextID   uint64
	handlers []eventHandler
}

type eventHandler struct {
	id uint64
	fn func(args ...any)
}

// NewEvent returns a ready to use Event.
func NewEvent() *Event {
	return &Event{}
}

// Subscribe registers fn and returns a func that removes it again.
func (e *Event) Subscribe(fn func(args ...any)) func() {
	if e == nil || fn == nil {
		return func() {}
	}
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, eventHandler{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, h := range e.handlers {
				if h.id == id {
					e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

// Fire invokes every subscribed handler synchronously, in subscription order.
func (e *Event) Fire(args ...any) {
	if e == nil {
		return
	}
	e.mu.Lock()
	handlers := make([]eventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.Unlock()

	for _, h := range handlers {
		h.fn(args...)
	}
}

// Len returns the number of active subscriptions.
func (e *Event) Len() int {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}
