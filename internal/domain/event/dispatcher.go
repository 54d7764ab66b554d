package event

import (
	"sync"
)

// EventHandler handles installer events
type EventHandler interface {
	// Handle processes the event
	Handle(event DomainEvent) error
	// HandledEvents returns the event names this handler handles; "*" means all
	HandledEvents() []string
}

// EventDispatcher dispatches events to registered handlers
type EventDispatcher interface {
	Dispatch(event DomainEvent)
	Subscribe(handler EventHandler)
	Unsubscribe(handler EventHandler)
}

// InMemoryDispatcher delivers events to handlers in the same process
type InMemoryDispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
	async    bool
	onError  func(DomainEvent, error)
	pending  sync.WaitGroup
}

// NewInMemoryDispatcher creates a new InMemoryDispatcher. When async is set
// every handler runs on its own goroutine; call Wait to drain them.
func NewInMemoryDispatcher(async bool) *InMemoryDispatcher {
	return &InMemoryDispatcher{
		handlers: make(map[string][]EventHandler),
		async:    async,
	}
}

// OnError sets a callback for handler failures. Without one they are dropped.
func (d *InMemoryDispatcher) OnError(fn func(DomainEvent, error)) {
	d.mu.Lock()
	d.onError = fn
	d.mu.Unlock()
}

// Dispatch sends an event to the handlers subscribed to its name and to
// the wildcard handlers
func (d *InMemoryDispatcher) Dispatch(event DomainEvent) {
	d.mu.RLock()
	targets := append(append([]EventHandler(nil), d.handlers[event.EventName()]...), d.handlers["*"]...)
	onError := d.onError
	d.mu.RUnlock()

	deliver := func(h EventHandler) {
		if err := h.Handle(event); err != nil && onError != nil {
			onError(event, err)
		}
	}

	for _, h := range targets {
		if !d.async {
			deliver(h)
			continue
		}
		d.pending.Add(1)
		go func(h EventHandler) {
			defer d.pending.Done()
			deliver(h)
		}(h)
	}
}

// Wait blocks until every asynchronously dispatched event has been handled
func (d *InMemoryDispatcher) Wait() {
	d.pending.Wait()
}

// Subscribe registers a handler for the events it names
func (d *InMemoryDispatcher) Subscribe(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range handler.HandledEvents() {
		d.handlers[name] = append(d.handlers[name], handler)
	}
}

// Unsubscribe removes a handler
func (d *InMemoryDispatcher) Unsubscribe(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range handler.HandledEvents() {
		list := d.handlers[name]
		for i, h := range list {
			if h == handler {
				d.handlers[name] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

// NullDispatcher drops every event
type NullDispatcher struct{}

// NewNullDispatcher creates a new NullDispatcher
func NewNullDispatcher() *NullDispatcher {
	return &NullDispatcher{}
}

func (d *NullDispatcher) Dispatch(DomainEvent)     {}
func (d *NullDispatcher) Subscribe(EventHandler)   {}
func (d *NullDispatcher) Unsubscribe(EventHandler) {}
