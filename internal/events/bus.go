// Package events is the in-process event bus: components publish typed
// lifecycle payloads, the gateway fans them out to clients.
package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Task lifecycle
	EventTaskCreated       EventType = "task.created"
	EventTaskStatusChanged EventType = "task.status_changed"

	// Chat transcript
	EventMessageCreated EventType = "message.created"
	EventMessageUpdated EventType = "message.updated"

	// Results
	EventResultCreated EventType = "result.created"

	// Tool dispatch
	EventToolCall EventType = "tool.call"

	// Internal (analytics/tracing)
	EventLLMCall EventType = "internal.llm.call"
)

// EventSource identifies the component that emitted an event.
type EventSource string

const (
	SourceOrchestrator EventSource = "orchestrator"
	SourceExecutor     EventSource = "executor"
	SourcePlanner      EventSource = "planner"
	SourceTools        EventSource = "tools"
	SourceGateway      EventSource = "gateway"
)

// Event is one entry on the bus.
type Event struct {
	ID        string         `json:"id"`
	TaskID    string         `json:"task_id,omitempty"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    EventSource    `json:"source"`
	Payload   map[string]any `json:"payload"`
}

var eventSeq uint64

func generateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), atomic.AddUint64(&eventSeq, 1))
}

// Subscriber is a function that receives events.
type Subscriber func(Event)

type subscription struct {
	types   []EventType
	handler Subscriber
}

func (s *subscription) wants(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	for _, want := range s.types {
		if want == t {
			return true
		}
	}
	return false
}

// Bus delivers published events to subscribers on a dedicated dispatch
// goroutine and keeps a bounded history for late readers. Publishing
// never blocks; under pressure events are dropped, not queued unbounded.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	closed bool

	incoming chan Event
	done     chan struct{}
	history  ring
}

// NewBus creates a bus whose channel buffer and history both hold
// bufferSize events.
func NewBus(bufferSize int) *Bus {
	b := &Bus{
		subs:     make(map[int]*subscription),
		incoming: make(chan Event, bufferSize),
		done:     make(chan struct{}),
		history:  ring{slots: make([]Event, bufferSize)},
	}
	go b.run()
	return b
}

func (b *Bus) run() {
	for {
		select {
		case e := <-b.incoming:
			b.history.add(e)
			b.fanOut(e)
		case <-b.done:
			return
		}
	}
}

func (b *Bus) fanOut(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.wants(e.Type) {
			go sub.handler(e)
		}
	}
}

// Publish enqueues an event. Dropped silently if the bus is closed or
// the buffer is full.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return
	}
	select {
	case b.incoming <- event:
	default:
	}
}

// Subscribe registers a handler for the given event types (all types
// when none are given) and returns an unsubscribe function.
func (b *Bus) Subscribe(handler Subscriber, eventTypes ...EventType) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = &subscription{types: eventTypes, handler: handler}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// History returns up to limit most recent events, oldest first.
func (b *Bus) History(limit int) []Event {
	return b.history.recent(limit)
}

// Close stops dispatch. Pending undelivered events are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}

// ring is a fixed-size circular history of delivered events.
type ring struct {
	mu    sync.RWMutex
	slots []Event
	pos   int
	count int
}

func (r *ring) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[r.pos] = e
	r.pos = (r.pos + 1) % len(r.slots)
	if r.count < len(r.slots) {
		r.count++
	}
}

func (r *ring) recent(n int) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n > r.count {
		n = r.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]Event, n)
	start := (r.pos - n + len(r.slots)) % len(r.slots)
	for i := range out {
		out[i] = r.slots[(start+i)%len(r.slots)]
	}
	return out
}
