// Package eventlog provides the structured operational event stream.
//
// Every pipeline stage publishes {category, message, data} records here. The
// log keeps a bounded ring of recent events for inspection and fans events
// out to live subscribers (e.g. the dashboard WebSocket). It is used for
// operational debugging only, never for control flow.
package eventlog

import (
	"sync"
	"time"
)

// Event is a single structured record.
type Event struct {
	Time     time.Time      `json:"time"`
	Category string         `json:"category"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
}

// Common event categories.
const (
	CategoryGate     = "gate"
	CategoryFilter   = "filter"
	CategoryResolve  = "resolve"
	CategorySynth    = "synth"
	CategoryQueue    = "queue"
	CategoryPlayback = "playback"
	CategoryAdmin    = "admin"
)

// Log is a bounded ring buffer of events with listener fan-out.
// Safe for concurrent use.
type Log struct {
	mu        sync.RWMutex
	events    []Event
	next      int
	filled    bool
	listeners map[int]chan Event
	nextID    int
}

// defaultListenerBuf is the per-subscriber channel depth. Slow subscribers
// lose events rather than blocking publishers.
const defaultListenerBuf = 64

// New creates a Log with the given ring capacity.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = 256
	}
	return &Log{
		events:    make([]Event, capacity),
		listeners: make(map[int]chan Event),
	}
}

// Publish appends an event to the ring and notifies subscribers.
func (l *Log) Publish(category, message string, data map[string]any) {
	ev := Event{
		Time:     time.Now(),
		Category: category,
		Message:  message,
		Data:     data,
	}

	l.mu.Lock()
	l.events[l.next] = ev
	l.next = (l.next + 1) % len(l.events)
	if l.next == 0 {
		l.filled = true
	}
	chans := make([]chan Event, 0, len(l.listeners))
	for _, ch := range l.listeners {
		chans = append(chans, ch)
	}
	l.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- ev:
		default: // subscriber too slow, drop
		}
	}
}

// Recent returns up to n most recent events, oldest first.
func (l *Log) Recent(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.next
	if l.filled {
		size = len(l.events)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]Event, 0, n)
	start := l.next - n
	if start < 0 {
		start += len(l.events)
	}
	for i := 0; i < n; i++ {
		out = append(out, l.events[(start+i)%len(l.events)])
	}
	return out
}

// Subscribe registers a live listener. The returned channel receives every
// event published after the call; events are dropped if the subscriber does
// not keep up. Callers must Unsubscribe when done.
func (l *Log) Subscribe() (id int, ch <-chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := make(chan Event, defaultListenerBuf)
	id = l.nextID
	l.nextID++
	l.listeners[id] = c
	return id, c
}

// Unsubscribe removes a listener and closes its channel.
func (l *Log) Unsubscribe(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ch, ok := l.listeners[id]; ok {
		delete(l.listeners, id)
		close(ch)
	}
}
