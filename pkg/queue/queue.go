package queue

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"voxgate/pkg/model"
)

// RejectedError reports why an enqueue was refused.
type RejectedError struct {
	Reason model.DropReason
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("enqueue rejected: %s", e.Reason)
}

// Queue is the bounded, ordered playback queue. Ordering is explicit
// priority (higher first), then enqueue time (FIFO within a priority).
type Queue struct {
	mu      sync.RWMutex
	items   []*Item
	maxSize int
	limiter *RateLimiter

	// notify wakes the processor when an item arrives. Buffered so an
	// enqueue never blocks on a busy processor.
	notify chan struct{}
}

// New creates a queue bounded at maxSize with a per-user rate limiter.
func New(maxSize int, limiter *RateLimiter) *Queue {
	return &Queue{
		items:   make([]*Item, 0, maxSize),
		maxSize: maxSize,
		limiter: limiter,
		notify:  make(chan struct{}, 1),
	}
}

// Enqueue adds an item in priority order. Capacity is checked before the
// rate limiter so a full-queue rejection never charges the requester's
// window. Manual submissions bypass the rate limit; everything else is
// counted against the requester's window.
func (q *Queue) Enqueue(item *Item) error {
	q.mu.Lock()
	if len(q.items) >= q.maxSize {
		q.mu.Unlock()
		return &RejectedError{Reason: model.DropQueueFull}
	}

	if item.Source != model.SourceManual && !q.limiter.Allow(item.RequesterID) {
		q.mu.Unlock()
		return &RejectedError{Reason: model.DropRateLimited}
	}

	// Insert before the first item with strictly lower priority, keeping
	// FIFO order among equals.
	pos := len(q.items)
	for i, existing := range q.items {
		if existing.Priority < item.Priority {
			pos = i
			break
		}
	}
	q.items = append(q.items, nil)
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = item
	depth := len(q.items)
	q.mu.Unlock()

	slog.Debug("Queue: enqueued item", "id", item.ID, "user", item.RequesterID, "priority", item.Priority, "depth", depth)

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes and returns the head item, or nil when empty.
func (q *Queue) Pop() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Snapshot returns a copy of the pending items in playback order.
func (q *Queue) Snapshot() []*Item {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*Item, len(q.items))
	copy(out, q.items)
	return out
}

// Clear drops every pending item and returns how many were removed. The
// currently playing item is owned by the processor and is not affected.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	for _, item := range q.items {
		item.State = StateDropped
	}
	q.items = q.items[:0]
	return n
}

// RemoveUser drops pending items from one requester. Used when a user is
// blacklisted mid-stream.
func (q *Queue) RemoveUser(userID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	removed := 0
	for _, item := range q.items {
		if item.RequesterID == userID {
			item.State = StateDropped
			removed++
			continue
		}
		kept = append(kept, item)
	}
	q.items = kept
	return removed
}

// SetRateLimit swaps the rate limiter parameters at runtime.
func (q *Queue) SetRateLimit(count int, window time.Duration) {
	q.limiter.SetLimit(count, window)
}

// Notify returns the channel the processor blocks on for new items.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}
