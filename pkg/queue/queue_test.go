package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxgate/pkg/model"
)

func newTestQueue(maxSize int) *Queue {
	return New(maxSize, NewRateLimiter(0, time.Second))
}

func chatItem(user, text string, priority int) *Item {
	it := NewItem(user, user, model.SourceChat, text)
	it.Priority = priority
	return it
}

func TestQueue_PriorityThenFIFO(t *testing.T) {
	q := newTestQueue(10)

	first := chatItem("a", "first high", 5)
	require.NoError(t, q.Enqueue(first))
	require.NoError(t, q.Enqueue(chatItem("b", "low", 1)))
	second := chatItem("c", "second high", 5)
	require.NoError(t, q.Enqueue(second))
	require.NoError(t, q.Enqueue(chatItem("d", "mid", 3)))

	got := make([]string, 0, 4)
	for it := q.Pop(); it != nil; it = q.Pop() {
		got = append(got, it.Text)
	}
	assert.Equal(t, []string{"first high", "second high", "mid", "low"}, got)
}

func TestQueue_FullRejects(t *testing.T) {
	q := newTestQueue(2)
	require.NoError(t, q.Enqueue(chatItem("a", "one", 0)))
	require.NoError(t, q.Enqueue(chatItem("b", "two", 0)))

	err := q.Enqueue(chatItem("c", "three", 0))
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, model.DropQueueFull, rejected.Reason)
	assert.Equal(t, 2, q.Len())
}

func TestQueue_RateLimitRejects(t *testing.T) {
	q := New(10, NewRateLimiter(2, 10*time.Second))

	require.NoError(t, q.Enqueue(chatItem("alice", "one", 0)))
	require.NoError(t, q.Enqueue(chatItem("alice", "two", 0)))

	err := q.Enqueue(chatItem("alice", "three", 0))
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, model.DropRateLimited, rejected.Reason)

	// Manual submissions bypass the limiter.
	manual := NewItem("alice", "alice", model.SourceManual, "manual")
	assert.NoError(t, q.Enqueue(manual))
}

func TestQueue_FullRejectionDoesNotChargeRateWindow(t *testing.T) {
	q := New(1, NewRateLimiter(1, 10*time.Second))
	require.NoError(t, q.Enqueue(chatItem("bob", "occupies the slot", 0)))

	// A full queue must reject with queue_full, and the rejection must not
	// count against alice's window.
	err := q.Enqueue(chatItem("alice", "bounced", 0))
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, model.DropQueueFull, rejected.Reason)

	require.NotNil(t, q.Pop())
	assert.NoError(t, q.Enqueue(chatItem("alice", "first accepted", 0)))
}

func TestQueue_ClearEmptyReturnsZero(t *testing.T) {
	q := newTestQueue(10)
	assert.Equal(t, 0, q.Clear())

	require.NoError(t, q.Enqueue(chatItem("a", "one", 0)))
	require.NoError(t, q.Enqueue(chatItem("b", "two", 0)))
	assert.Equal(t, 2, q.Clear())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ClearMarksDropped(t *testing.T) {
	q := newTestQueue(10)
	it := chatItem("a", "one", 0)
	require.NoError(t, q.Enqueue(it))
	q.Clear()
	assert.Equal(t, StateDropped, it.State)
}

func TestQueue_RemoveUser(t *testing.T) {
	q := newTestQueue(10)
	require.NoError(t, q.Enqueue(chatItem("alice", "one", 0)))
	require.NoError(t, q.Enqueue(chatItem("bob", "two", 0)))
	require.NoError(t, q.Enqueue(chatItem("alice", "three", 0)))

	assert.Equal(t, 2, q.RemoveUser("alice"))
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, "bob", q.Pop().RequesterID)
}

func TestItem_EstimateDuration(t *testing.T) {
	it := NewItem("a", "a", model.SourceChat, "0123456789") // 10 chars
	est := it.EstimateDuration(65, 1.0, 800*time.Millisecond)
	assert.Equal(t, 650*time.Millisecond+800*time.Millisecond, est)

	// Faster speech shortens the estimate.
	fast := it.EstimateDuration(65, 2.0, 0)
	assert.Equal(t, 325*time.Millisecond, fast)
}
