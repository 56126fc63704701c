package eventlog

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_RecentOrder(t *testing.T) {
	l := New(8)
	for i := 0; i < 5; i++ {
		l.Publish(CategoryQueue, fmt.Sprintf("ev-%d", i), nil)
	}

	got := l.Recent(3)
	require.Len(t, got, 3)
	assert.Equal(t, "ev-2", got[0].Message)
	assert.Equal(t, "ev-4", got[2].Message)
}

func TestLog_RingWrapsAround(t *testing.T) {
	l := New(4)
	for i := 0; i < 10; i++ {
		l.Publish(CategorySynth, fmt.Sprintf("ev-%d", i), nil)
	}

	got := l.Recent(0) // all
	require.Len(t, got, 4)
	assert.Equal(t, "ev-6", got[0].Message)
	assert.Equal(t, "ev-9", got[3].Message)
}

func TestLog_SubscribeReceivesEvents(t *testing.T) {
	l := New(16)
	id, ch := l.Subscribe()
	defer l.Unsubscribe(id)

	l.Publish(CategoryGate, "hello", map[string]any{"user": "alice"})

	select {
	case ev := <-ch:
		assert.Equal(t, CategoryGate, ev.Category)
		assert.Equal(t, "hello", ev.Message)
		assert.Equal(t, "alice", ev.Data["user"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestLog_SlowSubscriberDoesNotBlock(t *testing.T) {
	l := New(16)
	id, _ := l.Subscribe()
	defer l.Unsubscribe(id)

	// Publish far more than the listener buffer without reading; must not hang.
	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultListenerBuf*3; i++ {
			l.Publish(CategoryQueue, "flood", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
}

func TestLog_UnsubscribeClosesChannel(t *testing.T) {
	l := New(4)
	id, ch := l.Subscribe()
	l.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)
}
