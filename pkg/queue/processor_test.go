package queue

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxgate/pkg/config"
	"voxgate/pkg/eventlog"
	"voxgate/pkg/model"
	"voxgate/pkg/tracker"
)

// recordingSink captures played payloads in order.
type recordingSink struct {
	mu     sync.Mutex
	played []string
	delay  time.Duration
}

func (s *recordingSink) Play(ctx context.Context, _ string, audio io.Reader, _ float64) error {
	data, err := io.ReadAll(audio)
	if err != nil {
		return err
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.played = append(s.played, string(data))
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.played))
	copy(out, s.played)
	return out
}

func procCfg() config.QueueConfig {
	return config.QueueConfig{
		MsPerChar:     1,
		StartupBuffer: config.Duration(100 * time.Millisecond),
	}
}

func audioItem(user, payload string) *Item {
	it := NewItem(user, user, model.SourceChat, payload)
	it.Audio = []byte(payload)
	it.Format = "mp3"
	it.Provider = "test"
	return it
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestProcessor_PlaysInOrder(t *testing.T) {
	q := newTestQueue(10)
	sink := &recordingSink{}
	p := NewProcessor(q, sink, tracker.New(), eventlog.New(16), procCfg(), 1.0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.NoError(t, q.Enqueue(audioItem("a", "one")))
	require.NoError(t, q.Enqueue(audioItem("b", "two")))
	require.NoError(t, q.Enqueue(audioItem("c", "three")))

	waitFor(t, func() bool { return len(sink.snapshot()) == 3 })
	assert.Equal(t, []string{"one", "two", "three"}, sink.snapshot())
}

func TestProcessor_TracksPlayed(t *testing.T) {
	q := newTestQueue(10)
	trk := tracker.New()
	p := NewProcessor(q, &recordingSink{}, trk, eventlog.New(16), procCfg(), 1.0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	it := audioItem("a", "one")
	require.NoError(t, q.Enqueue(it))

	waitFor(t, func() bool { return it.State == StateCompleted })
	assert.Equal(t, int64(1), trk.Snapshot()["test"].Played)
}

func TestProcessor_SkipCancelsCurrent(t *testing.T) {
	q := newTestQueue(10)
	sink := &recordingSink{delay: 2 * time.Second}
	p := NewProcessor(q, sink, tracker.New(), eventlog.New(16), procCfg(), 1.0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	it := audioItem("a", "slow")
	require.NoError(t, q.Enqueue(it))

	waitFor(t, func() bool { return p.Current() != nil })
	assert.True(t, p.Skip())
	waitFor(t, func() bool { return it.State == StateDropped })
	assert.Empty(t, sink.snapshot())

	// Nothing playing anymore: skip is a no-op.
	assert.False(t, p.Skip())
}

func TestProcessor_PauseHoldsQueue(t *testing.T) {
	q := newTestQueue(10)
	sink := &recordingSink{}
	p := NewProcessor(q, sink, tracker.New(), eventlog.New(16), procCfg(), 1.0)
	p.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.NoError(t, q.Enqueue(audioItem("a", "held")))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sink.snapshot(), "paused processor must not consume")

	p.Resume()
	waitFor(t, func() bool { return len(sink.snapshot()) == 1 })
}

func TestProcessor_WaitsForDeferredSynthesis(t *testing.T) {
	q := newTestQueue(10)
	sink := &recordingSink{}
	p := NewProcessor(q, sink, tracker.New(), eventlog.New(16), procCfg(), 1.0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	it := NewItem("a", "a", model.SourceChat, "deferred")
	it.Provider = "test"
	it.DeferSynthesis()
	require.NoError(t, q.Enqueue(it))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sink.snapshot(), "item must not play before synthesis is ready")

	it.Audio = []byte("late audio")
	it.Format = "mp3"
	it.SynthesisReady()
	waitFor(t, func() bool { return it.State == StateCompleted })
	assert.Equal(t, []string{"late audio"}, sink.snapshot())
}

func TestProcessor_DropsFailedSynthesis(t *testing.T) {
	q := newTestQueue(10)
	sink := &recordingSink{}
	p := NewProcessor(q, sink, tracker.New(), eventlog.New(16), procCfg(), 1.0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	it := NewItem("a", "a", model.SourceChat, "doomed")
	it.DeferSynthesis()
	require.NoError(t, q.Enqueue(it))

	next := audioItem("b", "next")
	require.NoError(t, q.Enqueue(next))

	it.SynthesisFailed()
	waitFor(t, func() bool { return next.State == StateCompleted })
	assert.Equal(t, StateDropped, it.State)
	assert.Equal(t, []string{"next"}, sink.snapshot())
}

func TestProcessor_StreamingItem(t *testing.T) {
	q := newTestQueue(10)
	sink := &recordingSink{}
	p := NewProcessor(q, sink, tracker.New(), eventlog.New(16), procCfg(), 1.0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	started := make(chan struct{})
	it := NewItem("a", "a", model.SourceChat, "streamed text")
	it.Provider = "test"
	it.Format = "mp3"
	it.Stream = func(_ context.Context) (<-chan []byte, error) {
		close(started)
		ch := make(chan []byte, 3)
		ch <- []byte("str")
		ch <- []byte("eam")
		close(ch)
		return ch, nil
	}

	require.NoError(t, q.Enqueue(it))
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("stream never started")
	}
	waitFor(t, func() bool { return it.State == StateCompleted })
	assert.Equal(t, []string{"stream"}, sink.snapshot())
}
