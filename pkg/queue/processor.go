package queue

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"voxgate/pkg/config"
	"voxgate/pkg/eventlog"
	"voxgate/pkg/tracker"
)

// watchdogGrace is added on top of the doubled duration estimate before the
// processor gives up on a hung playback.
const watchdogGrace = 5 * time.Second

// Processor is the single sequential consumer of the queue: it pops the
// head item, plays it to completion through the sink, then moves on.
// Overlapping playback is impossible because there is exactly one of these.
type Processor struct {
	queue   *Queue
	sink    Sink
	tracker *tracker.Tracker
	events  *eventlog.Log

	msPerChar     int
	speed         float64
	startupBuffer time.Duration

	mu      sync.Mutex
	current *Item
	cancel  context.CancelFunc
	paused  bool
	resume  chan struct{}
}

// NewProcessor creates a Processor. Run must be called to start consuming.
func NewProcessor(q *Queue, sink Sink, trk *tracker.Tracker, events *eventlog.Log, cfg config.QueueConfig, speed float64) *Processor {
	return &Processor{
		queue:         q,
		sink:          sink,
		tracker:       trk,
		events:        events,
		msPerChar:     cfg.MsPerChar,
		speed:         speed,
		startupBuffer: time.Duration(cfg.StartupBuffer),
		resume:        make(chan struct{}),
	}
}

// Run consumes the queue until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	slog.Info("Playback processor started")
	for {
		item := p.queue.Pop()
		if item == nil {
			select {
			case <-p.queue.Notify():
				continue
			case <-ctx.Done():
				return
			}
		}

		p.waitIfPaused(ctx)
		if ctx.Err() != nil {
			return
		}

		p.play(ctx, item)
	}
}

func (p *Processor) play(ctx context.Context, item *Item) {
	// Items enqueued before synthesis completed are not playable until the
	// pipeline signals readiness.
	if ready := item.ReadyCh(); ready != nil {
		select {
		case <-ready:
		case <-ctx.Done():
			return
		}
	}
	if item.Failed() {
		item.State = StateDropped
		p.events.Publish(eventlog.CategoryPlayback, "item dropped, synthesis failed", map[string]any{
			"id": item.ID, "user": item.DisplayName,
		})
		return
	}

	est := item.EstimateDuration(p.msPerChar, p.speed, p.startupBuffer)
	playCtx, cancel := context.WithTimeout(ctx, est*2+watchdogGrace)

	p.mu.Lock()
	item.State = StatePlaying
	p.current = item
	p.cancel = cancel
	p.mu.Unlock()

	p.events.Publish(eventlog.CategoryPlayback, "playback started", map[string]any{
		"id": item.ID, "user": item.DisplayName, "provider": item.Provider, "estimate_ms": est.Milliseconds(),
	})

	err := p.playAudio(playCtx, item)
	cancel()

	p.mu.Lock()
	p.current = nil
	p.cancel = nil
	p.mu.Unlock()

	if err != nil {
		item.State = StateDropped
		slog.Warn("Playback failed", "id", item.ID, "provider", item.Provider, "error", err)
		p.events.Publish(eventlog.CategoryPlayback, "playback failed", map[string]any{
			"id": item.ID, "error": err.Error(),
		})
		return
	}

	item.State = StateCompleted
	p.tracker.TrackPlayed(item.Provider)
	p.events.Publish(eventlog.CategoryPlayback, "playback finished", map[string]any{
		"id": item.ID, "provider": item.Provider,
	})
}

func (p *Processor) playAudio(ctx context.Context, item *Item) error {
	if item.Stream != nil {
		chunks, err := item.Stream(ctx)
		if err != nil {
			return err
		}
		return p.sink.Play(ctx, item.Format, newStreamReader(ctx, chunks), item.VolumeGain)
	}
	return p.sink.Play(ctx, item.Format, bytes.NewReader(item.Audio), item.VolumeGain)
}

// Skip cancels the currently playing item, if any, and returns whether
// something was skipped. Pending items are untouched.
func (p *Processor) Skip() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return false
	}
	slog.Info("Skipping current playback", "id", p.current.ID)
	p.cancel()
	return true
}

// Current returns the item being played, or nil.
func (p *Processor) Current() *Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Pause stops consuming after the current item finishes. Pending items
// stay queued.
func (p *Processor) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		p.paused = true
		p.resume = make(chan struct{})
	}
}

// Resume restarts consumption.
func (p *Processor) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		p.paused = false
		close(p.resume)
	}
}

// Paused reports whether consumption is paused.
func (p *Processor) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Processor) waitIfPaused(ctx context.Context) {
	p.mu.Lock()
	paused := p.paused
	resume := p.resume
	p.mu.Unlock()
	if !paused {
		return
	}
	select {
	case <-resume:
	case <-ctx.Done():
	}
}
