// Package queue holds the bounded, ordered playback queue and its single
// sequential processor.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxgate/pkg/model"
)

// State is the lifecycle stage of a queue item.
type State string

const (
	StatePending   State = "pending"
	StatePlaying   State = "playing"
	StateCompleted State = "completed"
	StateDropped   State = "dropped"
)

// StreamFunc starts a deferred synthesis and returns the chunk channel.
// Used for streaming providers, which synthesize only once the item
// reaches the head of the queue.
type StreamFunc func(ctx context.Context) (<-chan []byte, error)

// Item is one queued utterance.
type Item struct {
	ID          string
	RequesterID string
	DisplayName string
	Source      model.Source
	Text        string
	Provider    string
	Voice       string
	VolumeGain  float64
	Priority    int

	// Exactly one of Audio or Stream is set: pre-synthesized audio, or a
	// deferred stream started at the queue head.
	Audio  []byte
	Format string
	Stream StreamFunc

	State      State
	EnqueuedAt time.Time

	// ready is closed once Audio or Stream is populated. Items are enqueued
	// before synthesis completes so admission (capacity, rate limit) is
	// decided at arrival time; the processor waits on ready at the head.
	ready  chan struct{}
	mu     sync.Mutex
	failed bool
}

// DeferSynthesis marks the item as awaiting asynchronous synthesis.
func (it *Item) DeferSynthesis() {
	it.ready = make(chan struct{})
}

// SynthesisReady signals that Audio or Stream is populated.
func (it *Item) SynthesisReady() {
	close(it.ready)
}

// SynthesisFailed signals that synthesis gave up; the processor drops the
// item when it reaches the head.
func (it *Item) SynthesisFailed() {
	it.mu.Lock()
	it.failed = true
	it.mu.Unlock()
	close(it.ready)
}

// ReadyCh returns the synthesis-complete channel, or nil when the item was
// created with its audio already attached.
func (it *Item) ReadyCh() <-chan struct{} {
	return it.ready
}

// Failed reports whether synthesis gave up on this item.
func (it *Item) Failed() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.failed
}

// NewItem creates a pending item with a fresh ID and timestamp.
func NewItem(requesterID, displayName string, source model.Source, text string) *Item {
	return &Item{
		ID:          uuid.New().String(),
		RequesterID: requesterID,
		DisplayName: displayName,
		Source:      source,
		Text:        text,
		VolumeGain:  model.DefaultVolumeGain,
		State:       StatePending,
		EnqueuedAt:  time.Now(),
	}
}

// EstimateDuration computes the expected playback length from text length:
// len(text) * msPerChar / speed + startupBuffer. Used by the processor to
// bound how long it waits for a playback-finished signal.
func (it *Item) EstimateDuration(msPerChar int, speed float64, startupBuffer time.Duration) time.Duration {
	if speed <= 0 {
		speed = 1.0
	}
	chars := len([]rune(it.Text))
	est := time.Duration(float64(chars)*float64(msPerChar)/speed) * time.Millisecond
	return est + startupBuffer
}
