// Package pipeline wires the admission stages together: permission gate,
// content filter, dedupe, voice resolution, synthesis and the playback
// queue. One Pipeline instance serves all request sources.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"voxgate/pkg/config"
	"voxgate/pkg/eventlog"
	"voxgate/pkg/filter"
	"voxgate/pkg/model"
	"voxgate/pkg/queue"
	"voxgate/pkg/tracker"
	"voxgate/pkg/tts"
	"voxgate/pkg/users"
)

// synthBudget bounds one request's whole synthesis, retries and fallback
// walk included.
const synthBudget = 2 * time.Minute

// Outcome is the synchronous result of a submission. A drop is a normal
// outcome, not an error: errors are reserved for infrastructure failures.
type Outcome struct {
	Accepted bool            `json:"accepted"`
	Reason   model.DropReason `json:"reason,omitempty"`
	ItemID   string          `json:"item_id,omitempty"`
}

// Pipeline runs requests through gate, filter, resolution and synthesis
// into the playback queue.
type Pipeline struct {
	gate     *users.Gate
	registry *tts.Registry
	resolver *tts.Resolver
	orch     *tts.Orchestrator
	queue    *queue.Queue
	proc     *queue.Processor
	events   *eventlog.Log
	tracker  *tracker.Tracker

	// filter is swapped atomically on admin reconfiguration; requests in
	// flight keep the filter they started with.
	filter atomic.Pointer[filter.Filter]

	speed     float64
	dedupeTTL time.Duration
	dedupeMu  sync.Mutex
	dedupe    map[string]time.Time
}

// Deps carries the pipeline's collaborators.
type Deps struct {
	Gate     *users.Gate
	Registry *tts.Registry
	Resolver *tts.Resolver
	Orch     *tts.Orchestrator
	Queue    *queue.Queue
	Proc     *queue.Processor
	Events   *eventlog.Log
	Tracker  *tracker.Tracker
}

// New creates a Pipeline.
func New(deps Deps, filterCfg config.FilterConfig, speed float64, dedupeTTL time.Duration) (*Pipeline, error) {
	f, err := filter.New(filterCfg)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		gate:      deps.Gate,
		registry:  deps.Registry,
		resolver:  deps.Resolver,
		orch:      deps.Orch,
		queue:     deps.Queue,
		proc:      deps.Proc,
		events:    deps.Events,
		tracker:   deps.Tracker,
		speed:     speed,
		dedupeTTL: dedupeTTL,
		dedupe:    make(map[string]time.Time),
	}
	p.filter.Store(f)
	return p, nil
}

// Submit runs one request through admission. The returned Outcome is
// decided synchronously; synthesis continues in the background and failures
// after this point surface through the event stream.
func (p *Pipeline) Submit(ctx context.Context, req model.SpeakRequest) (Outcome, error) {
	decision, err := p.gate.Check(ctx, req.RequesterID, req.DisplayName, req.TeamLevel)
	if err != nil {
		return Outcome{}, fmt.Errorf("permission check failed: %w", err)
	}
	if !decision.Allowed {
		p.events.Publish(eventlog.CategoryGate, "request rejected", map[string]any{
			"user": req.RequesterID, "reason": string(decision.Reason),
		})
		return Outcome{Reason: decision.Reason}, nil
	}

	res := p.filter.Load().Apply(req.Text, req.DisplayName, req.Source)
	if res.Dropped {
		p.events.Publish(eventlog.CategoryFilter, "text dropped", map[string]any{
			"user": req.RequesterID, "reason": string(res.Reason),
		})
		return Outcome{Reason: res.Reason}, nil
	}

	if p.isDuplicate(req.RequesterID, res.Text) {
		p.events.Publish(eventlog.CategoryFilter, "duplicate suppressed", map[string]any{
			"user": req.RequesterID,
		})
		return Outcome{Reason: model.DropDuplicate}, nil
	}

	sel := p.resolver.Resolve(decision.Profile, res.Text, req.RequestedProvider, req.RequestedVoice)
	if sel.UsedFallbackLanguage {
		p.events.Publish(eventlog.CategoryResolve, "fallback language used", map[string]any{
			"user": req.RequesterID, "language": sel.Language,
		})
	}

	item := queue.NewItem(req.RequesterID, req.DisplayName, req.Source, res.Text)
	item.Provider = sel.Provider
	item.Voice = sel.Voice
	item.Priority = req.Priority
	if decision.Profile.VolumeGain > 0 {
		item.VolumeGain = decision.Profile.VolumeGain
	}
	item.DeferSynthesis()

	if err := p.queue.Enqueue(item); err != nil {
		var rejected *queue.RejectedError
		if errors.As(err, &rejected) {
			p.events.Publish(eventlog.CategoryQueue, "enqueue rejected", map[string]any{
				"user": req.RequesterID, "reason": string(rejected.Reason),
			})
			return Outcome{Reason: rejected.Reason}, nil
		}
		return Outcome{}, err
	}

	p.recordDedupe(req.RequesterID, res.Text)
	emotion := decision.Profile.AssignedEmotion
	go p.synthesize(item, sel, res.Text, emotion)

	return Outcome{Accepted: true, ItemID: item.ID}, nil
}

// synthesize fills the queued item's audio in the background.
func (p *Pipeline) synthesize(item *queue.Item, sel tts.Selection, text, emotion string) {
	ctx, cancel := context.WithTimeout(context.Background(), synthBudget)
	defer cancel()

	result, err := p.orch.Synthesize(ctx, sel, text, emotion)
	if err != nil {
		slog.Error("Synthesis exhausted all providers", "user", item.RequesterID, "error", err)
		p.events.Publish(eventlog.CategorySynth, "synthesis failed", map[string]any{
			"id": item.ID, "user": item.RequesterID, "error": err.Error(),
		})
		item.SynthesisFailed()
		return
	}

	// The item may have been produced by a fallback provider.
	item.Provider = result.Provider
	item.Voice = result.Voice

	if result.Streaming {
		prov, ok := p.registry.Get(result.Provider)
		if !ok {
			item.SynthesisFailed()
			return
		}
		sp, ok := prov.(tts.StreamingProvider)
		if !ok {
			item.SynthesisFailed()
			return
		}
		item.Format = prov.Capability().Format
		req := tts.Request{Text: text, Voice: result.Voice, Speed: p.speed, Emotion: emotion}
		item.Stream = func(streamCtx context.Context) (<-chan []byte, error) {
			chunks, err := sp.SynthesizeStream(streamCtx, req)
			if err != nil {
				p.tracker.TrackFailure(result.Provider)
				return nil, err
			}
			p.tracker.TrackSynthesized(result.Provider)
			return chunks, nil
		}
	} else {
		item.Audio = result.Audio.Data
		item.Format = result.Audio.Format
	}

	p.events.Publish(eventlog.CategorySynth, "synthesis complete", map[string]any{
		"id": item.ID, "provider": result.Provider, "voice": result.Voice, "streaming": result.Streaming,
	})
	item.SynthesisReady()
}

func (p *Pipeline) isDuplicate(userID, text string) bool {
	if p.dedupeTTL <= 0 {
		return false
	}
	key := userID + "\x00" + text
	now := time.Now()

	p.dedupeMu.Lock()
	defer p.dedupeMu.Unlock()
	if at, ok := p.dedupe[key]; ok && now.Sub(at) < p.dedupeTTL {
		return true
	}
	// Opportunistic prune so the map does not grow unbounded.
	for k, at := range p.dedupe {
		if now.Sub(at) >= p.dedupeTTL {
			delete(p.dedupe, k)
		}
	}
	return false
}

func (p *Pipeline) recordDedupe(userID, text string) {
	if p.dedupeTTL <= 0 {
		return
	}
	p.dedupeMu.Lock()
	p.dedupe[userID+"\x00"+text] = time.Now()
	p.dedupeMu.Unlock()
}

// SetProfanityMode rebuilds the filter with a new mode and swaps it in.
func (p *Pipeline) SetProfanityMode(mode config.ProfanityMode) error {
	cfg := p.filter.Load().Config()
	cfg.ProfanityMode = mode
	f, err := filter.New(cfg)
	if err != nil {
		return err
	}
	p.filter.Store(f)
	p.events.Publish(eventlog.CategoryAdmin, "profanity mode changed", map[string]any{"mode": string(mode)})
	return nil
}

// SetRateLimit changes the per-user queue admission window at runtime.
func (p *Pipeline) SetRateLimit(count int, window time.Duration) {
	p.queue.SetRateLimit(count, window)
	p.events.Publish(eventlog.CategoryAdmin, "rate limit changed", map[string]any{
		"count": count, "window_ms": window.Milliseconds(),
	})
}

// ClearQueue drops all pending items and returns the count removed.
func (p *Pipeline) ClearQueue() int {
	n := p.queue.Clear()
	p.events.Publish(eventlog.CategoryAdmin, "queue cleared", map[string]any{"removed": n})
	return n
}

// Skip cancels the currently playing item.
func (p *Pipeline) Skip() bool {
	skipped := p.proc.Skip()
	if skipped {
		p.events.Publish(eventlog.CategoryAdmin, "current item skipped", nil)
	}
	return skipped
}

// BlacklistUser blacklists a user and drops their pending items.
func (p *Pipeline) BlacklistUser(ctx context.Context, userID string) (int, error) {
	if err := p.gate.Blacklist(ctx, userID); err != nil {
		return 0, err
	}
	removed := p.queue.RemoveUser(userID)
	p.events.Publish(eventlog.CategoryAdmin, "user blacklisted", map[string]any{
		"user": userID, "removed_items": removed,
	})
	return removed, nil
}

// Accessors for the admin surface.

func (p *Pipeline) Gate() *users.Gate           { return p.gate }
func (p *Pipeline) Queue() *queue.Queue         { return p.queue }
func (p *Pipeline) Processor() *queue.Processor { return p.proc }
func (p *Pipeline) Events() *eventlog.Log       { return p.events }
func (p *Pipeline) Tracker() *tracker.Tracker   { return p.tracker }
