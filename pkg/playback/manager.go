// Package playback renders synthesized audio to the system output device.
package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	"voxgate/pkg/config"
)

const targetSampleRate = 48000

// Manager implements the playback sink using gopxl/beep. It decodes each
// payload in memory and blocks until the speaker has drained it.
type Manager struct {
	mu                 sync.Mutex
	baseVolume         float64
	speakerInitialized bool
	sampleRate         beep.SampleRate
}

// New creates a Manager. The speaker is initialized lazily on first play.
func New(cfg config.PlaybackConfig) *Manager {
	vol := cfg.Volume
	if vol <= 0 {
		vol = 1.0
	}
	return &Manager{baseVolume: vol}
}

// Play decodes and plays one payload, scaled by the per-item gain on top of
// the configured base volume. Blocks until playback completes or ctx is
// cancelled; cancellation stops the speaker immediately.
func (m *Manager) Play(ctx context.Context, format string, audio io.Reader, gain float64) error {
	streamer, fmtInfo, err := decode(format, audio)
	if err != nil {
		return fmt.Errorf("failed to decode %s audio: %w", format, err)
	}
	defer streamer.Close()

	if err := m.ensureSpeaker(); err != nil {
		return err
	}

	m.mu.Lock()
	effective := m.baseVolume * gain
	rate := m.sampleRate
	m.mu.Unlock()

	resampled := beep.Resample(3, fmtInfo.SampleRate, rate, streamer)
	volStreamer := &effects.Volume{
		Streamer: resampled,
		Base:     2,
		Volume:   gainToPower(effective),
		Silent:   effective <= 0.01,
	}

	done := make(chan struct{})
	ctrl := &beep.Ctrl{Streamer: volStreamer}
	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Lock()
		ctrl.Streamer = nil
		speaker.Unlock()
		slog.Debug("Playback interrupted", "reason", ctx.Err())
		return ctx.Err()
	}
}

// SetVolume changes the base volume for subsequent items.
func (m *Manager) SetVolume(vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if vol < 0 {
		vol = 0
	}
	m.baseVolume = vol
}

// Volume returns the current base volume.
func (m *Manager) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseVolume
}

func (m *Manager) ensureSpeaker() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.speakerInitialized {
		return nil
	}
	sr := beep.SampleRate(targetSampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	m.speakerInitialized = true
	m.sampleRate = sr
	return nil
}

// decode picks the decoder from the declared payload format.
func decode(format string, r io.Reader) (beep.StreamSeekCloser, beep.Format, error) {
	switch format {
	case "wav":
		return wav.Decode(r)
	default:
		return mp3.Decode(io.NopCloser(r))
	}
}

// gainToPower maps a linear gain onto beep's base-2 exponent scale:
// 1.0 is unity, 2.0 one doubling, values near zero are silent.
func gainToPower(gain float64) float64 {
	if gain <= 0.01 {
		return -10
	}
	return math.Log2(gain)
}
