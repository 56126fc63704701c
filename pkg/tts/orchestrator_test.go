package tts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxgate/pkg/config"
	"voxgate/pkg/tracker"
)

func orchCfg(autoFallback bool) config.TTSConfig {
	return config.TTSConfig{
		Speed:          1.0,
		AutoFallback:   autoFallback,
		AttemptTimeout: config.Duration(time.Second),
		MaxRetries:     2,
		RetryBackoff:   config.Duration(time.Millisecond),
	}
}

func TestOrchestrator_TransientRetriesThenFallback(t *testing.T) {
	r := NewRegistry()
	primary := newStub("alpha", map[string]string{"en": "alpha-en"})
	primary.results = []error{
		NewTransientError("boom", nil),
		NewTransientError("boom", nil),
		NewTransientError("boom", nil),
	}
	alt := newStub("beta", map[string]string{"en": "beta-en"})
	r.Register(primary)
	r.Register(alt)
	r.SetChains(map[string][]string{"alpha": {"beta"}})

	trk := tracker.New()
	res := NewResolver(r, stubDetector{}, langCfg(), "alpha", "")
	o := NewOrchestrator(r, res, trk, orchCfg(true))

	result, err := o.Synthesize(context.Background(), Selection{Provider: "alpha", Voice: "alpha-en"}, "hello there friend", "")
	require.NoError(t, err)
	assert.Equal(t, "beta", result.Provider)
	assert.Equal(t, "beta-en", result.Voice)
	require.NotNil(t, result.Audio)

	// 1 initial + 2 retries on the primary, then one successful alt call.
	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, 1, alt.calls)

	stats := trk.Snapshot()
	assert.Equal(t, int64(2), stats["alpha"].Retries)
	assert.Equal(t, int64(1), stats["alpha"].Failures)
	assert.Equal(t, int64(1), stats["beta"].Synthesized)
	assert.Equal(t, int64(1), stats["beta"].FallbackIn)
}

func TestOrchestrator_FatalSkipsRetries(t *testing.T) {
	r := NewRegistry()
	primary := newStub("alpha", nil)
	primary.results = []error{NewFatalError(400, "bad voice")}
	alt := newStub("beta", map[string]string{"en": "beta-en"})
	r.Register(primary)
	r.Register(alt)
	r.SetChains(map[string][]string{"alpha": {"beta"}})

	res := NewResolver(r, stubDetector{}, langCfg(), "alpha", "")
	o := NewOrchestrator(r, res, tracker.New(), orchCfg(true))

	result, err := o.Synthesize(context.Background(), Selection{Provider: "alpha", Voice: "x"}, "hello there friend", "")
	require.NoError(t, err)
	assert.Equal(t, "beta", result.Provider)
	assert.Equal(t, 1, primary.calls, "fatal error must not be retried")
}

func TestOrchestrator_AllProvidersExhausted(t *testing.T) {
	r := NewRegistry()
	primary := newStub("alpha", nil)
	primary.results = []error{NewFatalError(401, "auth"), NewFatalError(401, "auth"), NewFatalError(401, "auth")}
	alt := newStub("beta", map[string]string{"en": "beta-en"})
	alt.results = []error{NewFatalError(403, "forbidden")}
	r.Register(primary)
	r.Register(alt)
	r.SetChains(map[string][]string{"alpha": {"beta"}})

	res := NewResolver(r, stubDetector{}, langCfg(), "alpha", "")
	o := NewOrchestrator(r, res, tracker.New(), orchCfg(true))

	_, err := o.Synthesize(context.Background(), Selection{Provider: "alpha", Voice: "x"}, "hello there friend", "")
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 2)
	assert.Equal(t, "alpha", exhausted.Attempts[0].Provider)
	assert.Equal(t, "beta", exhausted.Attempts[1].Provider)
}

func TestOrchestrator_AutoFallbackDisabled(t *testing.T) {
	r := NewRegistry()
	primary := newStub("alpha", nil)
	primary.results = []error{NewFatalError(400, "nope")}
	alt := newStub("beta", map[string]string{"en": "beta-en"})
	r.Register(primary)
	r.Register(alt)
	r.SetChains(map[string][]string{"alpha": {"beta"}})

	res := NewResolver(r, stubDetector{}, langCfg(), "alpha", "")
	o := NewOrchestrator(r, res, tracker.New(), orchCfg(false))

	_, err := o.Synthesize(context.Background(), Selection{Provider: "alpha", Voice: "x"}, "hello there friend", "")
	require.Error(t, err)
	assert.Equal(t, 0, alt.calls)
}

func TestOrchestrator_StreamingDefersSynthesis(t *testing.T) {
	r := NewRegistry()
	streaming := newStub("alpha", map[string]string{"en": "alpha-en"})
	streaming.cap.Streaming = true
	r.Register(streaming)

	res := NewResolver(r, stubDetector{}, langCfg(), "alpha", "")
	o := NewOrchestrator(r, res, tracker.New(), orchCfg(true))

	result, err := o.Synthesize(context.Background(), Selection{Provider: "alpha", Voice: "alpha-en"}, "hello there friend", "")
	require.NoError(t, err)
	assert.True(t, result.Streaming)
	assert.Nil(t, result.Audio)
	assert.Equal(t, 0, streaming.calls)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		code      int
		transient bool
	}{
		{500, true},
		{503, true},
		{408, true},
		{429, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, tt := range tests {
		err := FromStatusCode(tt.code, "status")
		if tt.transient {
			assert.True(t, IsTransient(err), "status %d", tt.code)
		} else {
			assert.True(t, IsFatal(err), "status %d", tt.code)
		}
	}
	assert.True(t, IsTransient(context.DeadlineExceeded))
}
