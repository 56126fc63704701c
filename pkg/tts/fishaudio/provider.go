// Package fishaudio implements synthesis against the Fish Audio REST API.
package fishaudio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"voxgate/pkg/config"
	"voxgate/pkg/tts"
)

const apiURL = "https://api.fish.audio/v1/tts"

// Provider implements tts.Provider for Fish Audio. Voices are community
// reference IDs, so there is no per-language default table: this provider
// is only useful through explicit voice assignments.
type Provider struct {
	apiKey  string
	modelID string
	client  *http.Client
	url     string
}

// NewProvider creates a Fish Audio provider.
func NewProvider(cfg config.FishAudioConfig) *Provider {
	return &Provider{
		apiKey:  cfg.Key,
		modelID: cfg.Model,
		client:  &http.Client{},
		url:     apiURL,
	}
}

func (p *Provider) ID() string { return "fish-audio" }

func (p *Provider) Capability() tts.Capability {
	return tts.Capability{Format: "mp3"}
}

// requestBody is the JSON payload for the Fish Audio TTS endpoint.
type requestBody struct {
	Text        string `json:"text"`
	ReferenceID string `json:"reference_id"`
	ModelID     string `json:"model,omitempty"`
	Format      string `json:"format"`
	Mp3Bitrate  int    `json:"mp3_bitrate,omitempty"`
	Latency     string `json:"latency,omitempty"`
}

// Synthesize generates one complete MP3 payload.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	if req.Voice == "" {
		return nil, tts.NewFatalError(0, "no reference voice configured for Fish Audio")
	}

	text := req.Text
	if req.Emotion != "" {
		// The s1 model reads parenthesised markers as delivery hints.
		text = fmt.Sprintf("(%s) %s", req.Emotion, text)
	}

	jsonData, err := json.Marshal(requestBody{
		Text:        text,
		ReferenceID: req.Voice,
		ModelID:     p.modelID,
		Format:      "mp3",
		Mp3Bitrate:  128,
		Latency:     "normal",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		tts.Log(p.ID(), req.Voice, req.Text, 0, err)
		return nil, tts.NewTransientError("fish audio request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		tts.Log(p.ID(), req.Voice, req.Text, resp.StatusCode, nil)
		return nil, tts.FromStatusCode(resp.StatusCode, fmt.Sprintf("fish audio api error: %s", body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, tts.NewTransientError("failed to read audio body", err)
	}
	if len(data) == 0 {
		tts.Log(p.ID(), req.Voice, req.Text, resp.StatusCode, nil)
		return nil, tts.NewTransientError("received empty audio from fish audio", nil)
	}

	tts.Log(p.ID(), req.Voice, req.Text, resp.StatusCode, nil)
	return &tts.Audio{Data: data, Format: "mp3"}, nil
}
