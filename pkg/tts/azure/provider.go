// Package azure implements synthesis against the Azure Speech REST endpoint.
package azure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"voxgate/pkg/config"
	"voxgate/pkg/tts"
)

const outputFormat = "audio-24khz-160kbitrate-mono-mp3"

// Provider implements tts.Provider for Azure Speech.
type Provider struct {
	key    string
	region string
	client *http.Client
	url    string
	cap    tts.Capability
}

// NewProvider creates an Azure Speech provider.
func NewProvider(cfg config.AzureSpeechConfig) *Provider {
	return &Provider{
		key:    cfg.Key,
		region: cfg.Region,
		client: &http.Client{},
		url:    fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region),
		cap:    capability(),
	}
}

func (p *Provider) ID() string { return "azure-speech" }

func (p *Provider) Capability() tts.Capability { return p.cap }

// Synthesize generates one complete MP3 payload via the REST endpoint.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	if req.Voice == "" {
		return nil, tts.NewFatalError(0, "no voice configured for Azure Speech")
	}

	ssml := buildSSML(req)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.url, bytes.NewBufferString(ssml))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", outputFormat)
	httpReq.Header.Set("User-Agent", "voxgate")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		tts.Log(p.ID(), req.Voice, req.Text, 0, err)
		return nil, tts.NewTransientError("azure speech request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		bodyStr := string(body)
		if bodyStr == "" {
			bodyStr = "[empty body]"
		}
		tts.Log(p.ID(), req.Voice, req.Text, resp.StatusCode, nil)
		return nil, tts.FromStatusCode(resp.StatusCode, fmt.Sprintf("azure speech api error: %s", bodyStr))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, tts.NewTransientError("failed to read audio body", err)
	}
	if len(data) == 0 {
		return nil, tts.NewTransientError("azure speech returned empty audio", nil)
	}

	tts.Log(p.ID(), req.Voice, req.Text, resp.StatusCode, nil)
	return &tts.Audio{Data: data, Format: "mp3"}, nil
}

// buildSSML wraps the (escaped) text in a speak/voice envelope, with an
// optional prosody rate and an mstts express-as style for emotion-capable
// voices.
func buildSSML(req tts.Request) string {
	body := escapeXML(req.Text)

	if req.Emotion != "" {
		body = fmt.Sprintf(`<mstts:express-as style='%s'>%s</mstts:express-as>`, escapeXML(req.Emotion), body)
	}
	if req.Speed != 0 && req.Speed != 1.0 {
		body = fmt.Sprintf(`<prosody rate='%+.0f%%'>%s</prosody>`, (req.Speed-1.0)*100, body)
	}

	return fmt.Sprintf(
		`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xmlns:mstts='https://www.w3.org/2001/mstts' xml:lang='en-US'><voice name='%s'>%s</voice></speak>`,
		req.Voice, body,
	)
}

func escapeXML(text string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(text)
}

func capability() tts.Capability {
	return tts.Capability{
		Format: "mp3",
		Voices: map[string]tts.VoiceInfo{
			"en-US-AvaMultilingualNeural": {Language: "en", Gender: "female"},
			"en-US-AriaNeural":            {Language: "en", Gender: "female", SupportsEmotion: true},
			"en-US-DavisNeural":           {Language: "en", Gender: "male", SupportsEmotion: true},
			"de-DE-SeraphinaNeural":       {Language: "de", Gender: "female"},
			"fr-FR-VivienneNeural":        {Language: "fr", Gender: "female"},
			"es-ES-ElviraNeural":          {Language: "es", Gender: "female"},
			"it-IT-ElsaNeural":            {Language: "it", Gender: "female"},
			"pt-BR-FranciscaNeural":       {Language: "pt", Gender: "female"},
			"ja-JP-NanamiNeural":          {Language: "ja", Gender: "female"},
			"ko-KR-SunHiNeural":           {Language: "ko", Gender: "female"},
			"zh-CN-XiaoxiaoNeural":        {Language: "zh", Gender: "female", SupportsEmotion: true},
			"ru-RU-SvetlanaNeural":        {Language: "ru", Gender: "female"},
			"nl-NL-FennaNeural":           {Language: "nl", Gender: "female"},
			"pl-PL-ZofiaNeural":           {Language: "pl", Gender: "female"},
			"tr-TR-EmelNeural":            {Language: "tr", Gender: "female"},
		},
		DefaultByLanguage: map[string]string{
			"en": "en-US-AvaMultilingualNeural",
			"de": "de-DE-SeraphinaNeural",
			"fr": "fr-FR-VivienneNeural",
			"es": "es-ES-ElviraNeural",
			"it": "it-IT-ElsaNeural",
			"pt": "pt-BR-FranciscaNeural",
			"ja": "ja-JP-NanamiNeural",
			"ko": "ko-KR-SunHiNeural",
			"zh": "zh-CN-XiaoxiaoNeural",
			"ru": "ru-RU-SvetlanaNeural",
			"nl": "nl-NL-FennaNeural",
			"pl": "pl-PL-ZofiaNeural",
			"tr": "tr-TR-EmelNeural",
		},
	}
}
