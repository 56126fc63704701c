// Package edgetts implements streaming synthesis over the Edge read-aloud
// websocket endpoint.
package edgetts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"voxgate/pkg/config"
	"voxgate/pkg/logging"
	"voxgate/pkg/tts"
)

// Well-known endpoint constants, overridable via environment for when
// Microsoft rotates them.
const (
	defaultBaseURL            = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	defaultOrigin             = "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold"
	defaultTrustedClientToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	defaultSecMSGecVersion    = "1-130.0.2849.68"
	defaultUserAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36 Edg/130.0.0.0"
)

// Provider implements tts.StreamingProvider for Edge TTS. The endpoint is
// unofficial, so outgoing requests are capped by a client-side limiter.
type Provider struct {
	limiter *rate.Limiter
	cap     tts.Capability
}

// NewProvider creates an Edge TTS provider.
func NewProvider(cfg config.EdgeTTSConfig) *Provider {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 50
	}
	return &Provider{
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 2),
		cap:     capability(),
	}
}

func (p *Provider) ID() string { return "edge-tts" }

func (p *Provider) Capability() tts.Capability { return p.cap }

// Synthesize collects the full stream into one payload. Normally the
// streaming path is used instead; this exists for callers that need the
// complete audio up front.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	chunks, err := p.SynthesizeStream(ctx, req)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for chunk := range chunks {
		buf.Write(chunk)
	}
	if ctx.Err() != nil {
		return nil, tts.NewTransientError("synthesis cancelled", ctx.Err())
	}
	if buf.Len() == 0 {
		return nil, tts.NewTransientError("edge tts returned no audio", nil)
	}
	return &tts.Audio{Data: buf.Bytes(), Format: "mp3"}, nil
}

// SynthesizeStream starts synthesis and emits MP3 chunks as they arrive.
func (p *Provider) SynthesizeStream(ctx context.Context, req tts.Request) (<-chan []byte, error) {
	if req.Voice == "" {
		return nil, tts.NewFatalError(0, "voice ID is required")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, tts.NewTransientError("rate limiter wait cancelled", err)
	}

	conn, err := dial(ctx)
	if err != nil {
		return nil, err
	}

	if err := sendConfig(conn); err != nil {
		conn.Close()
		return nil, tts.NewTransientError("failed to send speech.config", err)
	}

	requestID := strings.ReplaceAll(uuid.New().String(), "-", "")
	ssml := buildSSML(req.Voice, req.Text, req.Speed)
	tts.Log(p.ID(), req.Voice, req.Text, 0, nil)

	ssmlMsg := fmt.Sprintf("X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nPath:ssml\r\n\r\n%s", requestID, ssml)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssmlMsg)); err != nil {
		conn.Close()
		return nil, tts.NewTransientError("failed to send ssml", err)
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				slog.Warn("Edge TTS stream ended with error", "error", err)
				return
			}

			switch msgType {
			case websocket.TextMessage:
				if strings.Contains(string(data), "Path:turn.end") {
					return
				}
			case websocket.BinaryMessage:
				if chunk := extractAudio(data); len(chunk) > 0 {
					logging.TraceDefault("Edge TTS chunk received", "bytes", len(chunk))
					select {
					case out <- chunk:
					case <-ctx.Done():
						return
					}
				}
			}

			if ctx.Err() != nil {
				return
			}
		}
	}()
	return out, nil
}

func dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Origin", envOr("EDGE_TTS_ORIGIN", defaultOrigin))
	header.Set("Pragma", "no-cache")
	header.Set("Cache-Control", "no-cache")
	header.Set("User-Agent", envOr("EDGE_TTS_USER_AGENT", defaultUserAgent))
	header.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	header.Set("Accept-Language", "en-US,en;q=0.9")

	muid := strings.ReplaceAll(uuid.New().String(), "-", "")
	header.Set("Cookie", fmt.Sprintf("muid=%s", muid))

	token := envOr("EDGE_TTS_TRUSTED_CLIENT_TOKEN", defaultTrustedClientToken)
	url := fmt.Sprintf("%s?TrustedClientToken=%s&Sec-MS-GEC=%s&Sec-MS-GEC-Version=%s",
		envOr("EDGE_TTS_BASE_URL", defaultBaseURL),
		token,
		generateSecMSGec(token),
		envOr("EDGE_TTS_SEC_MS_GEC_VERSION", defaultSecMSGecVersion),
	)

	var conn *websocket.Conn
	var dialErr error
	for i := 0; i < 3; i++ {
		var resp *http.Response
		conn, resp, dialErr = websocket.DefaultDialer.DialContext(ctx, url, header)
		if dialErr == nil {
			return conn, nil
		}
		if resp != nil {
			slog.Warn("Edge TTS handshake failure", "status", resp.Status)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
				resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
				return nil, tts.FromStatusCode(resp.StatusCode, "websocket handshake rejected")
			}
		}
		if ctx.Err() != nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	return nil, tts.NewTransientError("websocket dial failed after retries", dialErr)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// generateSecMSGec derives the clock-bound handshake token: the current
// time rounded down to 5 minutes in Windows file-time ticks, hashed
// together with the trusted client token.
func generateSecMSGec(trustedClientToken string) string {
	ticks := float64(time.Now().Unix()) + 11644473600
	ticks -= float64(int64(ticks) % 300)
	ticks *= 1e7

	strToHash := fmt.Sprintf("%.0f%s", ticks, trustedClientToken)
	hash := sha256.Sum256([]byte(strToHash))
	return strings.ToUpper(hex.EncodeToString(hash[:]))
}

func sendConfig(conn *websocket.Conn) error {
	configMsg := "Content-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n{\"context\":{\"synthesis\":{\"audio\":{\"metadataoptions\":{\"sentenceBoundaryEnabled\":\"false\",\"wordBoundaryEnabled\":\"false\"},\"outputFormat\":\"audio-24khz-48kbitrate-mono-mp3\"}}}}"
	return conn.WriteMessage(websocket.TextMessage, []byte(configMsg))
}

func buildSSML(voice, text string, speed float64) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	body := replacer.Replace(text)
	if speed != 0 && speed != 1.0 {
		body = fmt.Sprintf("<prosody rate='%+.0f%%'>%s</prosody>", (speed-1.0)*100, body)
	}
	return fmt.Sprintf("<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'><voice name='%s'>%s</voice></speak>", voice, body)
}

// extractAudio strips the length-prefixed header from a binary websocket
// frame and returns the raw audio payload, if any.
func extractAudio(data []byte) []byte {
	if len(data) < 2 {
		return nil
	}
	headerLength := int(uint16(data[0])<<8 | uint16(data[1]))
	if len(data) < 2+headerLength {
		return nil
	}
	return data[2+headerLength:]
}

func capability() tts.Capability {
	return tts.Capability{
		Streaming: true,
		Format:    "mp3",
		Voices: map[string]tts.VoiceInfo{
			"en-US-AvaMultilingualNeural":    {Language: "en", Gender: "female"},
			"en-US-AndrewMultilingualNeural": {Language: "en", Gender: "male"},
			"en-GB-SoniaNeural":              {Language: "en", Gender: "female"},
			"de-DE-SeraphinaNeural":          {Language: "de", Gender: "female"},
			"fr-FR-VivienneNeural":           {Language: "fr", Gender: "female"},
			"es-ES-XimenaNeural":             {Language: "es", Gender: "female"},
			"it-IT-IsabellaNeural":           {Language: "it", Gender: "female"},
			"pt-BR-ThalitaNeural":            {Language: "pt", Gender: "female"},
			"ja-JP-NanamiNeural":             {Language: "ja", Gender: "female"},
			"ko-KR-SunHiNeural":              {Language: "ko", Gender: "female"},
			"zh-CN-XiaoxiaoNeural":           {Language: "zh", Gender: "female"},
			"ru-RU-SvetlanaNeural":           {Language: "ru", Gender: "female"},
			"nl-NL-ColetteNeural":            {Language: "nl", Gender: "female"},
			"pl-PL-ZofiaNeural":              {Language: "pl", Gender: "female"},
			"tr-TR-EmelNeural":               {Language: "tr", Gender: "female"},
		},
		DefaultByLanguage: map[string]string{
			"en": "en-US-AvaMultilingualNeural",
			"de": "de-DE-SeraphinaNeural",
			"fr": "fr-FR-VivienneNeural",
			"es": "es-ES-XimenaNeural",
			"it": "it-IT-IsabellaNeural",
			"pt": "pt-BR-ThalitaNeural",
			"ja": "ja-JP-NanamiNeural",
			"ko": "ko-KR-SunHiNeural",
			"zh": "zh-CN-XiaoxiaoNeural",
			"ru": "ru-RU-SvetlanaNeural",
			"nl": "nl-NL-ColetteNeural",
			"pl": "pl-PL-ZofiaNeural",
			"tr": "tr-TR-EmelNeural",
		},
	}
}
