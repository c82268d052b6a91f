package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coder/websocket"

	"github.com/hammamikhairi/bearwithme/internal/logger"
)

// Compile-time interface check.
var _ Synthesizer = (*ElevenLabsClient)(nil)

const (
	elevenWSEndpoint   = "wss://api.elevenlabs.io"
	elevenDefaultModel = "eleven_flash_v2_5"
	// Raw PCM at the player's rate; wrapped in a WAV header on arrival.
	elevenOutputFormat = "pcm_24000"
)

// ElevenOption configures the ElevenLabs client.
type ElevenOption func(*ElevenLabsClient)

// WithElevenModel sets the ElevenLabs model ID.
func WithElevenModel(model string) ElevenOption {
	return func(c *ElevenLabsClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithElevenEndpoint overrides the websocket base URL (tests).
func WithElevenEndpoint(base string) ElevenOption {
	return func(c *ElevenLabsClient) { c.endpoint = base }
}

// WithElevenTimeout bounds a single synthesis round trip.
func WithElevenTimeout(d time.Duration) ElevenOption {
	return func(c *ElevenLabsClient) { c.timeout = d }
}

// ElevenLabsClient synthesizes speech over the ElevenLabs streaming
// websocket API and collects the stream into one WAV clip.
type ElevenLabsClient struct {
	apiKey   string
	voiceID  string
	model    string
	endpoint string
	timeout  time.Duration
	log      *logger.Logger
}

// NewElevenLabsClient creates a client. apiKey and voiceID must be set.
func NewElevenLabsClient(apiKey, voiceID string, log *logger.Logger, opts ...ElevenOption) (*ElevenLabsClient, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: api key must not be empty")
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voice id must not be empty")
	}
	c := &ElevenLabsClient{
		apiKey:   apiKey,
		voiceID:  voiceID,
		model:    elevenDefaultModel,
		endpoint: elevenWSEndpoint,
		timeout:  30 * time.Second,
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name implements Synthesizer.
func (c *ElevenLabsClient) Name() string { return "elevenlabs" }

// Voice implements Synthesizer.
func (c *ElevenLabsClient) Voice() string { return "eleven:" + c.voiceID }

// ---- websocket message types ----

type elevenVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// elevenInit opens the stream; the API requires a single space as its text.
type elevenInit struct {
	Text          string               `json:"text"`
	VoiceSettings *elevenVoiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string               `json:"xi_api_key"`
}

type elevenText struct {
	Text                 string `json:"text"`
	TryTriggerGeneration bool   `json:"try_trigger_generation,omitempty"`
}

type elevenAudio struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Synthesize sends text over a fresh websocket and returns the collected
// audio as WAV.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s",
		c.endpoint, c.voiceID, c.model, elevenOutputFormat)
	c.log.Debug("elevenlabs: synthesizing %d chars with voice %s", len(text), c.voiceID)

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(4 << 20)

	msgs := []any{
		elevenInit{
			Text:          " ",
			VoiceSettings: &elevenVoiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
			XiAPIKey:      c.apiKey,
		},
		elevenText{Text: text + " ", TryTriggerGeneration: true},
		elevenText{Text: ""}, // end of input
	}
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("elevenlabs: encode: %w", err)
		}
		if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
			return nil, fmt.Errorf("elevenlabs: write: %w", err)
		}
	}

	var pcm bytes.Buffer
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// The server closes normally once the final chunk is sent.
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure && pcm.Len() > 0 {
				break
			}
			return nil, fmt.Errorf("elevenlabs: read: %w", err)
		}
		var resp elevenAudio
		if err := json.Unmarshal(data, &resp); err != nil {
			c.log.Debug("elevenlabs: skipping undecodable message: %v", err)
			continue
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("elevenlabs: %s: %s", resp.Error, resp.Message)
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs: decode audio: %w", err)
			}
			pcm.Write(chunk)
		}
		if resp.IsFinal {
			break
		}
	}
	conn.Close(websocket.StatusNormalClosure, "done")

	if pcm.Len() == 0 {
		return nil, errors.New("elevenlabs: no audio received")
	}
	c.log.Debug("elevenlabs: got %d bytes of PCM", pcm.Len())
	return EncodeWAV(pcm.Bytes(), PlaybackFormat), nil
}
