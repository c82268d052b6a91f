// Package assess produces per-phoneme accuracy scores for a spoken
// attempt at a word.
package assess

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/logger"
	"github.com/hammamikhairi/bearwithme/internal/phoneme"
	"github.com/hammamikhairi/bearwithme/internal/speech"
)

// Compile-time interface check.
var _ domain.Assessor = (*Azure)(nil)

// Capturer records one utterance and returns it as 16 kHz mono WAV.
type Capturer interface {
	Record(ctx context.Context) ([]byte, error)
}

// AzureOption configures the Azure assessor.
type AzureOption func(*Azure)

// WithLanguage sets the recognition locale.
func WithLanguage(lang string) AzureOption {
	return func(a *Azure) {
		if lang != "" {
			a.language = lang
		}
	}
}

// WithEndpoint overrides the regional recognition endpoint (tests).
func WithEndpoint(u string) AzureOption {
	return func(a *Azure) { a.endpoint = u }
}

// WithHTTPTimeout sets the HTTP client timeout.
func WithHTTPTimeout(d time.Duration) AzureOption {
	return func(a *Azure) { a.httpClient.Timeout = d }
}

// Azure scores an attempt with the Azure Speech pronunciation assessment
// REST API at phoneme granularity.
type Azure struct {
	capture    Capturer
	key        string
	endpoint   string
	language   string
	httpClient *http.Client
	log        *logger.Logger
}

// NewAzure creates an assessor that records with capture and scores with
// the given credentials.
func NewAzure(capture Capturer, key, region string, log *logger.Logger, opts ...AzureOption) *Azure {
	a := &Azure{
		capture:    capture,
		key:        key,
		endpoint:   fmt.Sprintf("https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1", region),
		language:   "en-US",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assess records one attempt and scores it against word.
func (a *Azure) Assess(ctx context.Context, word string) (*domain.ScoreSet, error) {
	wav, err := a.capture.Record(ctx)
	if err != nil {
		return nil, err
	}
	return a.Score(ctx, wav, word)
}

// ── Request / response ───────────────────────────────────────────

type assessmentParams struct {
	ReferenceText string `json:"ReferenceText"`
	GradingSystem string `json:"GradingSystem"`
	Granularity   string `json:"Granularity"`
	Dimension     string `json:"Dimension"`
	EnableMiscue  bool   `json:"EnableMiscue"`
}

type recognitionResult struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	NBest             []struct {
		Words []struct {
			Word     string `json:"Word"`
			Phonemes []struct {
				Phoneme                 string         `json:"Phoneme"`
				AccuracyScore           *float64       `json:"AccuracyScore"`
				PronunciationAssessment *accuracyBlock `json:"PronunciationAssessment"`
			} `json:"Phonemes"`
		} `json:"Words"`
	} `json:"NBest"`
}

type accuracyBlock struct {
	AccuracyScore float64 `json:"AccuracyScore"`
}

// Score sends an already recorded WAV clip for assessment.
func (a *Azure) Score(ctx context.Context, wav []byte, word string) (*domain.ScoreSet, error) {
	params, err := json.Marshal(assessmentParams{
		ReferenceText: word,
		GradingSystem: "HundredMark",
		Granularity:   "Phoneme",
		Dimension:     "Comprehensive",
		EnableMiscue:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding assessment params: %w", err)
	}

	q := url.Values{}
	q.Set("language", a.language)
	q.Set("format", "detailed")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"?"+q.Encode(), bytes.NewReader(wav))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/wav; codecs=audio/pcm; samplerate=%d", speech.CaptureSampleRate))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Pronunciation-Assessment", base64.StdEncoding.EncodeToString(params))
	req.Header.Set("User-Agent", "BearWithMe/1.0")

	a.log.Debug("azure assess: sending %d bytes for %q", len(wav), word)
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assessment request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("azure assessment error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result recognitionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding assessment: %w", err)
	}
	return parseResult(result)
}

// parseResult collects phoneme scores of the best hypothesis in spoken
// order, stress digits stripped. A phoneme heard twice keeps its first
// position and its last score.
func parseResult(r recognitionResult) (*domain.ScoreSet, error) {
	if r.RecognitionStatus != "Success" {
		return nil, fmt.Errorf("recognition status %q: %w", r.RecognitionStatus, domain.ErrNoSpeech)
	}
	scores := domain.NewScoreSet()
	if len(r.NBest) == 0 {
		return scores, nil
	}
	for _, w := range r.NBest[0].Words {
		for _, p := range w.Phonemes {
			if strings.TrimSpace(p.Phoneme) == "" {
				continue
			}
			var score float64
			switch {
			case p.PronunciationAssessment != nil:
				score = p.PronunciationAssessment.AccuracyScore
			case p.AccuracyScore != nil:
				score = *p.AccuracyScore
			default:
				continue
			}
			scores.Set(phoneme.Normalize(p.Phoneme), score)
		}
	}
	return scores, nil
}
