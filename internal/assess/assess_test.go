package assess

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/logger"
)

func quiet() *logger.Logger { return logger.New(logger.LevelOff, nil) }

type stubCapture struct {
	wav []byte
	err error
	n   int
}

func (c *stubCapture) Record(context.Context) ([]byte, error) {
	c.n++
	return c.wav, c.err
}

const helloResponse = `{
  "RecognitionStatus": "Success",
  "NBest": [{
    "Words": [{
      "Word": "hello",
      "Phonemes": [
        {"Phoneme": "hh", "PronunciationAssessment": {"AccuracyScore": 60}},
        {"Phoneme": "eh", "PronunciationAssessment": {"AccuracyScore": 95}},
        {"Phoneme": "l",  "PronunciationAssessment": {"AccuracyScore": 40}},
        {"Phoneme": "ow1", "AccuracyScore": 90}
      ]
    }]
  }]
}`

func TestAzureAssess(t *testing.T) {
	var header http.Header
	var query string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		query = r.URL.RawQuery
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, helloResponse)
	}))
	defer srv.Close()

	capture := &stubCapture{wav: []byte("RIFF....WAVE")}
	a := NewAzure(capture, "k3y", "westeurope", quiet(), WithEndpoint(srv.URL))

	scores, err := a.Assess(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if got := scores.String(); got != "hh:60.0 eh:95.0 l:40.0 ow:90.0" {
		t.Fatalf("scores = %s", got)
	}

	if string(body) != "RIFF....WAVE" {
		t.Fatalf("body = %q", body)
	}
	if header.Get("Ocp-Apim-Subscription-Key") != "k3y" {
		t.Fatal("missing subscription key")
	}
	if !strings.Contains(header.Get("Content-Type"), "samplerate=16000") {
		t.Fatalf("content type = %q", header.Get("Content-Type"))
	}
	if !strings.Contains(query, "language=en-US") || !strings.Contains(query, "format=detailed") {
		t.Fatalf("query = %q", query)
	}

	raw, err := base64.StdEncoding.DecodeString(header.Get("Pronunciation-Assessment"))
	if err != nil {
		t.Fatalf("assessment header not base64: %v", err)
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		t.Fatalf("assessment header not json: %v", err)
	}
	if params["ReferenceText"] != "hello" || params["Granularity"] != "Phoneme" || params["GradingSystem"] != "HundredMark" {
		t.Fatalf("params = %v", params)
	}
}

func TestAzureNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"RecognitionStatus":"NoMatch"}`)
	}))
	defer srv.Close()

	a := NewAzure(&stubCapture{wav: []byte("x")}, "k", "r", quiet(), WithEndpoint(srv.URL))
	_, err := a.Assess(context.Background(), "hello")
	if !errors.Is(err, domain.ErrNoSpeech) {
		t.Fatalf("err = %v, want ErrNoSpeech", err)
	}
}

func TestAzureHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := NewAzure(&stubCapture{wav: []byte("x")}, "k", "r", quiet(), WithEndpoint(srv.URL))
	_, err := a.Assess(context.Background(), "hello")
	if err == nil || domain.IsNoSpeech(err) || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v, want non-retryable 429", err)
	}
}

func TestAzureCaptureErrorPassesThrough(t *testing.T) {
	a := NewAzure(&stubCapture{err: domain.ErrNoSpeech}, "k", "r", quiet(), WithEndpoint("http://127.0.0.1:1"))
	if _, err := a.Assess(context.Background(), "hello"); !errors.Is(err, domain.ErrNoSpeech) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseResultEdgeCases(t *testing.T) {
	s, err := parseResult(recognitionResult{RecognitionStatus: "Success"})
	if err != nil || !s.Empty() {
		t.Fatalf("no hypotheses: %v, %v", s, err)
	}

	var r recognitionResult
	_ = json.Unmarshal([]byte(`{"RecognitionStatus":"Success","NBest":[{"Words":[
		{"Phonemes":[{"Phoneme":"l","AccuracyScore":50},{"Phoneme":""},{"Phoneme":"k"}]},
		{"Phonemes":[{"Phoneme":"L","AccuracyScore":85}]}]}]}`), &r)
	s, err = parseResult(r)
	if err != nil {
		t.Fatalf("parseResult: %v", err)
	}
	if got := s.String(); got != "l:85.0" {
		t.Fatalf("scores = %s, want repeat to overwrite in place", got)
	}
}

// ── whisper ──────────────────────────────────────────────────────

func TestScoreLetters(t *testing.T) {
	tests := []struct {
		target, heard string
		want          string
	}{
		{"cat", "cat", "c:100.0 a:100.0 t:100.0"},
		{"cat", "hat", "c:0.0 a:100.0 t:100.0"},
		{"night", "knight", "n:100.0 i:100.0 g:100.0 h:100.0 t:100.0"},
		{"hello", "hero", "h:100.0 e:100.0 l:0.0 o:100.0"},
		{"apple", "dog", "a:0.0 p:0.0 l:0.0 e:0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.target+"/"+tt.heard, func(t *testing.T) {
			if got := ScoreLetters(tt.target, tt.heard).String(); got != tt.want {
				t.Fatalf("ScoreLetters(%q, %q) = %s, want %s", tt.target, tt.heard, got, tt.want)
			}
		})
	}
}

func TestLCSMask(t *testing.T) {
	got := lcsMask([]rune("hello"), []rune("helo"))
	want := []bool{true, true, true, false, true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mask = %v, want %v", got, want)
	}
}

func TestClosestToken(t *testing.T) {
	if got := closestToken("I said, Hello there!", "hello"); got != "hello" {
		t.Fatalf("closestToken = %q", got)
	}
	if got := closestToken("", "hello"); got != "" {
		t.Fatalf("closestToken(empty) = %q", got)
	}
}

func TestCleanTranscription(t *testing.T) {
	tests := map[string]string{
		"[BLANK_AUDIO]":                 "",
		" (keyboard clicking) hello  ":  "hello",
		"[00:00:00.000 --> 00:00:02.000]  apple": "apple",
		"Thank you.":                    "",
		"hello\nthere":                  "hello there",
	}
	for in, want := range tests {
		if got := cleanTranscription(in); got != want {
			t.Errorf("cleanTranscription(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWhisperAssess(t *testing.T) {
	w := NewWhisper("whisper-cli", "model.bin", quiet())

	w.transcribe = func(context.Context) (string, error) { return "[BLANK_AUDIO]", nil }
	if _, err := w.Assess(context.Background(), "cat"); !errors.Is(err, domain.ErrNoSpeech) {
		t.Fatalf("blank audio: err = %v", err)
	}

	w.transcribe = func(context.Context) (string, error) { return " Hat. ", nil }
	s, err := w.Assess(context.Background(), "cat")
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if got := s.String(); got != "c:0.0 a:100.0 t:100.0" {
		t.Fatalf("scores = %s", got)
	}
}

// ── announcing ───────────────────────────────────────────────────

type lineVoice struct{ said []string }

func (v *lineVoice) Open(context.Context) (domain.VoiceSession, error) { return v, nil }
func (v *lineVoice) Speak(_ context.Context, text string) error {
	v.said = append(v.said, text)
	return nil
}
func (v *lineVoice) Close() error { return nil }

type fixedAssessor struct{ calls int }

func (a *fixedAssessor) Assess(context.Context, string) (*domain.ScoreSet, error) {
	a.calls++
	return domain.NewScoreSet(domain.PhonemeScore{Phoneme: "k", Score: 90}), nil
}

func TestAnnouncing(t *testing.T) {
	v := &lineVoice{}
	inner := &fixedAssessor{}
	a := NewAnnouncing(inner, v, quiet())

	if _, err := a.Assess(context.Background(), "cat"); err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if !reflect.DeepEqual(v.said, []string{"Please say the word cat now."}) || inner.calls != 1 {
		t.Fatalf("said=%v calls=%d", v.said, inner.calls)
	}
}
