package assess

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode"

	"github.com/antzucaro/matchr"
	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/logger"
)

// Compile-time interface check.
var _ domain.Assessor = (*Whisper)(nil)

// WhisperOption configures the Whisper assessor.
type WhisperOption func(*Whisper)

// WithRecordDuration sets how long each attempt is recorded.
func WithRecordDuration(d time.Duration) WhisperOption {
	return func(w *Whisper) {
		if d > 0 {
			w.record = d
		}
	}
}

// WithTempDir sets the directory for temporary WAV files.
func WithTempDir(dir string) WhisperOption {
	return func(w *Whisper) { w.tempDir = dir }
}

// Whisper is an offline assessor. It transcribes the attempt with a local
// whisper.cpp binary and grades each letter of the target word by how
// well the transcript matches it. It is coarser than phoneme scoring but
// needs no network.
type Whisper struct {
	bin     string
	model   string
	tempDir string
	record  time.Duration
	log     *logger.Logger

	transcribe func(ctx context.Context) (string, error)
}

// NewWhisper creates an offline assessor.
//   - bin:   path to the whisper-cli executable
//   - model: path to the ggml model file
func NewWhisper(bin, model string, log *logger.Logger, opts ...WhisperOption) *Whisper {
	w := &Whisper{
		bin:     bin,
		model:   model,
		tempDir: os.TempDir(),
		record:  3 * time.Second,
		log:     log,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.transcribe = w.recordChunk
	return w
}

// Check reports whether the whisper binary and model are usable.
func (w *Whisper) Check() error {
	if _, err := exec.LookPath(w.bin); err != nil {
		return fmt.Errorf("whisper binary %q: %w", w.bin, err)
	}
	if _, err := os.Stat(w.model); err != nil {
		return fmt.Errorf("whisper model: %w", err)
	}
	return nil
}

// Assess records one attempt and grades it against word.
func (w *Whisper) Assess(ctx context.Context, word string) (*domain.ScoreSet, error) {
	raw, err := w.transcribe(ctx)
	if err != nil {
		return nil, err
	}
	text := cleanTranscription(raw)
	w.log.Debug("whisper: heard %q (raw %q)", text, raw)
	if text == "" {
		return nil, domain.ErrNoSpeech
	}
	heard := closestToken(text, word)
	if heard == "" {
		return nil, domain.ErrNoSpeech
	}
	return ScoreLetters(word, heard), nil
}

// recordChunk runs one recording window and returns the transcript.
func (w *Whisper) recordChunk(ctx context.Context) (string, error) {
	done := make(chan string, 1)
	callback := func(text string) {
		select {
		case done <- text:
		default:
		}
	}

	verbose := w.log.GetLevel() >= logger.LevelVerbose
	t, err := audiotranscriber.NewTranscriber(w.bin, w.model, w.tempDir, "wav", callback, verbose)
	if err != nil {
		return "", fmt.Errorf("whisper: transcriber init: %w", err)
	}
	if err := t.Start(); err != nil {
		return "", fmt.Errorf("whisper: recording start: %w", err)
	}

	timer := time.NewTimer(w.record)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		t.Stop()
		return "", ctx.Err()
	}
	t.Stop()

	select {
	case text := <-done:
		return text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ── Letter scoring ───────────────────────────────────────────────

// ScoreLetters grades each letter of target 100 when it survives in the
// longest common subsequence with heard, 0 otherwise. When both words
// share a Double Metaphone code the attempt sounded right and every letter
// scores 100.
func ScoreLetters(target, heard string) *domain.ScoreSet {
	t := lettersOf(target)
	h := lettersOf(heard)

	scores := domain.NewScoreSet()
	if len(t) == 0 {
		return scores
	}

	if soundsAlike(string(t), string(h)) {
		for _, r := range t {
			scores.Set(domain.Phoneme(string(r)), 100)
		}
		return scores
	}

	kept := lcsMask(t, h)
	for i, r := range t {
		ph := domain.Phoneme(string(r))
		score := 0.0
		if kept[i] {
			score = 100
		}
		// A repeated letter is only as good as its worst occurrence.
		if prev, ok := scores.Get(ph); ok && prev < score {
			score = prev
		}
		scores.Set(ph, score)
	}
	return scores
}

func soundsAlike(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	ap, _ := matchr.DoubleMetaphone(a)
	bp, _ := matchr.DoubleMetaphone(b)
	return ap != "" && ap == bp
}

// lcsMask marks the letters of a that belong to one longest common
// subsequence with b.
func lcsMask(a, b []rune) []bool {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else {
				dp[i][j] = max(dp[i+1][j], dp[i][j+1])
			}
		}
	}

	mask := make([]bool, n)
	for i, j := 0, 0; i < n && j < m; {
		switch {
		case a[i] == b[j]:
			mask[i] = true
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return mask
}

// closestToken returns the word of text most similar to target.
func closestToken(text, target string) string {
	target = strings.ToLower(target)
	best, bestScore := "", -1.0
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	}) {
		if s := matchr.JaroWinkler(tok, target, false); s > bestScore {
			best, bestScore = tok, s
		}
	}
	return best
}

func lettersOf(s string) []rune {
	var out []rune
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			out = append(out, r)
		}
	}
	return out
}
