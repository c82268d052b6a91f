package speech

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/logger"
)

// Compile-time interface checks.
var (
	_ domain.Voice        = (*Mouth)(nil)
	_ domain.VoiceSession = (*mouthSession)(nil)
)

// SynthesisHook observes every synthesizer call that missed the cache.
type SynthesisHook func(backend string, elapsed time.Duration, err error)

// MouthOption configures the Mouth.
type MouthOption func(*Mouth)

// WithChunkSize sets the approximate max character count per TTS chunk.
// Longer text is split at sentence boundaries and synthesized in parallel.
func WithChunkSize(n int) MouthOption {
	return func(m *Mouth) { m.chunkSize = n }
}

// WithParallelism bounds concurrent synthesis requests.
func WithParallelism(n int) MouthOption {
	return func(m *Mouth) { m.parallel = n }
}

// WithCache replaces the default in-memory cache.
func WithCache(c *AudioCache) MouthOption {
	return func(m *Mouth) { m.cache = c }
}

// WithSynthesisHook registers fn for synthesis timing (metrics).
func WithSynthesisHook(fn SynthesisHook) MouthOption {
	return func(m *Mouth) { m.onSynth = fn }
}

// Mouth turns prompts into audio: chunk, synthesize (parallel, cached),
// play (sequential). It is the speech Voice of the practice loop: Open
// acquires the output device and the returned session speaks on it until
// Close releases it.
type Mouth struct {
	synth     Synthesizer
	out       Output
	cache     *AudioCache
	log       *logger.Logger
	chunkSize int
	parallel  int
	onSynth   SynthesisHook
}

// NewMouth creates a speech voice over synth and out.
func NewMouth(synth Synthesizer, out Output, log *logger.Logger, opts ...MouthOption) *Mouth {
	m := &Mouth{
		synth:     synth,
		out:       out,
		log:       log,
		chunkSize: 200,
		parallel:  4,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cache == nil {
		m.cache = NewAudioCache(synth.Voice(), log)
	}
	return m
}

// Cache returns the audio cache used by this Mouth.
func (m *Mouth) Cache() *AudioCache { return m.cache }

// Open acquires the output for one batch of prompts.
func (m *Mouth) Open(ctx context.Context) (domain.VoiceSession, error) {
	h, err := m.out.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring audio output: %w", err)
	}
	return &mouthSession{m: m, handle: h}, nil
}

type mouthSession struct {
	m      *Mouth
	handle OutputHandle

	once sync.Once
}

// Speak synthesizes text and blocks until it has been played.
func (s *mouthSession) Speak(ctx context.Context, text string) error {
	return s.m.speakOn(ctx, s.handle, text)
}

// Close releases the output handle. Later calls are no-ops.
func (s *mouthSession) Close() error {
	var err error
	s.once.Do(func() { err = s.handle.Release() })
	return err
}

func (m *Mouth) speakOn(ctx context.Context, h OutputHandle, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	chunks := m.splitChunks(text)
	if len(chunks) > 1 {
		m.log.Debug("mouth: split into %d chunks for parallel synthesis", len(chunks))
	}

	clips, err := m.synthesizeAll(ctx, chunks)
	if err != nil {
		return err
	}
	for i, clip := range clips {
		if err := h.Play(ctx, clip); err != nil {
			return fmt.Errorf("playing chunk %d of %q: %w", i+1, truncate(text, 40), err)
		}
	}
	return nil
}

// synthesizeAll synthesizes chunks concurrently and returns them in order.
func (m *Mouth) synthesizeAll(ctx context.Context, chunks []string) ([][]byte, error) {
	clips := make([][]byte, len(chunks))
	if len(chunks) == 1 {
		clip, err := m.synthesizeWithCache(ctx, chunks[0])
		if err != nil {
			return nil, err
		}
		clips[0] = clip
		return clips, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallel)
	for i, chunk := range chunks {
		g.Go(func() error {
			clip, err := m.synthesizeWithCache(gctx, chunk)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i+1, err)
			}
			clips[i] = clip
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}

// synthesizeWithCache checks the cache first, otherwise calls the
// synthesizer and stores the result.
func (m *Mouth) synthesizeWithCache(ctx context.Context, text string) ([]byte, error) {
	if audio, ok := m.cache.Get(text); ok {
		return audio, nil
	}
	start := time.Now()
	audio, err := m.synth.Synthesize(ctx, text)
	if m.onSynth != nil {
		m.onSynth(m.synth.Name(), time.Since(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("synthesizing %q: %w", truncate(text, 40), err)
	}
	m.cache.Put(text, audio)
	return audio, nil
}

// ── Prefetching ──────────────────────────────────────────────────

// Warm synthesizes every text that is not cached yet and blocks until
// done. Failures are joined into the returned error; successes stay
// cached.
func (m *Mouth) Warm(ctx context.Context, texts ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallel)

	var mu sync.Mutex
	var failed []string
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		for _, chunk := range m.splitChunks(text) {
			if m.cache.Has(chunk) {
				continue
			}
			g.Go(func() error {
				if _, err := m.synthesizeWithCache(gctx, chunk); err != nil {
					mu.Lock()
					failed = append(failed, err.Error())
					mu.Unlock()
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	if len(failed) > 0 {
		return fmt.Errorf("warming %d prompt(s): %s", len(failed), strings.Join(failed, "; "))
	}
	return ctx.Err()
}

// Prefetch warms the cache in the background. Non-blocking.
func (m *Mouth) Prefetch(ctx context.Context, texts ...string) {
	go func() {
		if err := m.Warm(ctx, texts...); err != nil && ctx.Err() == nil {
			m.log.Warn("prefetch: %v", err)
		}
	}()
}

// ── Chunking ─────────────────────────────────────────────────────

// splitChunks breaks text into sentence-boundary chunks of roughly
// m.chunkSize characters.
func (m *Mouth) splitChunks(text string) []string {
	if m.chunkSize <= 0 || len(text) <= m.chunkSize {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if c := strings.TrimSpace(current.String()); c != "" {
			chunks = append(chunks, c)
		}
		current.Reset()
	}
	for _, s := range splitSentences(text) {
		if current.Len() > 0 && current.Len()+len(s) > m.chunkSize {
			flush()
		}
		current.WriteString(s)
	}
	flush()
	return chunks
}

// splitSentences splits text after . ! ? keeping the punctuation and any
// trailing whitespace with the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' {
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
				current.WriteRune(runes[i])
			}
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
