package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hammamikhairi/bearwithme/internal/logger"
)

// ErrCircuitOpen is returned while a breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the operating mode of a Breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a three-state circuit breaker. After maxFailures consecutive
// failures it opens and rejects calls for resetTimeout, then lets a single
// probe through: success closes it, failure opens it again.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	log          *logger.Logger
	now          func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	probing     bool
}

// NewBreaker creates a breaker. Non-positive arguments select 3 failures
// and 30 s.
func NewBreaker(name string, maxFailures int, resetTimeout time.Duration, log *logger.Logger) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		log:          log,
		now:          time.Now,
	}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.lastFailure) < b.resetTimeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
		b.probing = false
		b.log.Info("breaker %s: half-open, probing", b.name)
	}
	if b.state == BreakerHalfOpen {
		if b.probing {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probing = true
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	// Cancellation says nothing about the backend's health.
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		b.probing = false
		return err
	}
	if err != nil {
		b.lastFailure = b.now()
		if b.state == BreakerHalfOpen {
			b.state = BreakerOpen
			b.probing = false
			b.log.Warn("breaker %s: probe failed, re-opened", b.name)
			return err
		}
		b.failures++
		if b.failures >= b.maxFailures {
			b.state = BreakerOpen
			b.log.Warn("breaker %s: opened after %d consecutive failures", b.name, b.failures)
		}
		return err
	}
	if b.state == BreakerHalfOpen {
		b.log.Info("breaker %s: closed", b.name)
	}
	b.state = BreakerClosed
	b.failures = 0
	b.probing = false
	return nil
}

// State returns the current state. An open breaker whose timeout has
// elapsed reports half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.lastFailure) >= b.resetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// ── Synthesizer failover ─────────────────────────────────────────

// Compile-time interface check.
var _ Synthesizer = (*FallbackSynthesizer)(nil)

// FallbackSynthesizer tries the primary behind a breaker and falls back to
// the secondary when the primary fails or its breaker is open.
type FallbackSynthesizer struct {
	primary   Synthesizer
	secondary Synthesizer
	breaker   *Breaker
	log       *logger.Logger
}

// NewFallbackSynthesizer wires primary and secondary.
func NewFallbackSynthesizer(primary, secondary Synthesizer, breaker *Breaker, log *logger.Logger) *FallbackSynthesizer {
	return &FallbackSynthesizer{primary: primary, secondary: secondary, breaker: breaker, log: log}
}

func (f *FallbackSynthesizer) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

// Voice reports the primary's voice. Clips from the secondary are cached
// under it too, so a prompt keeps one sound for the whole run.
func (f *FallbackSynthesizer) Voice() string { return f.primary.Voice() }

func (f *FallbackSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var audio []byte
	err := f.breaker.Execute(func() error {
		var err error
		audio, err = f.primary.Synthesize(ctx, text)
		return err
	})
	if err == nil {
		return audio, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !errors.Is(err, ErrCircuitOpen) {
		f.log.Warn("tts %s failed, falling back to %s: %v", f.primary.Name(), f.secondary.Name(), err)
	}
	audio, serr := f.secondary.Synthesize(ctx, text)
	if serr != nil {
		return nil, fmt.Errorf("tts %s: %w; fallback %s: %w", f.primary.Name(), err, f.secondary.Name(), serr)
	}
	return audio, nil
}

// ── Output failover ──────────────────────────────────────────────

// Compile-time interface check.
var _ Output = (*FallbackOutput)(nil)

// FallbackOutput prefers the primary output (a cast device) and uses the
// secondary (local speakers) when the primary cannot be acquired, or for
// any clip the primary fails to play.
type FallbackOutput struct {
	primary   Output
	secondary Output
	log       *logger.Logger
}

// NewFallbackOutput wires primary and secondary.
func NewFallbackOutput(primary, secondary Output, log *logger.Logger) *FallbackOutput {
	return &FallbackOutput{primary: primary, secondary: secondary, log: log}
}

// Acquire acquires the primary, or the secondary when that fails.
func (f *FallbackOutput) Acquire(ctx context.Context) (OutputHandle, error) {
	h, err := f.primary.Acquire(ctx)
	if err == nil {
		return &fallbackHandle{primary: h, secondary: f.secondary, log: f.log}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.log.Warn("primary output unavailable, using fallback: %v", err)
	return f.secondary.Acquire(ctx)
}

type fallbackHandle struct {
	primary   OutputHandle
	secondary Output
	log       *logger.Logger

	// acquired lazily on the first primary playback failure
	backup OutputHandle
}

func (h *fallbackHandle) Play(ctx context.Context, wav []byte) error {
	err := h.primary.Play(ctx, wav)
	if err == nil || ctx.Err() != nil {
		return err
	}
	h.log.Warn("primary playback failed, playing clip on fallback: %v", err)
	if h.backup == nil {
		b, aerr := h.secondary.Acquire(ctx)
		if aerr != nil {
			return fmt.Errorf("playback: %w; fallback: %w", err, aerr)
		}
		h.backup = b
	}
	return h.backup.Play(ctx, wav)
}

func (h *fallbackHandle) Release() error {
	err := h.primary.Release()
	if h.backup != nil {
		err = errors.Join(err, h.backup.Release())
	}
	return err
}
