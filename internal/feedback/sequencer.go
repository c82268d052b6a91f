package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/logger"
	"github.com/hammamikhairi/bearwithme/internal/policy"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option configures the Sequencer.
type Option func(*Sequencer)

// WithSleep replaces the pause implementation (tests use a recorder).
func WithSleep(fn SleepFunc) Option {
	return func(s *Sequencer) { s.sleep = fn }
}

// WithPromptHook registers fn to be called after every spoken prompt.
func WithPromptHook(fn func(text string)) Option {
	return func(s *Sequencer) { s.onPrompt = fn }
}

// Sequencer plays a strategy's steps through a speaker, one at a time.
// Each Speak must finish before the next step starts, so prompts never
// overlap.
type Sequencer struct {
	strategy Strategy
	sleep    SleepFunc
	onPrompt func(string)
	log      *logger.Logger
}

// NewSequencer creates a sequencer for the given strategy.
func NewSequencer(strategy Strategy, log *logger.Logger, opts ...Option) *Sequencer {
	s := &Sequencer{
		strategy: strategy,
		sleep:    Sleep,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strategy returns the configured strategy.
func (s *Sequencer) Strategy() Strategy { return s.strategy }

// Emit plans and plays the feedback for one round.
func (s *Sequencer) Emit(ctx context.Context, sp domain.Speaker, d policy.Decision, word string) error {
	return s.Run(ctx, sp, s.strategy.Plan(d, word))
}

// Run plays steps in order. It stops at the first error, including ctx
// cancellation during a pause.
func (s *Sequencer) Run(ctx context.Context, sp domain.Speaker, steps []Step) error {
	for i, step := range steps {
		if step.IsPause() {
			if err := s.sleep(ctx, step.Pause); err != nil {
				return err
			}
			continue
		}

		s.log.Debug("feedback: step %d/%d: %q", i+1, len(steps), step.Text)
		if err := sp.Speak(ctx, step.Text); err != nil {
			return fmt.Errorf("speaking %q: %w", step.Text, err)
		}
		if s.onPrompt != nil {
			s.onPrompt(step.Text)
		}
	}
	return nil
}
