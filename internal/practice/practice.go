// Package practice implements the repeat-until-correct pronunciation loop.
//
// One round is: capture and score an attempt, evaluate the scores against
// the threshold, speak the feedback. Rounds run strictly one after another
// until every phoneme of an attempt clears the threshold.
package practice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/feedback"
	"github.com/hammamikhairi/bearwithme/internal/logger"
	"github.com/hammamikhairi/bearwithme/internal/policy"
)

// ErrRoundsExhausted is returned when MaxRounds scored attempts all failed.
var ErrRoundsExhausted = errors.New("practice: round limit reached without an accepted attempt")

// State is a node of the practice state machine.
type State int

const (
	StateAssessing State = iota
	StateEvaluating
	StateFeedback
	StateAccepted
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateAssessing:
		return "assessing"
	case StateEvaluating:
		return "evaluating"
	case StateFeedback:
		return "feedback"
	case StateAccepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// Session is the ephemeral per-word state of one Practice call.
type Session struct {
	Word  string
	Round int
	State State
	// Misses counts consecutive attempts without usable speech.
	Misses int
}

// Result summarises a finished Practice call.
type Result struct {
	Word      string
	Rounds    int
	Attempts  int
	Accepted  bool
	LastScore *domain.ScoreSet
	Duration  time.Duration
}

// Observer receives loop events. Every method is called synchronously
// from the loop goroutine.
type Observer interface {
	OnNoSpeech(word string, attempt int, err error)
	OnScores(word string, round int, scores *domain.ScoreSet, d policy.Decision, elapsed time.Duration)
	OnAccepted(word string, rounds int)
}

// Option configures the Loop.
type Option func(*Loop)

// WithThreshold sets the acceptance threshold.
func WithThreshold(t float64) Option {
	return func(l *Loop) { l.threshold = t }
}

// WithMaxRounds bounds the number of scored rounds. 0 means no limit.
func WithMaxRounds(n int) Option {
	return func(l *Loop) { l.maxRounds = n }
}

// WithMaxNoSpeechRetries bounds consecutive attempts with no usable speech.
// 0 means retry forever.
func WithMaxNoSpeechRetries(n int) Option {
	return func(l *Loop) { l.maxMisses = n }
}

// WithRetryBackoff sets the wait between a no-speech attempt and the next
// capture. 0 retries immediately.
func WithRetryBackoff(d time.Duration) Option {
	return func(l *Loop) { l.backoff = d }
}

// WithIntro speaks "Let's practice the word ..." once before the first
// capture.
func WithIntro(enabled bool) Option {
	return func(l *Loop) { l.intro = enabled }
}

// WithObserver attaches an observer. Multiple observers are called in the
// order they were added.
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

// WithSleep replaces the backoff wait (tests).
func WithSleep(fn feedback.SleepFunc) Option {
	return func(l *Loop) { l.sleep = fn }
}

// Loop drives practice sessions. It depends only on interfaces and is
// fully testable with fakes.
type Loop struct {
	assessor  domain.Assessor
	voice     domain.Voice
	sequencer *feedback.Sequencer
	log       *logger.Logger

	threshold float64
	maxRounds int
	maxMisses int
	backoff   time.Duration
	intro     bool
	observers []Observer
	sleep     feedback.SleepFunc
}

// New creates a practice loop.
func New(assessor domain.Assessor, voice domain.Voice, seq *feedback.Sequencer, log *logger.Logger, opts ...Option) *Loop {
	l := &Loop{
		assessor:  assessor,
		voice:     voice,
		sequencer: seq,
		log:       log,
		threshold: domain.DefaultThreshold,
		sleep:     feedback.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Threshold returns the configured acceptance threshold.
func (l *Loop) Threshold() float64 { return l.threshold }

// Practice runs rounds for word until an attempt is accepted, a configured
// limit is reached, ctx is cancelled, or a collaborator fails.
func (l *Loop) Practice(ctx context.Context, word string) (Result, error) {
	started := time.Now()
	log := l.log.With("word", word)
	sess := &Session{Word: word, State: StateAssessing}
	res := Result{Word: word}

	finish := func(err error) (Result, error) {
		res.Rounds = sess.Round
		res.Accepted = sess.State == StateAccepted
		res.Duration = time.Since(started)
		return res, err
	}

	if l.intro {
		if err := l.speak(ctx, feedback.LineIntro(word)); err != nil {
			return finish(fmt.Errorf("intro: %w", err))
		}
	}

	log.Info("practice started (threshold=%g, feedback=%s)", l.threshold, l.sequencer.Strategy().Name())

	var scores *domain.ScoreSet
	var decision policy.Decision
	var assessElapsed time.Duration

	for {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		switch sess.State {
		case StateAssessing:
			res.Attempts++
			t0 := time.Now()
			s, err := l.assessor.Assess(ctx, word)
			assessElapsed = time.Since(t0)
			if err == nil && s.Empty() {
				err = domain.ErrEmptyScoreSet
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return finish(ctxErr)
				}
				if !domain.IsNoSpeech(err) {
					return finish(fmt.Errorf("assessing attempt %d: %w", res.Attempts, err))
				}
				sess.Misses++
				log.Warn("could not assess pronunciation (attempt %d): %v", res.Attempts, err)
				for _, o := range l.observers {
					o.OnNoSpeech(word, res.Attempts, err)
				}
				if l.maxMisses > 0 && sess.Misses > l.maxMisses {
					return finish(fmt.Errorf("gave up after %d attempts without speech: %w", sess.Misses, err))
				}
				if err := l.sleep(ctx, l.backoff); err != nil {
					return finish(err)
				}
				continue
			}
			sess.Misses = 0
			sess.Round++
			scores = s
			res.LastScore = s
			sess.State = StateEvaluating

		case StateEvaluating:
			decision = policy.Evaluate(scores, l.threshold)
			log.Info("round %d scores: %s", sess.Round, scores)
			if !decision.Accepted {
				log.Info("round %d low phonemes: %v", sess.Round, decision.LowPhonemes())
			}
			for _, o := range l.observers {
				o.OnScores(word, sess.Round, scores, decision, assessElapsed)
			}
			sess.State = StateFeedback

		case StateFeedback:
			if err := l.emit(ctx, decision, word); err != nil {
				return finish(fmt.Errorf("feedback for round %d: %w", sess.Round, err))
			}
			if decision.Accepted {
				sess.State = StateAccepted
				log.Info("word accepted after %d round(s)", sess.Round)
				for _, o := range l.observers {
					o.OnAccepted(word, sess.Round)
				}
				return finish(nil)
			}
			if l.maxRounds > 0 && sess.Round >= l.maxRounds {
				return finish(ErrRoundsExhausted)
			}
			sess.State = StateAssessing
		}
	}
}

// emit plays the feedback for one round inside its own voice session.
func (l *Loop) emit(ctx context.Context, d policy.Decision, word string) error {
	return l.withVoice(ctx, func(sp domain.Speaker) error {
		return l.sequencer.Emit(ctx, sp, d, word)
	})
}

// speak says a single line inside its own voice session.
func (l *Loop) speak(ctx context.Context, text string) error {
	return l.withVoice(ctx, func(sp domain.Speaker) error {
		return l.sequencer.Run(ctx, sp, []feedback.Step{feedback.Say(text)})
	})
}

// withVoice opens a voice session, runs fn, and closes the session again,
// so output handles are held only while prompts play.
func (l *Loop) withVoice(ctx context.Context, fn func(domain.Speaker) error) error {
	vs, err := l.voice.Open(ctx)
	if err != nil {
		return fmt.Errorf("opening voice: %w", err)
	}
	runErr := fn(vs)
	if cerr := vs.Close(); cerr != nil {
		l.log.Warn("closing voice session: %v", cerr)
	}
	return runErr
}
