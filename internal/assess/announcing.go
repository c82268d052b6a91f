package assess

import (
	"context"
	"fmt"

	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/feedback"
	"github.com/hammamikhairi/bearwithme/internal/logger"
)

// Compile-time interface check.
var _ domain.Assessor = (*Announcing)(nil)

// Announcing asks the learner to say the word before every capture
// ("Please say the word hello now.").
type Announcing struct {
	inner domain.Assessor
	voice domain.Voice
	log   *logger.Logger
}

// NewAnnouncing wraps inner.
func NewAnnouncing(inner domain.Assessor, voice domain.Voice, log *logger.Logger) *Announcing {
	return &Announcing{inner: inner, voice: voice, log: log}
}

// Assess speaks the cue, then delegates. The voice session is closed
// before capture so the microphone does not pick up the cast device.
func (a *Announcing) Assess(ctx context.Context, word string) (*domain.ScoreSet, error) {
	vs, err := a.voice.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("announcing: %w", err)
	}
	err = vs.Speak(ctx, feedback.LineSayNow(word))
	if cerr := vs.Close(); cerr != nil {
		a.log.Warn("announcing: closing voice session: %v", cerr)
	}
	if err != nil {
		return nil, fmt.Errorf("announcing: %w", err)
	}
	return a.inner.Assess(ctx, word)
}
