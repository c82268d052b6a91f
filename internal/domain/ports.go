package domain

import "context"

// Assessor scores one spoken attempt at word. Implementations capture
// exactly one utterance and never retry on their own.
//
// It returns ErrNoSpeech when nothing recognisable was heard. A recognised
// utterance that yields no phonemes comes back as an empty set or
// ErrEmptyScoreSet.
type Assessor interface {
	Assess(ctx context.Context, word string) (*ScoreSet, error)
}

// Speaker synthesizes and plays text. Speak blocks until playback of the
// whole utterance has finished.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// VoiceSession is a Speaker bound to an acquired audio output (a local
// device or a connected cast receiver). Close releases the output.
type VoiceSession interface {
	Speaker
	Close() error
}

// Voice hands out scoped voice sessions. The practice loop opens one per
// feedback sequence so output handles never outlive the prompts they serve.
type Voice interface {
	Open(ctx context.Context) (VoiceSession, error)
}
