package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrNoSpeech      = errors.New("no speech recognized")
	ErrEmptyScoreSet = errors.New("assessment returned no phonemes")
	ErrNotConfigured = errors.New("not configured")
)

// IsNoSpeech reports whether err means the attempt produced nothing to
// score. Both sentinels are retried the same way by the practice loop.
func IsNoSpeech(err error) bool {
	return errors.Is(err, ErrNoSpeech) || errors.Is(err, ErrEmptyScoreSet)
}
