// Package speech provides audio capture, speech synthesis and playback for
// the practice loop.
package speech

import (
	"context"

	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/logger"
)

// Compile-time interface checks.
var (
	_ domain.Voice        = (*NoOp)(nil)
	_ domain.VoiceSession = (*NoOp)(nil)
)

// NoOp is a voice that only logs what it would say. Used when no TTS
// backend is configured.
type NoOp struct {
	log *logger.Logger
}

// NewNoOp creates a no-op voice.
func NewNoOp(log *logger.Logger) *NoOp {
	return &NoOp{log: log}
}

func (n *NoOp) Open(context.Context) (domain.VoiceSession, error) { return n, nil }

// Speak logs text at info level.
func (n *NoOp) Speak(_ context.Context, text string) error {
	n.log.Info("say: %s", text)
	return nil
}

func (n *NoOp) Close() error { return nil }
