package speech

import "context"

// Synthesizer turns text into WAV audio (24 kHz mono 16-bit PCM).
type Synthesizer interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Voice is the voice identifier baked into cache keys.
	Voice() string
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Output is an audio sink that must be acquired before clips can play on
// it. Acquire may block while a device is connected.
type Output interface {
	Acquire(ctx context.Context) (OutputHandle, error)
}

// OutputHandle plays clips on an acquired output. Play blocks until the
// clip has finished. Release frees the underlying device and must be
// called exactly once.
type OutputHandle interface {
	Play(ctx context.Context, wav []byte) error
	Release() error
}
