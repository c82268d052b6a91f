package speech

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/bearwithme/internal/logger"
)

// Compile-time interface check.
var _ Output = (*Player)(nil)

// Player handles local audio playback of WAV data via oto. oto allows one
// context per process, so create a single Player and share it.
type Player struct {
	ctx    *oto.Context
	log    *logger.Logger
	mu     sync.Mutex
	active *oto.Player // currently playing, nil when idle
}

// NewPlayer creates an audio player. Initializes the system audio context.
// Returns an error if the audio device is unavailable.
func NewPlayer(log *logger.Logger) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	log.Debug("audio player initialized (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return &Player{ctx: ctx, log: log}, nil
}

// Acquire returns a handle on the local device. The speakers are always
// there, so releasing it does nothing.
func (p *Player) Acquire(context.Context) (OutputHandle, error) {
	return localHandle{p}, nil
}

type localHandle struct{ p *Player }

func (h localHandle) Play(ctx context.Context, wav []byte) error { return h.p.Play(ctx, wav) }
func (h localHandle) Release() error                             { return nil }

// Play plays WAV audio data synchronously. Blocks until playback finishes,
// Stop is called, or ctx is done.
func (p *Player) Play(ctx context.Context, wavData []byte) error {
	format, pcm, err := ParseWAV(wavData)
	if err != nil {
		return err
	}
	if format.SampleRate != SampleRate || format.Channels != ChannelCount {
		p.log.Warn("audio player: clip is %d Hz x%d, device is %d Hz x%d",
			format.SampleRate, format.Channels, SampleRate, ChannelCount)
	}

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))

	p.mu.Lock()
	p.active = player
	p.mu.Unlock()

	player.Play()
	p.log.Debug("audio player: playing %d bytes of PCM", len(pcm))

	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	var ctxErr error
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			ctxErr = ctx.Err()
		case <-tick.C:
		}
		if ctxErr != nil {
			break
		}
	}

	p.mu.Lock()
	p.active = nil
	p.mu.Unlock()

	if err := player.Close(); err != nil {
		return err
	}
	return ctxErr
}

// Stop interrupts the currently playing audio, if any. Safe to call
// concurrently and when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active != nil {
		active.Pause()
		p.log.Debug("audio player: interrupted")
	}
}
