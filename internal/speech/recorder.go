package speech

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/logger"
)

// ── End-pointing ─────────────────────────────────────────────────

const (
	frameDuration  = 20 * time.Millisecond
	frameSamples   = CaptureSampleRate * int(frameDuration/time.Millisecond) / 1000 // 320
	preRollFrames  = 10                                                               // 200 ms kept before speech onset
	captureQueue   = 64
	defaultLevel   = 500.0
	defaultSilence = 800 * time.Millisecond
	defaultMaxUtt  = 5 * time.Second
	defaultInitial = 5 * time.Second
)

// Endpoint tunes when an utterance starts and ends.
type Endpoint struct {
	// StartLevel is the RMS (int16 scale) at which a frame counts as speech.
	StartLevel float64
	// Silence ends the utterance once this much quiet follows speech.
	Silence time.Duration
	// MaxDuration caps the utterance, measured from speech onset.
	MaxDuration time.Duration
	// InitialTimeout gives up when no speech starts within it.
	InitialTimeout time.Duration
}

func (e *Endpoint) defaults() {
	if e.StartLevel <= 0 {
		e.StartLevel = defaultLevel
	}
	if e.Silence <= 0 {
		e.Silence = defaultSilence
	}
	if e.MaxDuration <= 0 {
		e.MaxDuration = defaultMaxUtt
	}
	if e.InitialTimeout <= 0 {
		e.InitialTimeout = defaultInitial
	}
}

type verdict int

const (
	keepListening verdict = iota
	utteranceDone
	noSpeech
)

// endpointer decides, frame by frame, when capture should stop.
type endpointer struct {
	cfg Endpoint

	waited  time.Duration // before onset
	spoken  time.Duration // since onset
	quiet   time.Duration // trailing silence since onset
	started bool
	onset   int // index of the first speech frame
	frames  int
}

func newEndpointer(cfg Endpoint) *endpointer {
	cfg.defaults()
	return &endpointer{cfg: cfg}
}

func (e *endpointer) feed(frame []int16) verdict {
	level := rms(frame)
	e.frames++

	if !e.started {
		if level >= e.cfg.StartLevel {
			e.started = true
			e.onset = e.frames - 1
			e.spoken = frameDuration
			return keepListening
		}
		e.waited += frameDuration
		if e.waited >= e.cfg.InitialTimeout {
			return noSpeech
		}
		return keepListening
	}

	e.spoken += frameDuration
	if level >= e.cfg.StartLevel {
		e.quiet = 0
	} else {
		e.quiet += frameDuration
	}
	if e.quiet >= e.cfg.Silence || e.spoken >= e.cfg.MaxDuration {
		return utteranceDone
	}
	return keepListening
}

// keepFrom returns the first frame to keep, including the pre-roll.
func (e *endpointer) keepFrom() int {
	return max(0, e.onset-preRollFrames)
}

func rms(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// ── Capture ──────────────────────────────────────────────────────

// Recorder captures one utterance from the default microphone via
// miniaudio (malgo) at 16 kHz mono.
type Recorder struct {
	cfg Endpoint
	log *logger.Logger
}

// NewRecorder creates a recorder. Zero fields of cfg take defaults.
func NewRecorder(cfg Endpoint, log *logger.Logger) *Recorder {
	cfg.defaults()
	return &Recorder{cfg: cfg, log: log}
}

// Record opens the capture device, waits for speech, and returns the
// utterance as WAV. It returns domain.ErrNoSpeech when nobody speaks
// within the initial timeout.
func (r *Recorder) Record(ctx context.Context) ([]byte, error) {
	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(_ string) {})
	if err != nil {
		return nil, fmt.Errorf("audio context: %w", err)
	}
	defer func() { _ = mCtx.Uninit(); mCtx.Free() }()

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.SampleRate = CaptureSampleRate
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = CaptureChannels
	devCfg.Alsa.NoMMap = 1

	audioCh := make(chan []byte, captureQueue)
	var drops atomic.Int64

	callbacks := malgo.DeviceCallbacks{
		Data: func(_ []byte, raw []byte, _ uint32) {
			if len(raw) == 0 {
				return
			}
			buf := make([]byte, len(raw))
			copy(buf, raw)
			select {
			case audioCh <- buf:
			default:
				drops.Add(1)
			}
		},
	}

	device, err := malgo.InitDevice(mCtx.Context, devCfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("capture device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return nil, fmt.Errorf("starting capture: %w", err)
	}
	defer func() { _ = device.Stop() }()
	r.log.Debug("recorder: listening (level=%.0f, silence=%s, max=%s)",
		r.cfg.StartLevel, r.cfg.Silence, r.cfg.MaxDuration)

	pcm, err := r.listen(ctx, audioCh)
	if n := drops.Load(); n > 0 {
		r.log.Warn("recorder: dropped %d capture buffers", n)
	}
	if err != nil {
		return nil, err
	}
	r.log.Debug("recorder: captured %.2fs", CaptureFormat.Duration(len(pcm)))
	return EncodeWAV(pcm, CaptureFormat), nil
}

// listen reads raw S16LE chunks from audio until the endpointer ends the
// utterance and returns its PCM. Frame counts drive the endpointer; a
// wall-clock deadline backs it up so a stalled device cannot block past
// InitialTimeout before onset or MaxDuration after it.
func (r *Recorder) listen(ctx context.Context, audio <-chan []byte) ([]byte, error) {
	ep := newEndpointer(r.cfg)
	var captured [][]byte // one entry per frame
	var pending []byte

	deadline := time.NewTimer(r.cfg.InitialTimeout)
	defer deadline.Stop()

	utterance := func() []byte {
		var pcm []byte
		for _, f := range captured[ep.keepFrom():] {
			pcm = append(pcm, f...)
		}
		return pcm
	}
	stalled := func(reason string) ([]byte, error) {
		if !ep.started {
			r.log.Debug("recorder: no speech (%s)", reason)
			return nil, domain.ErrNoSpeech
		}
		r.log.Warn("recorder: cutting utterance short (%s)", reason)
		return utterance(), nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return stalled("deadline")
		case chunk, ok := <-audio:
			if !ok {
				return stalled("capture stopped")
			}
			pending = append(pending, chunk...)
			for len(pending) >= frameSamples*2 {
				raw := pending[:frameSamples*2]
				pending = pending[frameSamples*2:]
				captured = append(captured, raw)

				wasStarted := ep.started
				v := ep.feed(Samples(raw))
				if !wasStarted && ep.started {
					deadline.Reset(r.cfg.MaxDuration)
				}
				switch v {
				case noSpeech:
					r.log.Debug("recorder: no speech within %s", r.cfg.InitialTimeout)
					return nil, domain.ErrNoSpeech
				case utteranceDone:
					return utterance(), nil
				}
			}
		}
	}
}
