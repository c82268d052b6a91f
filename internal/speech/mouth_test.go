package speech

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/bearwithme/internal/logger"
)

func quiet() *logger.Logger { return logger.New(logger.LevelOff, nil) }

// fakeSynth returns the text itself as "audio".
type fakeSynth struct {
	name  string
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (s *fakeSynth) Name() string  { return s.name }
func (s *fakeSynth) Voice() string { return s.name + "-voice" }

func (s *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, text)
	if err := s.fail[text]; err != nil {
		return nil, err
	}
	return []byte(s.name + ":" + text), nil
}

func (s *fakeSynth) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// fakeOutput records acquisitions, releases and played clips.
type fakeOutput struct {
	acquireErr error
	playErr    error
	acquired   int
	released   int
	played     []string
}

func (o *fakeOutput) Acquire(context.Context) (OutputHandle, error) {
	if o.acquireErr != nil {
		return nil, o.acquireErr
	}
	o.acquired++
	return fakeHandle{o}, nil
}

type fakeHandle struct{ o *fakeOutput }

func (h fakeHandle) Play(_ context.Context, wav []byte) error {
	if h.o.playErr != nil {
		return h.o.playErr
	}
	h.o.played = append(h.o.played, string(wav))
	return nil
}

func (h fakeHandle) Release() error {
	h.o.released++
	return nil
}

func TestMouthSessionSpeaksAndReleases(t *testing.T) {
	synth := &fakeSynth{name: "a"}
	out := &fakeOutput{}
	m := NewMouth(synth, out, quiet())

	vs, err := m.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, line := range []string{"huh", "Nice! Much better!", "huh", "   "} {
		if err := vs.Speak(context.Background(), line); err != nil {
			t.Fatalf("Speak(%q): %v", line, err)
		}
	}
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_ = vs.Close()

	want := []string{"a:huh", "a:Nice! Much better!", "a:huh"}
	if !reflect.DeepEqual(out.played, want) {
		t.Fatalf("played = %v, want %v", out.played, want)
	}
	if synth.count() != 2 {
		t.Fatalf("synthesized %d times, want 2 (second huh is cached)", synth.count())
	}
	if out.acquired != 1 || out.released != 1 {
		t.Fatalf("acquired=%d released=%d, want 1/1", out.acquired, out.released)
	}
}

func TestMouthChunksLongTextInOrder(t *testing.T) {
	synth := &fakeSynth{name: "a"}
	out := &fakeOutput{}
	m := NewMouth(synth, out, quiet(), WithChunkSize(12))

	vs, _ := m.Open(context.Background())
	defer vs.Close()
	if err := vs.Speak(context.Background(), "One two. Three four! Five six?"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	want := []string{"a:One two.", "a:Three four!", "a:Five six?"}
	if !reflect.DeepEqual(out.played, want) {
		t.Fatalf("played = %v, want %v", out.played, want)
	}
}

func TestMouthSynthesisFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	synth := &fakeSynth{name: "a", fail: map[string]error{"huh": boom}}
	out := &fakeOutput{}

	var hooked []error
	m := NewMouth(synth, out, quiet(), WithSynthesisHook(func(backend string, _ time.Duration, err error) {
		if backend != "a" {
			t.Errorf("hook backend = %q", backend)
		}
		hooked = append(hooked, err)
	}))

	vs, _ := m.Open(context.Background())
	err := vs.Speak(context.Background(), "huh")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(out.played) != 0 {
		t.Fatalf("played %v after failure", out.played)
	}
	if len(hooked) != 1 || !errors.Is(hooked[0], boom) {
		t.Fatalf("hook saw %v", hooked)
	}
}

func TestMouthOpenFailure(t *testing.T) {
	m := NewMouth(&fakeSynth{name: "a"}, &fakeOutput{acquireErr: errors.New("no device")}, quiet())
	if _, err := m.Open(context.Background()); err == nil || !strings.Contains(err.Error(), "no device") {
		t.Fatalf("err = %v", err)
	}
}

func TestMouthWarm(t *testing.T) {
	synth := &fakeSynth{name: "a", fail: map[string]error{"bad": errors.New("nope")}}
	m := NewMouth(synth, &fakeOutput{}, quiet())

	err := m.Warm(context.Background(), "Nice! Much better!", "", "bad")
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("Warm err = %v", err)
	}
	if !m.Cache().Has("Nice! Much better!") {
		t.Fatal("successful prompt should be cached")
	}
	if m.Cache().Has("bad") {
		t.Fatal("failed prompt should not be cached")
	}

	before := synth.count()
	if err := m.Warm(context.Background(), "Nice! Much better!"); err != nil {
		t.Fatalf("second Warm: %v", err)
	}
	if synth.count() != before {
		t.Fatal("cached prompt synthesized again")
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Hi. How are you?  Fine")
	want := []string{"Hi. ", "How are you?  ", "Fine"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}
