package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/logger"
	"github.com/hammamikhairi/bearwithme/internal/policy"
)

func TestObserverCounts(t *testing.T) {
	m := New()
	scores := domain.NewScoreSet(
		domain.PhonemeScore{Phoneme: "hh", Score: 60},
		domain.PhonemeScore{Phoneme: "eh", Score: 95},
		domain.PhonemeScore{Phoneme: "l", Score: 40},
	)

	m.OnNoSpeech("hello", 1, domain.ErrNoSpeech)
	m.OnScores("hello", 1, scores, policy.Evaluate(scores, 80), 2*time.Second)
	m.OnScores("hello", 2, scores, policy.Evaluate(scores, 30), time.Second)
	m.OnAccepted("hello", 2)
	m.OnPrompt("Nice! Much better!")
	m.OnSynthesis("azure", 100*time.Millisecond, nil)
	m.OnSynthesis("azure", time.Second, errors.New("boom"))

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"rounds", testutil.ToFloat64(m.RoundsTotal), 2},
		{"scored", testutil.ToFloat64(m.AssessmentsTotal.WithLabelValues("scored")), 2},
		{"no speech", testutil.ToFloat64(m.AssessmentsTotal.WithLabelValues("no_speech")), 1},
		{"low hh", testutil.ToFloat64(m.LowPhonemesTotal.WithLabelValues("hh")), 1},
		{"low l", testutil.ToFloat64(m.LowPhonemesTotal.WithLabelValues("l")), 1},
		{"low eh", testutil.ToFloat64(m.LowPhonemesTotal.WithLabelValues("eh")), 0},
		{"accepted", testutil.ToFloat64(m.WordsAccepted), 1},
		{"prompts", testutil.ToFloat64(m.PromptsTotal), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(m.SynthesisDuration); n != 2 {
		t.Errorf("synthesis series = %d, want 2 (ok + error)", n)
	}
}

func TestServer(t *testing.T) {
	m := New()
	m.OnPrompt("x")

	s := NewServer("127.0.0.1:0", m, logger.New(logger.LevelOff, nil))
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Shutdown(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "bearwithme_prompts_total 1") {
		t.Fatalf("metrics output missing prompt counter:\n%s", body)
	}

	resp, err = http.Get("http://" + s.Addr() + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /healthz: %v %v", resp, err)
	}
	resp.Body.Close()
}
