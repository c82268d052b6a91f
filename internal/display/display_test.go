package display

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/policy"
	"github.com/hammamikhairi/bearwithme/internal/practice"
)

func helloScores() *domain.ScoreSet {
	return domain.NewScoreSet(
		domain.PhonemeScore{Phoneme: "hh", Score: 60},
		domain.PhonemeScore{Phoneme: "eh", Score: 95},
	)
}

func TestScoreTable(t *testing.T) {
	s := helloScores()
	out := ScoreTable(s, policy.Evaluate(s, 80))

	for _, want := range []string{"phoneme", "hh", "huh", "eh", "60.0", "95.0", "practice", "ok"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "hh") > strings.Index(out, "eh") {
		t.Errorf("rows out of order:\n%s", out)
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0, "░░░░░░░░░░"},
		{60, "██████░░░░"},
		{100, "██████████"},
		{140, "██████████"},
		{-5, "░░░░░░░░░░"},
	}
	for _, tt := range tests {
		if got := bar(tt.score); got != tt.want {
			t.Errorf("bar(%g) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestConsoleObserver(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Say("Let's practice the word hello.")
	c.OnNoSpeech("hello", 1, domain.ErrNoSpeech)
	c.OnNoSpeech("hello", 2, domain.ErrEmptyScoreSet)
	s := helloScores()
	c.OnScores("hello", 1, s, policy.Evaluate(s, 80), 1500*time.Millisecond)
	c.OnAccepted("hello", 2)

	out := buf.String()
	for _, want := range []string{
		"bear",
		"Let's practice the word hello.",
		"didn't catch that, attempt 1",
		"nothing to score, attempt 2",
		"Round 1",
		"1 to work on",
		"1.5s",
		`"hello" accepted after 2 rounds`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSummary(t *testing.T) {
	res := practice.Result{Word: "hello", Rounds: 1, Attempts: 3, Accepted: true, Duration: 4 * time.Second}
	if got := RenderSummary(res, nil); !strings.Contains(got, "Nice work") || !strings.Contains(got, "1 round, 3 attempts, 4s") {
		t.Errorf("accepted summary = %q", got)
	}

	res.Accepted = false
	if got := RenderSummary(res, errors.New("mic unplugged")); !strings.Contains(got, "mic unplugged") {
		t.Errorf("error summary = %q", got)
	}
}

func TestTranslationTable(t *testing.T) {
	out := TranslationTable([]string{"th", "zz"})
	if !strings.Contains(out, "unknown") || !strings.Contains(out, "zz") {
		t.Fatalf("table:\n%s", out)
	}
}

func TestRenderBannerCentres(t *testing.T) {
	narrow := renderBanner(10)
	wide := renderBanner(200)
	if !strings.HasPrefix(strings.Split(wide, "\n")[0], "   ") {
		t.Fatalf("wide banner not padded:\n%s", wide)
	}
	if len(wide) <= len(narrow) {
		t.Fatal("expected padding on a wide terminal")
	}
}
