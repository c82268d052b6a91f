package domain

import (
	"fmt"
	"testing"
)

func TestScoreSetKeepsInsertionOrder(t *testing.T) {
	s := NewScoreSet(
		PhonemeScore{"hh", 60},
		PhonemeScore{"eh", 95},
		PhonemeScore{"l", 40},
		PhonemeScore{"ow", 90},
	)

	want := []Phoneme{"hh", "eh", "l", "ow"}
	got := s.Entries()
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i, ph := range want {
		if got[i].Phoneme != ph {
			t.Errorf("entry %d = %s, want %s", i, got[i].Phoneme, ph)
		}
	}
}

func TestScoreSetRepeatedPhoneme(t *testing.T) {
	s := NewScoreSet()
	s.Set("l", 40)
	s.Set("ow", 90)
	s.Set("l", 85)

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if v, _ := s.Get("l"); v != 85 {
		t.Fatalf("score for l = %.1f, want latest value 85", v)
	}
	if s.Entries()[0].Phoneme != "l" {
		t.Fatalf("l lost its first position: %v", s.Entries())
	}
}

func TestNilScoreSetIsEmpty(t *testing.T) {
	var s *ScoreSet
	if !s.Empty() {
		t.Fatal("nil set should be empty")
	}
	if s.Entries() != nil {
		t.Fatal("nil set should have no entries")
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("nil set should not find anything")
	}
}

func TestScoreSetString(t *testing.T) {
	s := NewScoreSet(PhonemeScore{"hh", 60}, PhonemeScore{"eh", 95.04})
	if got, want := s.String(), "hh:60.0 eh:95.0"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestIsNoSpeech(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrNoSpeech, true},
		{ErrEmptyScoreSet, true},
		{fmt.Errorf("azure: %w", ErrNoSpeech), true},
		{ErrNotConfigured, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsNoSpeech(tt.err); got != tt.want {
			t.Errorf("IsNoSpeech(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
