package domain

import (
	"fmt"
	"strings"
)

// DefaultThreshold is the accuracy score a phoneme needs to be accepted.
const DefaultThreshold = 80.0

// Phoneme is a phonetic-alphabet symbol such as "hh" or "ow". Symbols held
// in a ScoreSet carry no stress digit.
type Phoneme string

// PhonemeScore pairs a phoneme with its accuracy score in [0, 100].
type PhonemeScore struct {
	Phoneme Phoneme
	Score   float64
}

// ScoreSet is the per-phoneme result of one assessed utterance. Iteration
// follows insertion order. Setting a phoneme that is already present
// replaces its score but keeps its original position.
//
// A ScoreSet is produced fresh for every round and never merged.
type ScoreSet struct {
	order  []Phoneme
	scores map[Phoneme]float64
}

// NewScoreSet creates a set from the given pairs, in order.
func NewScoreSet(pairs ...PhonemeScore) *ScoreSet {
	s := &ScoreSet{scores: make(map[Phoneme]float64, len(pairs))}
	for _, p := range pairs {
		s.Set(p.Phoneme, p.Score)
	}
	return s
}

// Set records score for ph.
func (s *ScoreSet) Set(ph Phoneme, score float64) {
	if s.scores == nil {
		s.scores = make(map[Phoneme]float64)
	}
	if _, ok := s.scores[ph]; !ok {
		s.order = append(s.order, ph)
	}
	s.scores[ph] = score
}

// Get returns the score for ph.
func (s *ScoreSet) Get(ph Phoneme) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.scores[ph]
	return v, ok
}

// Len returns the number of distinct phonemes. Safe on a nil set.
func (s *ScoreSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Empty reports whether the set carries no usable result.
func (s *ScoreSet) Empty() bool { return s.Len() == 0 }

// Entries returns the pairs in insertion order.
func (s *ScoreSet) Entries() []PhonemeScore {
	if s == nil {
		return nil
	}
	out := make([]PhonemeScore, len(s.order))
	for i, ph := range s.order {
		out[i] = PhonemeScore{Phoneme: ph, Score: s.scores[ph]}
	}
	return out
}

// String renders the set as "hh:60.0 eh:95.0" for logs.
func (s *ScoreSet) String() string {
	var b strings.Builder
	for i, e := range s.Entries() {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s:%.1f", e.Phoneme, e.Score)
	}
	return b.String()
}
