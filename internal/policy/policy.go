// Package policy decides which phonemes of an assessed attempt need work.
package policy

import "github.com/hammamikhairi/bearwithme/internal/domain"

// Decision is the outcome of evaluating one round's scores.
type Decision struct {
	// Low holds the phonemes scoring strictly below the threshold, in the
	// order the assessment reported them.
	Low []domain.PhonemeScore
	// Accepted is true iff Low is empty.
	Accepted bool
}

// Evaluate partitions scores against threshold. A score equal to the
// threshold is accepted. Each call looks only at its own input.
func Evaluate(scores *domain.ScoreSet, threshold float64) Decision {
	var low []domain.PhonemeScore
	for _, e := range scores.Entries() {
		if e.Score < threshold {
			low = append(low, e)
		}
	}
	return Decision{Low: low, Accepted: len(low) == 0}
}

// LowPhonemes returns just the phoneme symbols of d.Low.
func (d Decision) LowPhonemes() []domain.Phoneme {
	out := make([]domain.Phoneme, len(d.Low))
	for i, e := range d.Low {
		out[i] = e.Phoneme
	}
	return out
}
