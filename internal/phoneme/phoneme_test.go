package phoneme

import (
	"testing"

	"github.com/hammamikhairi/bearwithme/internal/domain"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		// Multi-letter outputs skip the letter expansion.
		{"aa", "ah"},
		{"ay", "eye"},
		{"ow", "oh"},
		{"axr", "er"},
		{"sh", "sh"},
		{"ng", "ng"},

		// Single-letter outputs get expanded.
		{"g1", "guh"},
		{"b", "buh"},
		{"hh", "huh"},
		{"l", "luh"},
		{"jh", "juh"},

		// Stress markers and case are ignored.
		{"AH0", "uh"},
		{"EY2", "ay"},
		{"HH", "huh"},

		// Unknown symbols pass through normalized.
		{"zzq2", "zzq"},
		{"q", "koo"},
		{"x", "ex"},
		{"", ""},
		{"123", ""},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			if got := Translate(tt.symbol); got != tt.want {
				t.Fatalf("Translate(%q) = %q, want %q", tt.symbol, got, tt.want)
			}
		})
	}
}

func TestTranslateIgnoresTrailingDigits(t *testing.T) {
	symbols := []string{"aa", "hh", "l", "ow", "axr", "zzq", "g", "e"}
	suffixes := []string{"0", "1", "2", "12", "007"}

	for _, s := range symbols {
		base := Translate(s)
		for _, suf := range suffixes {
			if got := Translate(s + suf); got != base {
				t.Errorf("Translate(%q) = %q, want %q (same as %q)", s+suf, got, base, s)
			}
		}
	}
}

func TestTranslateDeterministic(t *testing.T) {
	for sym := range standard {
		first := Translate(sym)
		for i := 0; i < 3; i++ {
			if got := Translate(sym); got != first {
				t.Fatalf("Translate(%q) changed between calls: %q vs %q", sym, first, got)
			}
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]domain.Phoneme{
		"AH0": "ah",
		"ow":  "ow",
		"Er1": "er",
		"":    "",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKnown(t *testing.T) {
	if !Known("AH1") {
		t.Error("AH1 should be known")
	}
	if Known("zzq") {
		t.Error("zzq should not be known")
	}
}
