// Package phoneme turns phonetic-alphabet symbols into short words a TTS
// voice can say aloud in a practice prompt.
package phoneme

import (
	"strings"
	"unicode"

	"github.com/hammamikhairi/bearwithme/internal/domain"
)

// standard maps stress-free phoneme codes to speakable syllables.
var standard = map[string]string{
	"aa": "ah", "ae": "uh", "ah": "uh", "ax": "uh", "ao": "aw",
	"aw": "ow", "ay": "eye", "b": "b", "ch": "ch", "d": "d",
	"dh": "th", "eh": "eh", "er": "er", "ey": "ay", "f": "f",
	"g": "g", "hh": "h", "ih": "ih", "iy": "ee", "jh": "j",
	"k": "k", "l": "l", "m": "m", "n": "n", "ng": "ng",
	"ow": "oh", "oy": "oy", "p": "p", "r": "r", "s": "s",
	"sh": "sh", "t": "t", "th": "th", "uh": "oo", "uw": "oo",
	"v": "v", "w": "w", "y": "y", "z": "z", "zh": "zh", "axr": "er",
}

// letters expands a bare letter into something a voice can pronounce on
// its own ("b" is read as "bee" otherwise).
var letters = map[string]string{
	"a": "ay", "b": "buh", "c": "cuh", "d": "duh", "e": "ee",
	"f": "fuh", "g": "guh", "h": "huh", "i": "eye", "j": "juh",
	"k": "kuh", "l": "luh", "m": "muh", "n": "nuh", "o": "oh",
	"p": "puh", "q": "koo", "r": "ruh", "s": "suh", "t": "tuh",
	"u": "oo", "v": "vuh", "w": "wuh", "x": "ex", "y": "yuh", "z": "zuh",
}

// Normalize strips stress digits and lower-cases the symbol: "AH0" -> "ah".
func Normalize(symbol string) domain.Phoneme {
	var b strings.Builder
	b.Grow(len(symbol))
	for _, r := range symbol {
		if unicode.IsDigit(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return domain.Phoneme(b.String())
}

// Translate returns the speakable form of symbol. Unknown symbols come back
// normalized and otherwise unchanged, so Translate never fails.
func Translate(symbol string) string {
	base := string(Normalize(symbol))

	text, ok := standard[base]
	if !ok {
		text = base
	}

	if len(text) == 1 {
		if expanded, ok := letters[text]; ok {
			text = expanded
		}
	}
	return text
}

// Known reports whether symbol is in the standard phoneme table.
func Known(symbol string) bool {
	_, ok := standard[string(Normalize(symbol))]
	return ok
}
