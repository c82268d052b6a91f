// Package feedback: lines.go centralises every spoken string.
// Keep lines short and direct; the TTS engine handles inflection.
package feedback

import "fmt"

// ── Session ──────────────────────────────────────────────────────

func LineIntro(word string) string {
	return fmt.Sprintf("Let's practice the word %s.", word)
}

// LineSayNow is spoken right before a capture when the assessment
// announces itself.
func LineSayNow(word string) string {
	return fmt.Sprintf("Please say the word %s now.", word)
}

// ── Drill ────────────────────────────────────────────────────────

func LinePracticeSound(sound string) string {
	return fmt.Sprintf("Let's practice the sound %s.", sound)
}

func LineYourTurn(sound string) string {
	return fmt.Sprintf("Your turn: %s", sound)
}

func LineWholeWord(word string) string {
	return fmt.Sprintf("Now try saying the whole word: %s", word)
}

func LineWordCorrect() string {
	return "Great job! You pronounced the word correctly!"
}

// ── Flagged retry ────────────────────────────────────────────────

func LineNotQuite() string {
	return "That's not quite right, can you say "
}

func LineSoundsCorrect() string {
	return "Great job! You pronounced all the sounds correctly."
}

// ── Shared ───────────────────────────────────────────────────────

func LineMuchBetter() string {
	return "Nice! Much better!"
}

// AllLines returns every fixed (argument-free) line, used to warm the
// synthesis cache before a session starts.
func AllLines() []string {
	return []string{
		LineMuchBetter(),
		LineNotQuite(),
		LineWordCorrect(),
		LineSoundsCorrect(),
	}
}
