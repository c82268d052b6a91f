// Package display renders practice progress on the terminal with lipgloss.
//
// [Console] echoes every spoken prompt, prints a per-round score table and
// a final summary. Output goes to any io.Writer; styles degrade to plain
// text when the writer is not a terminal.
package display

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/phoneme"
	"github.com/hammamikhairi/bearwithme/internal/policy"
	"github.com/hammamikhairi/bearwithme/internal/practice"
)

// Compile-time interface check.
var _ practice.Observer = (*Console)(nil)

// ── Styles ───────────────────────────────────────────────────────

var (
	// BannerStyle is muted slate for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// Chat: soft sky blue for spoken prompts.
	chatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	// Round headers: soft mint.
	stepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bbf7d0"))

	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	urgentOutputStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#fca5a5"))

	goodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#86efac"))

	sepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a1a1aa")).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)
)

const barCells = 10

// ── Console ──────────────────────────────────────────────────────

// Console prints practice progress. Safe for concurrent use.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// Say echoes a spoken prompt.
func (c *Console) Say(text string) {
	c.println(secondaryStyle.Render("  bear ") + sepStyle.Render("› ") + chatStyle.Render(text))
}

// OnNoSpeech reports an attempt with nothing to score.
func (c *Console) OnNoSpeech(_ string, attempt int, err error) {
	reason := "didn't catch that"
	if errors.Is(err, domain.ErrEmptyScoreSet) {
		reason = "nothing to score"
	}
	c.println(secondaryStyle.Render(fmt.Sprintf("  (%s, attempt %d)", reason, attempt)))
}

// OnScores prints the round header and score table.
func (c *Console) OnScores(word string, round int, scores *domain.ScoreSet, d policy.Decision, elapsed time.Duration) {
	verdict := urgentOutputStyle.Render(fmt.Sprintf("%d to work on", len(d.Low)))
	if d.Accepted {
		verdict = goodStyle.Render("all clear")
	}
	header := stepStyle.Render(fmt.Sprintf("  Round %d · %s", round, word)) +
		sepStyle.Render("  │  ") + verdict +
		secondaryStyle.Render(fmt.Sprintf("  (%s)", elapsed.Round(time.Millisecond)))
	c.println(header + "\n" + ScoreTable(scores, d))
}

// OnAccepted announces success.
func (c *Console) OnAccepted(word string, rounds int) {
	c.println(goodStyle.Render(fmt.Sprintf("  ✓ %q accepted after %s", word, plural(rounds, "round"))))
}

// Summary prints the outcome of a Practice call.
func (c *Console) Summary(res practice.Result, err error) {
	c.println(RenderSummary(res, err))
}

// ── Rendering ────────────────────────────────────────────────────

// ScoreTable renders scores as a table with the phoneme, its speakable
// form, the score and a bar. Rows in d.Low are marked.
func ScoreTable(scores *domain.ScoreSet, d policy.Decision) string {
	low := make(map[domain.Phoneme]bool, len(d.Low))
	for _, e := range d.Low {
		low[e.Phoneme] = true
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(sepStyle).
		Headers("phoneme", "sounds like", "score", "").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, e := range scores.Entries() {
		mark := goodStyle.Render("ok")
		if low[e.Phoneme] {
			mark = urgentOutputStyle.Render("practice")
		}
		t.Row(
			string(e.Phoneme),
			phoneme.Translate(string(e.Phoneme)),
			fmt.Sprintf("%5.1f %s", e.Score, bar(e.Score)),
			mark,
		)
	}
	return t.Render()
}

// TranslationTable renders each symbol next to its speakable form.
func TranslationTable(symbols []string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(sepStyle).
		Headers("symbol", "sounds like", "").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, s := range symbols {
		note := ""
		if !phoneme.Known(s) {
			note = secondaryStyle.Render("unknown, spoken as written")
		}
		t.Row(s, phoneme.Translate(s), note)
	}
	return t.Render()
}

// RenderSummary describes a finished practice run in one line.
func RenderSummary(res practice.Result, err error) string {
	stats := fmt.Sprintf("%s, %s, %s",
		plural(res.Rounds, "round"), plural(res.Attempts, "attempt"), res.Duration.Round(time.Second))
	switch {
	case res.Accepted:
		return goodStyle.Render(fmt.Sprintf("  Nice work on %q", res.Word)) + secondaryStyle.Render("  ("+stats+")")
	case err != nil:
		return urgentOutputStyle.Render(fmt.Sprintf("  Stopped practising %q: %v", res.Word, err)) + secondaryStyle.Render("  ("+stats+")")
	default:
		return secondaryStyle.Render(fmt.Sprintf("  Stopped practising %q  (%s)", res.Word, stats))
	}
}

func bar(score float64) string {
	n := int(score/100*barCells + 0.5)
	if n < 0 {
		n = 0
	}
	if n > barCells {
		n = barCells
	}
	return strings.Repeat("█", n) + strings.Repeat("░", barCells-n)
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
