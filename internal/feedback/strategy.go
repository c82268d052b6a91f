package feedback

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/phoneme"
	"github.com/hammamikhairi/bearwithme/internal/policy"
)

// Step is one element of a feedback sequence: either a prompt to speak or
// a silent pause that gives the learner time to answer.
type Step struct {
	Text  string
	Pause time.Duration
	pause bool
}

// Say returns a speaking step.
func Say(text string) Step { return Step{Text: text} }

// Wait returns a pause step.
func Wait(d time.Duration) Step { return Step{Pause: d, pause: true} }

// IsPause reports whether s was built by Wait. A Say step with empty text
// is still a speaking step.
func (s Step) IsPause() bool { return s.pause }

func (s Step) String() string {
	if s.IsPause() {
		return fmt.Sprintf("<pause %s>", s.Pause)
	}
	return s.Text
}

// Strategy turns a round's decision into an ordered list of steps. Plan
// is pure: the same decision and word always give the same steps.
type Strategy interface {
	Name() string
	Plan(d policy.Decision, word string) []Step
}

// Drill pauses.
const (
	DrillRepeatPause    = 500 * time.Millisecond
	DrillWholeWordPause = 1 * time.Second
	RetryLeadPause      = 200 * time.Millisecond
	RetryRepeatPause    = 500 * time.Millisecond
)

// Drill walks through each weak sound ("let's practice", "your turn",
// encouragement) and finishes by asking for the whole word again.
type Drill struct{}

func (Drill) Name() string { return "drill" }

func (Drill) Plan(d policy.Decision, word string) []Step {
	if d.Accepted {
		return []Step{Say(LineWordCorrect())}
	}

	steps := make([]Step, 0, len(d.Low)*4+2)
	for _, low := range d.Low {
		sound, ok := speakable(low.Phoneme)
		if !ok {
			continue
		}
		steps = append(steps,
			Say(LinePracticeSound(sound)),
			Say(LineYourTurn(sound)),
			Wait(DrillRepeatPause),
			Say(LineMuchBetter()),
		)
	}
	return append(steps,
		Say(LineWholeWord(word)),
		Wait(DrillWholeWordPause),
	)
}

// FlaggedRetry names each weak sound after a fixed "not quite" stem and
// leaves the whole-word retry to the next assessment.
type FlaggedRetry struct{}

func (FlaggedRetry) Name() string { return "retry" }

func (FlaggedRetry) Plan(d policy.Decision, _ string) []Step {
	if d.Accepted {
		return []Step{Say(LineSoundsCorrect())}
	}

	steps := make([]Step, 0, len(d.Low)*5)
	for _, low := range d.Low {
		sound, ok := speakable(low.Phoneme)
		if !ok {
			continue
		}
		steps = append(steps,
			Say(LineNotQuite()),
			Wait(RetryLeadPause),
			Say(sound),
			Wait(RetryRepeatPause),
			Say(LineMuchBetter()),
		)
	}
	return steps
}

// speakable returns the spoken form of p. Symbols that normalize to
// nothing (stress digits alone, blanks) have no sound to name.
func speakable(p domain.Phoneme) (string, bool) {
	sound := strings.TrimSpace(phoneme.Translate(string(p)))
	return sound, sound != ""
}

var strategies = map[string]Strategy{
	Drill{}.Name():        Drill{},
	FlaggedRetry{}.Name(): FlaggedRetry{},
}

// ByName returns the strategy registered under name.
func ByName(name string) (Strategy, error) {
	s, ok := strategies[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown feedback strategy %q (valid: %s)", name, strings.Join(Names(), ", "))
	}
	return s, nil
}

// Names lists the registered strategy names, sorted.
func Names() []string {
	out := make([]string, 0, len(strategies))
	for n := range strategies {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Texts returns the spoken lines of steps in order, skipping pauses.
func Texts(steps []Step) []string {
	var out []string
	for _, s := range steps {
		if !s.IsPause() {
			out = append(out, s.Text)
		}
	}
	return out
}
