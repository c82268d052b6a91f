package assess

import (
	"regexp"
	"strings"
)

// annotation matches whisper environment tags like "[BLANK_AUDIO]",
// "(keyboard clicking)" or "[Music]".
var annotation = regexp.MustCompile(`[\(\[][A-Za-z][A-Za-z_\s]*[\)\]]`)

// timestamp matches the "[00:00:00.000 --> 00:00:02.000]" prefix whisper
// prints in verbose mode.
var timestamp = regexp.MustCompile(`\[\d{2}:\d{2}:\d{2}\.\d{3} --> \d{2}:\d{2}:\d{2}\.\d{3}\]`)

// hallucinations are transcripts whisper produces from silence.
var hallucinations = map[string]bool{
	"...":                     true,
	"you":                     true,
	"thank you.":              true,
	"thanks for watching!":    true,
	"thank you for watching.": true,
	"bye.":                    true,
	"the end.":                true,
}

// cleanTranscription strips annotations, timestamps and known silence
// hallucinations, returning "" when nothing was said.
func cleanTranscription(s string) string {
	s = timestamp.ReplaceAllString(s, " ")
	s = annotation.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	if hallucinations[strings.ToLower(s)] {
		return ""
	}
	return s
}
