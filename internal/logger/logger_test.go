package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		wantDebug bool
		wantInfo  bool
	}{
		{"off", LevelOff, false, false},
		{"normal", LevelNormal, false, true},
		{"verbose", LevelVerbose, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(tt.level, &buf, WithFormat(FormatJSON))

			log.Debug("debug %d", 1)
			gotDebug := strings.Contains(buf.String(), "debug 1")
			buf.Reset()

			log.Info("info %d", 2)
			gotInfo := strings.Contains(buf.String(), "info 2")

			if gotDebug != tt.wantDebug {
				t.Errorf("debug output = %v, want %v", gotDebug, tt.wantDebug)
			}
			if gotInfo != tt.wantInfo {
				t.Errorf("info output = %v, want %v", gotInfo, tt.wantInfo)
			}
		})
	}
}

func TestWithAddsField(t *testing.T) {
	var buf bytes.Buffer
	log := New(LevelNormal, &buf, WithFormat(FormatJSON)).With("word", "hello")

	log.Warn("round %d", 3)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decoding log line %q: %v", buf.String(), err)
	}
	if line["word"] != "hello" {
		t.Fatalf("word field = %v, want hello", line["word"])
	}
	if line["message"] != "round 3" {
		t.Fatalf("message = %v, want %q", line["message"], "round 3")
	}
	if line["level"] != "warn" {
		t.Fatalf("level = %v, want warn", line["level"])
	}
}

func TestChildSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := New(LevelNormal, &buf, WithFormat(FormatJSON))
	child := parent.With("k", "v")

	parent.SetLevel(LevelOff)
	child.Error("should not appear")

	if buf.Len() != 0 {
		t.Fatalf("expected no output after parent SetLevel(LevelOff), got %q", buf.String())
	}
	if child.GetLevel() != LevelOff {
		t.Fatalf("child level = %d, want %d", child.GetLevel(), LevelOff)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"off":     LevelOff,
		"quiet":   LevelOff,
		"debug":   LevelVerbose,
		"verbose": LevelVerbose,
		"info":    LevelNormal,
		"":        LevelNormal,
		"weird":   LevelNormal,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}
