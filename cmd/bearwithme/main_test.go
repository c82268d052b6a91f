package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hammamikhairi/bearwithme/internal/config"
	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/logger"
)

func TestApplyFlagsOnlyChanged(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--threshold=70", "--feedback=retry", "--backoff=2s", "--no-cast"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	t.Cleanup(func() { flagNoCast = false })

	cfg := config.Defaults()
	cfg.Practice.MaxRounds = 9 // from a config file; no flag given
	applyFlags(cmd, &cfg)

	if cfg.Practice.Threshold != 70 || cfg.Practice.Feedback != "retry" {
		t.Fatalf("practice = %+v", cfg.Practice)
	}
	if cfg.Practice.RetryBackoff.Duration != 2*time.Second {
		t.Fatalf("backoff = %s", cfg.Practice.RetryBackoff)
	}
	if cfg.Practice.MaxRounds != 9 {
		t.Fatalf("unset flag overrode config: max_rounds = %d", cfg.Practice.MaxRounds)
	}
	if cfg.Cast.Enabled {
		t.Fatal("--no-cast ignored")
	}
}

func TestTranslateCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"translate", "TH", "hh", "ow1"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{"TH", "th", "huh", "oh"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestConfigCommandWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bearwithme", "config.toml")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "--config", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.TrimSpace(out.String()) != path {
		t.Fatalf("printed %q", out.String())
	}
	cfg := config.Defaults()
	cfg.Practice.Word = "changed"
	if err := config.LoadFile(path, &cfg); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Practice.Word != "hello" {
		t.Fatalf("word = %q", cfg.Practice.Word)
	}
}

func TestBuildAssessorRequiresCredentials(t *testing.T) {
	cfg := config.Defaults()
	_, err := buildAssessor(cfg, false, logger.New(logger.LevelOff, nil))
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildSynthesizer(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)

	cfg := config.Defaults()
	if s := buildSynthesizer(cfg, log); s != nil {
		t.Fatalf("no credentials: got %s", s.Name())
	}

	cfg.Azure.Key, cfg.Azure.Region = "k", "westeurope"
	cfg.ElevenLabs.APIKey, cfg.ElevenLabs.VoiceID = "xi", "v1"
	if s := buildSynthesizer(cfg, log); s == nil || s.Name() != "azure+elevenlabs" {
		t.Fatalf("auto: got %v", s)
	}

	cfg.TTS.Provider = config.ProviderElevenLabs
	if s := buildSynthesizer(cfg, log); s == nil || s.Name() != "elevenlabs" {
		t.Fatalf("elevenlabs only: got %v", s)
	}

	cfg.TTS.Provider = config.ProviderNone
	if s := buildSynthesizer(cfg, log); s != nil {
		t.Fatalf("none: got %s", s.Name())
	}
}
