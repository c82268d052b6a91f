// Package config loads bearwithme settings. Values are layered: built-in
// defaults, then the config file (TOML, or YAML by extension), then the
// environment (including a .env file). Command-line flags are applied last
// by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/feedback"
)

// Duration is a time.Duration written as "800ms" or "5s" in config files.
type Duration struct {
	time.Duration
}

// D wraps d.
func D(d time.Duration) Duration { return Duration{d} }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the resolved configuration.
type Config struct {
	Practice   Practice   `toml:"practice" yaml:"practice"`
	Azure      Azure      `toml:"azure" yaml:"azure"`
	ElevenLabs ElevenLabs `toml:"elevenlabs" yaml:"elevenlabs"`
	TTS        TTS        `toml:"tts" yaml:"tts"`
	Cast       Cast       `toml:"cast" yaml:"cast"`
	Capture    Capture    `toml:"capture" yaml:"capture"`
	Whisper    Whisper    `toml:"whisper" yaml:"whisper"`
	Metrics    Metrics    `toml:"metrics" yaml:"metrics"`
	Log        Log        `toml:"log" yaml:"log"`
}

// Practice tunes the practice loop.
type Practice struct {
	Word               string   `toml:"word" yaml:"word"`
	Threshold          float64  `toml:"threshold" yaml:"threshold"`
	Feedback           string   `toml:"feedback" yaml:"feedback"`
	Announce           bool     `toml:"announce" yaml:"announce"`
	Intro              bool     `toml:"intro" yaml:"intro"`
	MaxRounds          int      `toml:"max_rounds" yaml:"max_rounds"`
	MaxNoSpeechRetries int      `toml:"max_no_speech_retries" yaml:"max_no_speech_retries"`
	RetryBackoff       Duration `toml:"retry_backoff" yaml:"retry_backoff"`
}

// Azure holds Speech service credentials, used for assessment and TTS.
type Azure struct {
	Key      string `toml:"key" yaml:"key"`
	Region   string `toml:"region" yaml:"region"`
	Language string `toml:"language" yaml:"language"`
	Voice    string `toml:"voice" yaml:"voice"`
}

// ElevenLabs holds streaming TTS credentials.
type ElevenLabs struct {
	APIKey  string `toml:"api_key" yaml:"api_key"`
	VoiceID string `toml:"voice_id" yaml:"voice_id"`
	Model   string `toml:"model" yaml:"model"`
}

// TTS provider names.
const (
	ProviderAuto       = "auto"
	ProviderAzure      = "azure"
	ProviderElevenLabs = "elevenlabs"
	ProviderNone       = "none"
)

// TTS selects the synthesizer and its audio cache.
type TTS struct {
	// Provider is auto, azure, elevenlabs or none. auto uses every
	// configured backend, the first as primary.
	Provider  string `toml:"provider" yaml:"provider"`
	CacheDir  string `toml:"cache_dir" yaml:"cache_dir"`
	DiskCache bool   `toml:"disk_cache" yaml:"disk_cache"`
}

// Cast selects the Google Cast device prompts play on.
type Cast struct {
	Enabled          bool     `toml:"enabled" yaml:"enabled"`
	Name             string   `toml:"name" yaml:"name"`
	Addr             string   `toml:"addr" yaml:"addr"`
	Port             int      `toml:"port" yaml:"port"`
	DiscoveryTimeout Duration `toml:"discovery_timeout" yaml:"discovery_timeout"`
}

// Capture tunes microphone end-pointing.
type Capture struct {
	StartLevel     float64  `toml:"start_level" yaml:"start_level"`
	MaxDuration    Duration `toml:"max_duration" yaml:"max_duration"`
	Silence        Duration `toml:"silence" yaml:"silence"`
	InitialTimeout Duration `toml:"initial_timeout" yaml:"initial_timeout"`
}

// Whisper configures the offline assessor.
type Whisper struct {
	Bin    string   `toml:"bin" yaml:"bin"`
	Model  string   `toml:"model" yaml:"model"`
	Record Duration `toml:"record" yaml:"record"`
}

// Metrics configures the Prometheus endpoint. Empty Addr disables it.
type Metrics struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// Log configures logging. File "stderr" or "" logs to the console.
type Log struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	File   string `toml:"file" yaml:"file"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Practice: Practice{
			Word:      "hello",
			Threshold: domain.DefaultThreshold,
			Feedback:  "drill",
		},
		Azure: Azure{
			Language: "en-US",
			Voice:    "en-US-AvaNeural",
		},
		ElevenLabs: ElevenLabs{
			Model: "eleven_flash_v2_5",
		},
		TTS: TTS{
			Provider:  ProviderAuto,
			CacheDir:  DefaultCacheDir(),
			DiskCache: true,
		},
		Cast: Cast{
			Enabled:          true,
			Port:             8009,
			DiscoveryTimeout: D(5 * time.Second),
		},
		Capture: Capture{
			StartLevel:     500,
			MaxDuration:    D(5 * time.Second),
			Silence:        D(800 * time.Millisecond),
			InitialTimeout: D(5 * time.Second),
		},
		Whisper: Whisper{
			Bin:    "whisper-cli",
			Model:  "bin/ggml-small.bin",
			Record: D(3 * time.Second),
		},
		Log: Log{
			Level:  "normal",
			Format: "console",
			File:   "stderr",
		},
	}
}

// Load returns defaults overlaid with the file at path and the
// environment. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if err := LoadFile(path, &cfg); err != nil {
		return cfg, err
	}
	if err := LoadDotEnv(); err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile decodes path over cfg. Keys absent from the file keep their
// current values. Files ending in .yaml or .yml are read as YAML, anything
// else as TOML.
func LoadFile(path string, cfg *Config) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	default:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("failed to decode config %s: %w", path, err)
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			keys := make([]string, len(undec))
			for i, k := range undec {
				keys[i] = k.String()
			}
			return fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}
	return nil
}

// LoadDotEnv loads .env from the working directory into the process
// environment without overriding variables that are already set.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Environment variable names.
const (
	EnvAzureKey       = "AZURE_KEY"
	EnvAzureKeyAlt    = "AZURE_SPEECH_KEY"
	EnvAzureRegion    = "AZURE_REGION"
	EnvAzureRegionAlt = "AZURE_SPEECH_REGION"
	EnvElevenAPIKey   = "ELEVEN_API_KEY"
	EnvElevenVoiceID  = "VOICE_ID"
	EnvCastName       = "GOOGLE_HOME_NAME"
	EnvCastAddr       = "GOOGLE_HOME_IP"
	EnvThreshold      = "THRESHOLD"
)

// ApplyEnv overlays set, non-empty variables read through getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	first := func(names ...string) string {
		for _, n := range names {
			if v := strings.TrimSpace(getenv(n)); v != "" {
				return v
			}
		}
		return ""
	}
	set := func(dst *string, names ...string) {
		if v := first(names...); v != "" {
			*dst = v
		}
	}

	set(&cfg.Azure.Key, EnvAzureKey, EnvAzureKeyAlt)
	set(&cfg.Azure.Region, EnvAzureRegion, EnvAzureRegionAlt)
	set(&cfg.ElevenLabs.APIKey, EnvElevenAPIKey)
	set(&cfg.ElevenLabs.VoiceID, EnvElevenVoiceID)
	set(&cfg.Cast.Name, EnvCastName)
	set(&cfg.Cast.Addr, EnvCastAddr)

	if v := first(EnvThreshold); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvThreshold, v, err)
		}
		cfg.Practice.Threshold = t
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Practice.Word) == "" {
		add("practice.word must not be empty")
	}
	if th := c.Practice.Threshold; math.IsNaN(th) || th < 0 || th > 100 {
		add("practice.threshold must be between 0 and 100, got %g", c.Practice.Threshold)
	}
	if _, err := feedback.ByName(c.Practice.Feedback); err != nil {
		add("practice.feedback: %w", err)
	}
	if c.Practice.MaxRounds < 0 {
		add("practice.max_rounds must be >= 0, got %d", c.Practice.MaxRounds)
	}
	if c.Practice.MaxNoSpeechRetries < 0 {
		add("practice.max_no_speech_retries must be >= 0, got %d", c.Practice.MaxNoSpeechRetries)
	}

	switch c.TTS.Provider {
	case ProviderAuto, ProviderAzure, ProviderElevenLabs, ProviderNone:
	default:
		add("tts.provider must be one of auto, azure, elevenlabs, none, got %q", c.TTS.Provider)
	}
	if c.Cast.Port < 0 || c.Cast.Port > 65535 {
		add("cast.port out of range: %d", c.Cast.Port)
	}
	if c.Capture.StartLevel < 0 {
		add("capture.start_level must be >= 0, got %g", c.Capture.StartLevel)
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		add("log.format must be console or json, got %q", c.Log.Format)
	}

	for name, d := range map[string]Duration{
		"practice.retry_backoff":  c.Practice.RetryBackoff,
		"cast.discovery_timeout":  c.Cast.DiscoveryTimeout,
		"capture.max_duration":    c.Capture.MaxDuration,
		"capture.silence":         c.Capture.Silence,
		"capture.initial_timeout": c.Capture.InitialTimeout,
		"whisper.record":          c.Whisper.Record,
	} {
		if d.Duration < 0 {
			add("%s must not be negative, got %s", name, d)
		}
	}
	return errors.Join(errs...)
}

// WriteTOML encodes c as a TOML document, used as the starting config file.
func (c Config) WriteTOML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("# bearwithme configuration. Environment variables and flags override these values.\n\n")
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
