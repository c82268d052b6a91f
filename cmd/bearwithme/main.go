// BearWithMe is a pronunciation coach that listens, scores each sound and
// drills the weak ones until the word is right.
//
// Usage:
//
//	bearwithme [word] [flags]
//	bearwithme translate <symbol>...
//	bearwithme devices
//	bearwithme config
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hammamikhairi/bearwithme/internal/assess"
	"github.com/hammamikhairi/bearwithme/internal/cast"
	"github.com/hammamikhairi/bearwithme/internal/config"
	"github.com/hammamikhairi/bearwithme/internal/display"
	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/feedback"
	"github.com/hammamikhairi/bearwithme/internal/logger"
	"github.com/hammamikhairi/bearwithme/internal/metrics"
	"github.com/hammamikhairi/bearwithme/internal/practice"
	"github.com/hammamikhairi/bearwithme/internal/speech"
)

var (
	configPath string

	flagThreshold   float64
	flagFeedback    string
	flagAnnounce    bool
	flagIntro       bool
	flagMaxRounds   int
	flagMaxRetries  int
	flagBackoff     time.Duration
	flagVerbose     bool
	flagQuiet       bool
	flagLogFile     string
	flagLogFormat   string
	flagNoCast      bool
	flagOffline     bool
	flagMetricsAddr string
	flagCacheDir    string
	flagDiskCache   bool
	flagTTS         string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "bearwithme [word]",
		Short:        "Pronunciation practice: say a word until every sound is right",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         runPracticeCmd,
	}

	defaults := config.Defaults()
	f := rootCmd.Flags()
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "config file (.toml, .yaml or .yml)")
	f.Float64Var(&flagThreshold, "threshold", defaults.Practice.Threshold, "score every sound must reach (0-100)")
	f.StringVar(&flagFeedback, "feedback", defaults.Practice.Feedback, fmt.Sprintf("feedback strategy %v", feedback.Names()))
	f.BoolVar(&flagAnnounce, "announce", defaults.Practice.Announce, "say \"Please say the word ... now\" before each capture")
	f.BoolVar(&flagIntro, "intro", defaults.Practice.Intro, "introduce the word before the first attempt")
	f.IntVar(&flagMaxRounds, "max-rounds", defaults.Practice.MaxRounds, "give up after this many scored rounds (0 = unlimited)")
	f.IntVar(&flagMaxRetries, "max-retries", defaults.Practice.MaxNoSpeechRetries, "give up after this many silent attempts in a row (0 = unlimited)")
	f.DurationVar(&flagBackoff, "backoff", defaults.Practice.RetryBackoff.Duration, "wait between silent attempts")
	f.BoolVar(&flagVerbose, "verbose", false, "enable verbose/debug logging")
	f.BoolVar(&flagQuiet, "quiet", false, "disable all logging")
	f.StringVar(&flagLogFile, "log-file", defaults.Log.File, "file to write logs to (\"stderr\" logs to the console)")
	f.StringVar(&flagLogFormat, "log-format", defaults.Log.Format, "log format: console or json")
	f.BoolVar(&flagNoCast, "no-cast", false, "play prompts on local speakers only")
	f.BoolVar(&flagOffline, "offline", false, "assess with local Whisper instead of Azure")
	f.StringVar(&flagMetricsAddr, "metrics-addr", defaults.Metrics.Addr, "serve Prometheus metrics on this address")
	f.StringVar(&flagCacheDir, "cache-dir", defaults.TTS.CacheDir, "directory for the prompt audio cache")
	f.BoolVar(&flagDiskCache, "disk-cache", defaults.TTS.DiskCache, "persist synthesized prompts to the cache directory")
	f.StringVar(&flagTTS, "tts", defaults.TTS.Provider, "speech provider: auto, azure, elevenlabs or none")

	rootCmd.AddCommand(newTranslateCmd())
	rootCmd.AddCommand(newDevicesCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

// ── practice ─────────────────────────────────────────────────────

func runPracticeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, &cfg)
	if len(args) == 1 {
		cfg.Practice.Word = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, closeLog := openLogger(cfg.Log)
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := display.NewConsole(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), display.RenderBanner())

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, m, log)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				log.Warn("metrics shutdown: %v", err)
			}
		}()
	}

	word := cfg.Practice.Word
	voice, mouth := buildVoice(cfg, log, m)
	if mouth != nil {
		mouth.Prefetch(ctx, append(feedback.AllLines(),
			feedback.LineIntro(word),
			feedback.LineSayNow(word),
			feedback.LineWholeWord(word),
		)...)
	}

	assessor, err := buildAssessor(cfg, flagOffline, log)
	if err != nil {
		return err
	}
	if cfg.Practice.Announce {
		assessor = assess.NewAnnouncing(assessor, voice, log)
	}

	strategy, err := feedback.ByName(cfg.Practice.Feedback)
	if err != nil {
		return err
	}
	seq := feedback.NewSequencer(strategy, log, feedback.WithPromptHook(func(text string) {
		console.Say(text)
		m.OnPrompt(text)
	}))

	loop := practice.New(assessor, voice, seq, log,
		practice.WithThreshold(cfg.Practice.Threshold),
		practice.WithMaxRounds(cfg.Practice.MaxRounds),
		practice.WithMaxNoSpeechRetries(cfg.Practice.MaxNoSpeechRetries),
		practice.WithRetryBackoff(cfg.Practice.RetryBackoff.Duration),
		practice.WithIntro(cfg.Practice.Intro),
		practice.WithObserver(m),
		practice.WithObserver(console),
	)

	res, err := loop.Practice(ctx, word)
	console.Summary(res, err)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("threshold") {
		cfg.Practice.Threshold = flagThreshold
	}
	if changed("feedback") {
		cfg.Practice.Feedback = flagFeedback
	}
	if changed("announce") {
		cfg.Practice.Announce = flagAnnounce
	}
	if changed("intro") {
		cfg.Practice.Intro = flagIntro
	}
	if changed("max-rounds") {
		cfg.Practice.MaxRounds = flagMaxRounds
	}
	if changed("max-retries") {
		cfg.Practice.MaxNoSpeechRetries = flagMaxRetries
	}
	if changed("backoff") {
		cfg.Practice.RetryBackoff = config.D(flagBackoff)
	}
	if changed("log-file") {
		cfg.Log.File = flagLogFile
	}
	if changed("log-format") {
		cfg.Log.Format = flagLogFormat
	}
	if flagVerbose {
		cfg.Log.Level = "verbose"
	}
	if flagQuiet {
		cfg.Log.Level = "off"
	}
	if flagNoCast {
		cfg.Cast.Enabled = false
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = flagMetricsAddr
	}
	if changed("cache-dir") {
		cfg.TTS.CacheDir = flagCacheDir
	}
	if changed("disk-cache") {
		cfg.TTS.DiskCache = flagDiskCache
	}
	if changed("tts") {
		cfg.TTS.Provider = flagTTS
	}
}

// openLogger builds the logger. Logs go to a file unless the file is
// "stderr", so the console stays readable.
func openLogger(lc config.Log) (*logger.Logger, func()) {
	var logOut io.Writer = os.Stderr
	closeFn := func() {}
	if lc.File != "" && lc.File != "stderr" {
		if dir := filepath.Dir(lc.File); dir != "" && dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", lc.File, err)
		} else {
			logOut = f
			closeFn = func() { f.Close() }
		}
	}

	// Third-party libraries (the whisper transcriber, go-chromecast) log
	// through the standard package.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	return logger.New(logger.ParseLevel(lc.Level), logOut, logger.WithFormat(logger.Format(lc.Format))), closeFn
}

// buildVoice wires synthesis and playback. It falls back to a silent
// voice when no provider is configured or no output can be opened; the
// returned Mouth is nil in that case.
func buildVoice(cfg config.Config, log *logger.Logger, m *metrics.Metrics) (domain.Voice, *speech.Mouth) {
	synth := buildSynthesizer(cfg, log)
	if synth == nil {
		log.Info("TTS disabled: set %s/%s or %s/%s to enable",
			config.EnvAzureKey, config.EnvAzureRegion, config.EnvElevenAPIKey, config.EnvElevenVoiceID)
		return speech.NewNoOp(log), nil
	}

	var out speech.Output
	player, err := speech.NewPlayer(log)
	if err != nil {
		log.Warn("local audio unavailable: %v", err)
	} else {
		out = player
	}

	if cfg.Cast.Enabled {
		caster := cast.New(castConfig(cfg.Cast), log)
		if out != nil {
			out = speech.NewFallbackOutput(caster, out, log)
		} else {
			out = caster
		}
	}
	if out == nil {
		log.Error("no audio output available, speech disabled")
		return speech.NewNoOp(log), nil
	}

	cache := speech.NewAudioCache(synth.Voice(), log,
		speech.WithCacheDir(cfg.TTS.CacheDir),
		speech.WithDiskWrite(cfg.TTS.DiskCache),
	)
	mouth := speech.NewMouth(synth, out, log,
		speech.WithCache(cache),
		speech.WithSynthesisHook(m.OnSynthesis),
	)
	log.Info("TTS enabled (%s, voice=%s, cast=%t)", synth.Name(), synth.Voice(), cfg.Cast.Enabled)
	return mouth, mouth
}

// buildSynthesizer returns the configured synthesizer, chaining a second
// provider behind a circuit breaker when both are available.
func buildSynthesizer(cfg config.Config, log *logger.Logger) speech.Synthesizer {
	var synths []speech.Synthesizer
	want := func(p string) bool { return cfg.TTS.Provider == config.ProviderAuto || cfg.TTS.Provider == p }

	if want(config.ProviderAzure) && cfg.Azure.Key != "" && cfg.Azure.Region != "" {
		synths = append(synths, speech.NewAzureClient(cfg.Azure.Key, cfg.Azure.Region, log,
			speech.WithVoice(cfg.Azure.Voice),
		))
	}
	if want(config.ProviderElevenLabs) && cfg.ElevenLabs.APIKey != "" && cfg.ElevenLabs.VoiceID != "" {
		c, err := speech.NewElevenLabsClient(cfg.ElevenLabs.APIKey, cfg.ElevenLabs.VoiceID, log,
			speech.WithElevenModel(cfg.ElevenLabs.Model),
		)
		if err != nil {
			log.Warn("elevenlabs disabled: %v", err)
		} else {
			synths = append(synths, c)
		}
	}

	switch len(synths) {
	case 0:
		return nil
	case 1:
		return synths[0]
	default:
		breaker := speech.NewBreaker(synths[0].Name(), 3, 30*time.Second, log)
		return speech.NewFallbackSynthesizer(synths[0], synths[1], breaker, log)
	}
}

func buildAssessor(cfg config.Config, offline bool, log *logger.Logger) (domain.Assessor, error) {
	if offline {
		w := assess.NewWhisper(cfg.Whisper.Bin, cfg.Whisper.Model, log,
			assess.WithRecordDuration(cfg.Whisper.Record.Duration),
		)
		if err := w.Check(); err != nil {
			return nil, fmt.Errorf("offline assessment: %w", err)
		}
		log.Info("assessing offline (bin=%s, model=%s)", cfg.Whisper.Bin, cfg.Whisper.Model)
		return w, nil
	}

	if cfg.Azure.Key == "" || cfg.Azure.Region == "" {
		return nil, fmt.Errorf("%w: set %s and %s, or use --offline",
			domain.ErrNotConfigured, config.EnvAzureKey, config.EnvAzureRegion)
	}
	rec := speech.NewRecorder(speech.Endpoint{
		StartLevel:     cfg.Capture.StartLevel,
		Silence:        cfg.Capture.Silence.Duration,
		MaxDuration:    cfg.Capture.MaxDuration.Duration,
		InitialTimeout: cfg.Capture.InitialTimeout.Duration,
	}, log)
	return assess.NewAzure(rec, cfg.Azure.Key, cfg.Azure.Region, log,
		assess.WithLanguage(cfg.Azure.Language),
	), nil
}

func castConfig(c config.Cast) cast.Config {
	return cast.Config{
		Name:             c.Name,
		Addr:             c.Addr,
		Port:             c.Port,
		DiscoveryTimeout: c.DiscoveryTimeout.Duration,
	}
}

// ── translate ────────────────────────────────────────────────────

func newTranslateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "translate <symbol>...",
		Short: "Show how phoneme symbols are spoken in prompts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), display.TranslationTable(args))
			return nil
		},
	}
}

// ── devices ──────────────────────────────────────────────────────

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List Google Cast devices on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, closeLog := openLogger(cfg.Log)
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			entries, err := cast.New(castConfig(cfg.Cast), log).Discover(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no devices found")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s:%d\n", e.Name, e.Addr, e.Port)
			}
			return nil
		},
	}
}

// ── config ───────────────────────────────────────────────────────

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create the config file if missing and print its path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(configPath); err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("failed to stat config: %w", err)
				}
				if err := config.Defaults().WriteTOML(configPath); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), configPath)
			return nil
		},
	}
}
