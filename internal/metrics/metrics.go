// Package metrics exposes practice-loop counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hammamikhairi/bearwithme/internal/domain"
	"github.com/hammamikhairi/bearwithme/internal/policy"
	"github.com/hammamikhairi/bearwithme/internal/practice"
)

const namespace = "bearwithme"

// Compile-time interface check.
var _ practice.Observer = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for a practice run.
type Metrics struct {
	Registry *prometheus.Registry

	RoundsTotal        prometheus.Counter
	AssessmentsTotal   *prometheus.CounterVec
	LowPhonemesTotal   *prometheus.CounterVec
	PromptsTotal       prometheus.Counter
	WordsAccepted      prometheus.Counter
	AssessmentDuration prometheus.Histogram
	SynthesisDuration  *prometheus.HistogramVec
}

// New creates the metrics on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		RoundsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Scored practice rounds",
		}),
		AssessmentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Assessment attempts by result",
		}, []string{"result"}),
		LowPhonemesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_phonemes_total",
			Help:      "Phonemes that scored below the threshold",
		}, []string{"phoneme"}),
		PromptsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompts_total",
			Help:      "Feedback prompts spoken",
		}),
		WordsAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_accepted_total",
			Help:      "Words whose every phoneme cleared the threshold",
		}),
		AssessmentDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_duration_seconds",
			Help:      "Time from capture start to scores, per attempt",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 20},
		}),
		SynthesisDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "TTS latency per uncached prompt",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"backend", "result"}),
	}
}

// OnNoSpeech implements practice.Observer.
func (m *Metrics) OnNoSpeech(_ string, _ int, _ error) {
	m.AssessmentsTotal.WithLabelValues("no_speech").Inc()
}

// OnScores implements practice.Observer.
func (m *Metrics) OnScores(_ string, _ int, _ *domain.ScoreSet, d policy.Decision, elapsed time.Duration) {
	m.AssessmentsTotal.WithLabelValues("scored").Inc()
	m.RoundsTotal.Inc()
	m.AssessmentDuration.Observe(elapsed.Seconds())
	for _, low := range d.Low {
		m.LowPhonemesTotal.WithLabelValues(string(low.Phoneme)).Inc()
	}
}

// OnAccepted implements practice.Observer.
func (m *Metrics) OnAccepted(string, int) { m.WordsAccepted.Inc() }

// OnPrompt counts a spoken feedback prompt.
func (m *Metrics) OnPrompt(string) { m.PromptsTotal.Inc() }

// OnSynthesis records TTS latency.
func (m *Metrics) OnSynthesis(backend string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SynthesisDuration.WithLabelValues(backend, result).Observe(elapsed.Seconds())
}
