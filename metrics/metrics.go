// Package metrics exports Prometheus collectors for validation runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/wfvalidate/workflow/validation"
)

const namespace = "wfvalidate"

// Recorder implements validation.Recorder on top of Prometheus collectors.
// A nil *Recorder records nothing.
type Recorder struct {
	runs          *prometheus.CounterVec
	issues        *prometheus.CounterVec
	qualityScore  *prometheus.GaugeVec
	overallScore  prometheus.Gauge
	stageDuration *prometheus.HistogramVec
}

var _ validation.Recorder = (*Recorder)(nil)

// NewRecorder creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Validation runs by overall status.",
		}, []string{"status"}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_total",
			Help:      "Issues reported by stage and type.",
		}, []string{"stage", "type"}),
		qualityScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_score",
			Help:      "Latest quality score per dimension.",
		}, []string{"dimension"}),
		overallScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_overall_score",
			Help:      "Latest weighted overall quality score.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each validation stage.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 15},
		}, []string{"stage"}),
	}
	if reg != nil {
		reg.MustRegister(r.runs, r.issues, r.qualityScore, r.overallScore, r.stageDuration)
	}
	return r
}

// ObserveStage records the duration of one stage.
func (r *Recorder) ObserveStage(stage validation.Stage, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
}

// ObserveReport records the outcome of a finished run.
func (r *Recorder) ObserveReport(rep *validation.Report) {
	if r == nil || rep == nil {
		return
	}
	r.runs.WithLabelValues(string(rep.Summary.OverallStatus)).Inc()

	for _, stage := range []validation.Stage{validation.StageSyntax, validation.StageLogic, validation.StageDependencies} {
		result, _ := rep.StageResult(stage)
		for _, issue := range result.Issues {
			r.issues.WithLabelValues(string(stage), issue.Type).Inc()
		}
	}

	if rep.Quality != nil {
		for dim, score := range rep.Quality.DimensionScores {
			r.qualityScore.WithLabelValues(dim).Set(score)
		}
		r.overallScore.Set(rep.Quality.OverallScore)
	}
}

// Handler serves the collectors registered with g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
