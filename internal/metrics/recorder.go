package metrics

import (
	"context"
	"net/http"
	"strconv"

	"evaluation-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder observes session lifecycle and finalized attempts. It is both an
// app.SessionObserver and an app.ResultSink.
type Recorder struct {
	registry *prometheus.Registry

	sessionsStarted *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	results         *prometheus.CounterVec
	timedOut        prometheus.Counter
	scores          prometheus.Histogram
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		// mode: reporting/local
		sessionsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_sessions_started_total",
				Help: "Total number of evaluation sessions started",
			},
			[]string{"mode"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "evaluation_sessions_active",
				Help: "Current number of mounted evaluation sessions",
			},
		),
		// outcome: passed/failed
		results: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_results_total",
				Help: "Total number of finalized attempts",
			},
			[]string{"outcome", "attempt"},
		),
		timedOut: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "evaluation_results_timed_out_total",
				Help: "Total number of attempts finalized by the countdown",
			},
		),
		scores: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "evaluation_score",
				Help:    "Distribution of scores on the 0-20 scale",
				Buckets: prometheus.LinearBuckets(0, 2, 11),
			},
		),
	}
}

func (r *Recorder) SessionStarted(_ string, reporting bool) {
	mode := "local"
	if reporting {
		mode = "reporting"
	}
	r.sessionsStarted.WithLabelValues(mode).Inc()
	r.activeSessions.Inc()
}

func (r *Recorder) SessionClosed(string) {
	r.activeSessions.Dec()
}

func (r *Recorder) RecordResult(_ context.Context, record domain.ResultRecord) error {
	outcome := "failed"
	if record.Result.Passed {
		outcome = "passed"
	}
	r.results.WithLabelValues(outcome, strconv.Itoa(record.Result.Attempt)).Inc()
	if record.Result.TimedOut {
		r.timedOut.Inc()
	}
	r.scores.Observe(float64(record.Result.Score))
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
