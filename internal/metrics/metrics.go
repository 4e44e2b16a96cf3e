package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes the pipeline's Prometheus metrics. A nil *Recorder is a
// valid no-op recorder.
type Recorder struct {
	registry    *prometheus.Registry
	admissions  *prometheus.CounterVec
	costToday   prometheus.Gauge
	saveFails   prometheus.Counter
	scorerCalls *prometheus.CounterVec
	signals     *prometheus.CounterVec
	backtests   *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		admissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentitrade_budget_admissions_total",
				Help: "Budget gateway admission checks by result",
			},
			[]string{"result"},
		),
		costToday: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentitrade_budget_cost_today_usd",
				Help: "Estimated scorer spend for the current day in USD",
			},
		),
		saveFails: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sentitrade_budget_state_save_failures_total",
				Help: "Budget state writes that failed to persist",
			},
		),
		scorerCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentitrade_scorer_calls_total",
				Help: "Sentiment scorer requests by outcome",
			},
			[]string{"outcome"},
		),
		signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentitrade_signals_total",
				Help: "Generated trading signals by type",
			},
			[]string{"type"},
		),
		backtests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentitrade_backtest_runs_total",
				Help: "Backtest runs by status",
			},
			[]string{"status"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentitrade_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) RecordAdmission(allowed bool) {
	if r == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "refused"
	}
	r.admissions.WithLabelValues(result).Inc()
}

func (r *Recorder) SetCostToday(usd float64) {
	if r == nil {
		return
	}
	r.costToday.Set(usd)
}

func (r *Recorder) RecordBudgetSaveFailure() {
	if r == nil {
		return
	}
	r.saveFails.Inc()
}

// RecordScorerCall counts one scorer request; outcome is one of cache_hit,
// scored, refused, parse_failed or error.
func (r *Recorder) RecordScorerCall(outcome string) {
	if r == nil {
		return
	}
	r.scorerCalls.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordSignal(signalType string) {
	if r == nil {
		return
	}
	r.signals.WithLabelValues(signalType).Inc()
}

func (r *Recorder) RecordBacktest(status string) {
	if r == nil {
		return
	}
	r.backtests.WithLabelValues(status).Inc()
}

func (r *Recorder) ObserveDuration(operation string, d time.Duration) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(operation).Observe(d.Seconds())
}
