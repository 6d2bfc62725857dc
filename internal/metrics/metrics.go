// Package metrics exposes Prometheus counters for prompt mutations and
// remote sync runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jetprompt"

// Registry owns the jetprompt collectors. It satisfies both
// prompts.Observer and cloudsync.Recorder.
type Registry struct {
	reg *prometheus.Registry

	// mutations counts store writes.
	// Labels:
	//   - op: add, update, delete, toggle_favorite, save_all, clear, import
	mutations *prometheus.CounterVec

	// syncs counts sync runs.
	// Labels:
	//   - action: pull, push, now
	//   - status: success, failed
	syncs *prometheus.CounterVec

	// syncDuration observes sync run latency in seconds, per action.
	syncDuration *prometheus.HistogramVec

	lastSuccess *prometheus.GaugeVec
}

// New builds a Registry with the process and Go runtime collectors
// attached.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prompt_mutations_total",
				Help:      "Total number of prompt store mutations",
			},
			[]string{"op"},
		),
		syncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_total",
				Help:      "Total number of remote sync runs",
			},
			[]string{"action", "status"},
		),
		syncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Duration of remote sync runs in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"action"},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sync_last_success_timestamp_seconds",
				Help:      "Unix time of the last successful sync run",
			},
			[]string{"action"},
		),
	}

	r.reg.MustRegister(
		r.mutations,
		r.syncs,
		r.syncDuration,
		r.lastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PromptMutation records one store write.
func (r *Registry) PromptMutation(op string) {
	r.mutations.WithLabelValues(op).Inc()
}

// SyncFinished records the outcome of a sync run.
func (r *Registry) SyncFinished(action string, success bool, elapsed time.Duration) {
	status := "failed"
	if success {
		status = "success"
		r.lastSuccess.WithLabelValues(action).SetToCurrentTime()
	}
	r.syncs.WithLabelValues(action, status).Inc()
	r.syncDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
