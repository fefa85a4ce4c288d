// Package metrics records quote service activity as prometheus collectors.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so tests and embedders never collide
type Recorder struct {
	registry  *prometheus.Registry
	pricing   *prometheus.CounterVec
	mutations *prometheus.CounterVec
	retries   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// New creates a recorder under namespace
func New(namespace string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		pricing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_calculations_total",
			Help:      "Usage contexts priced, by scheme and result.",
		}, []string{"scheme", "result"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_versions_committed_total",
			Help:      "Quote versions committed, by change type.",
		}, []string{"change_type"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_save_retries_total",
			Help:      "Optimistic concurrency retries, by operation.",
		}, []string{"operation"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "result"}),
	}
	r.registry.MustRegister(r.pricing, r.mutations, r.retries, r.duration)
	return r
}

// ObservePricing counts one engine calculation
func (r *Recorder) ObservePricing(scheme string, err error) {
	if r == nil {
		return
	}
	if scheme == "" {
		scheme = "unknown"
	}
	r.pricing.WithLabelValues(scheme, result(err)).Inc()
}

// ObserveCommit counts one committed version
func (r *Recorder) ObserveCommit(changeType string) {
	if r == nil {
		return
	}
	r.mutations.WithLabelValues(changeType).Inc()
}

// ObserveRetry counts one reload-and-retry cycle
func (r *Recorder) ObserveRetry(operation string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(operation).Inc()
}

// ObserveDuration records how long an operation took
func (r *Recorder) ObserveDuration(operation string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(operation, result(err)).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Counters returns every counter sample keyed by name{labels}
func (r *Recorder) Counters() (map[string]float64, error) {
	out := make(map[string]float64)
	if r == nil {
		return out, nil
	}
	families, err := r.registry.Gather()
	if err != nil {
		return nil, err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			sort.Strings(labels)
			out[mf.GetName()+"{"+strings.Join(labels, ",")+"}"] = m.GetCounter().GetValue()
		}
	}
	return out, nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
