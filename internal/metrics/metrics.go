// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from reconciliation runs.
//
// It exposes a narrow interface (Backend) for counters and timing data, with
// a global pluggable backend defaulting to a no-op implementation, so metric
// calls are always safe even when no real backend is configured. Concrete
// systems (Prometheus Pushgateway, Datadog) live in subpackages, mirroring
// the warehouse backend pattern.
package metrics

import (
	"time"

	"recon/internal/textutil"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures latency plus success/failure for one run step
// (discover, scan_budget, scan_spend, aggregate, join, classify, publish).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter("recon_step_total", 1, lbls)
	backend.ObserveHistogram("recon_step_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given job and kind.
//
// Typical kinds mirror the run summary fields, e.g.:
//   - "budget"
//   - "spend_raw"
//   - "spend_monthly"
//   - "joined"
//   - "published"
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("recon_rows_total", float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordStatus counts classified rows per reconciliation status. The human
// readable label is normalized into a tag-safe form ("Over Budget (Running)"
// becomes "over_budget_running").
func RecordStatus(job, label string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("recon_status_total", float64(delta), Labels{
		"job":    job,
		"status": textutil.Normalize(label),
	})
}
