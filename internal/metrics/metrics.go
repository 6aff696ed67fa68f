// Package metrics is the thin, backend-agnostic metrics facade the pipeline
// stages record into. The default backend discards everything; a process
// that wants real metrics installs one (see internal/metrics/datadog) at
// startup via SetBackend.
//
// Metric names used across the pipeline:
//   - pipeline_stage_total            counter, labels stage + status
//   - pipeline_stage_duration_seconds histogram, labels stage + status
//   - pipeline_rows_total             counter, label kind (original|selected)
//   - pipeline_tokens_total           counter, label kind (input|output)
package metrics

import "sync/atomic"

// Labels are free-form metric dimensions.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer before submission.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

// holder keeps atomic.Value stores consistently typed regardless of the
// installed backend's concrete type.
type holder struct {
	b Backend
}

var current atomic.Value

func init() {
	current.Store(holder{nopBackend{}})
}

// SetBackend installs the process-wide backend. Safe for concurrent use,
// though it is normally called once during startup.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	current.Store(holder{b})
}

func backend() Backend {
	return current.Load().(holder).b
}

// IncCounter adds delta to a counter on the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	backend().IncCounter(name, delta, labels)
}

// ObserveHistogram records one histogram sample on the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	backend().ObserveHistogram(name, value, labels)
}

// Flush flushes the installed backend when it buffers; a no-op otherwise.
func Flush() error {
	if f, ok := backend().(Flusher); ok {
		return f.Flush()
	}
	return nil
}
