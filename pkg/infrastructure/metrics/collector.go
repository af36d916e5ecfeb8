// Package metrics instruments statement execution, validation, and schema
// versioning. Services depend on the Collector interface so the Prometheus
// backend stays swappable (and disableable in tests and dev setups).
package metrics

import (
	"time"
)

// Collector records counters, histograms, gauges, and timings for query
// operations.
type Collector interface {
	// IncrementCounter increments a counter such as statements_executed
	// or target_connect_failures.
	IncrementCounter(name string, labels ...string)

	// RecordHistogram records an observation, e.g. a statement duration
	// in seconds.
	RecordHistogram(name string, value float64, labels ...string)

	// RecordGauge sets a gauge value.
	RecordGauge(name string, value float64, labels ...string)

	// StartTimer starts timing an operation, typically one statement.
	StartTimer(name string) Timer
}

// Timer measures the duration of a single operation.
type Timer interface {
	// Stop stops the timer and returns the elapsed duration.
	Stop() time.Duration
}

// NoOpCollector discards all metrics. It backs the server when metrics are
// disabled in the config.
type NoOpCollector struct{}

// NewNoOpCollector creates a collector that discards everything.
func NewNoOpCollector() Collector {
	return &NoOpCollector{}
}

// IncrementCounter does nothing.
func (n *NoOpCollector) IncrementCounter(name string, labels ...string) {}

// RecordHistogram does nothing.
func (n *NoOpCollector) RecordHistogram(name string, value float64, labels ...string) {}

// RecordGauge does nothing.
func (n *NoOpCollector) RecordGauge(name string, value float64, labels ...string) {}

// StartTimer returns a timer that still measures elapsed time, so statement
// durations in execution records stay accurate with metrics off.
func (n *NoOpCollector) StartTimer(name string) Timer {
	return &noOpTimer{start: time.Now()}
}

type noOpTimer struct {
	start time.Time
}

func (t *noOpTimer) Stop() time.Duration {
	return time.Since(t.start)
}
