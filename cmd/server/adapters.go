package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/querypilot/querypilot/pkg/infrastructure/metrics"
	"github.com/querypilot/querypilot/pkg/services"
)

// serviceLoggerAdapter adapts zerolog to the services.Logger interface.
type serviceLoggerAdapter struct {
	logger zerolog.Logger
}

func (l *serviceLoggerAdapter) Debug(msg string, keysAndValues ...interface{}) {
	logEvent(l.logger.Debug(), msg, keysAndValues)
}

func (l *serviceLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	logEvent(l.logger.Info(), msg, keysAndValues)
}

func (l *serviceLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	logEvent(l.logger.Warn(), msg, keysAndValues)
}

func (l *serviceLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	logEvent(l.logger.Error(), msg, keysAndValues)
}

func logEvent(event *zerolog.Event, msg string, keysAndValues []interface{}) {
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			key := fmt.Sprintf("%v", keysAndValues[i])
			event = event.Interface(key, keysAndValues[i+1])
		}
	}
	event.Msg(msg)
}

// serviceMetricsAdapter adapts the metrics collector to services.MetricsCollector.
type serviceMetricsAdapter struct {
	collector metrics.Collector
}

func (m *serviceMetricsAdapter) IncrementCounter(name string, labels ...string) {
	m.collector.IncrementCounter(name, labels...)
}

func (m *serviceMetricsAdapter) RecordHistogram(name string, value float64, labels ...string) {
	m.collector.RecordHistogram(name, value, labels...)
}

func (m *serviceMetricsAdapter) RecordGauge(name string, value float64, labels ...string) {
	m.collector.RecordGauge(name, value, labels...)
}

func (m *serviceMetricsAdapter) StartTimer(name string) services.Timer {
	return m.collector.StartTimer(name)
}
