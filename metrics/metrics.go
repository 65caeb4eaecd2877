// Package metrics wraps github.com/rcrowley/go-metrics the way the
// teacher repo's node/sc package does (metrics.NewRegisteredCounter),
// giving every component a cheap, dependency-light counter/gauge
// registry without pulling in a full exporter stack.
package metrics

import (
	gometrics "github.com/rcrowley/go-metrics"
)

// DefaultRegistry is the process-wide registry every component registers
// into, mirroring go-metrics' own convention.
var DefaultRegistry = gometrics.DefaultRegistry

// NewRegisteredCounter creates and registers a new Counter under the
// given name, or returns the already-registered one.
func NewRegisteredCounter(name string, r gometrics.Registry) gometrics.Counter {
	if r == nil {
		r = DefaultRegistry
	}
	return gometrics.GetOrRegisterCounter(name, r)
}

// NewRegisteredGauge creates and registers a new Gauge under the given
// name, or returns the already-registered one.
func NewRegisteredGauge(name string, r gometrics.Registry) gometrics.Gauge {
	if r == nil {
		r = DefaultRegistry
	}
	return gometrics.GetOrRegisterGauge(name, r)
}
