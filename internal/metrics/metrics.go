// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package metrics collects counters about dispatched events and applied
// convergence actions.
package metrics

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "appstream_agent"

// Collector is a prometheus.Collector that collects metrics about
// event dispatch and convergence.
type Collector struct {
	events   *prometheus.CounterVec
	actions  *prometheus.CounterVec
	deferred prometheus.Gauge
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_total",
				Help:      "The number of dispatched events by outcome.",
			}, []string{"event", "outcome"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "actions_total",
				Help:      "The number of applied convergence actions.",
			}, []string{"action"},
		),
		deferred: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "deferred_events",
				Help:      "The number of events waiting to be re-delivered.",
			},
		),
	}
}

// EventDispatched records the outcome of a dispatched event. It is safe to
// call on a nil Collector.
func (c *Collector) EventDispatched(event, outcome string) {
	if c == nil {
		return
	}
	c.events.WithLabelValues(event, outcome).Inc()
}

// ActionApplied records a successfully applied action.
func (c *Collector) ActionApplied(action string) {
	if c == nil {
		return
	}
	c.actions.WithLabelValues(action).Inc()
}

// SetDeferred records the length of the deferred event queue.
func (c *Collector) SetDeferred(n int) {
	if c == nil {
		return
	}
	c.deferred.Set(float64(n))
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.events.Describe(ch)
	c.actions.Describe(ch)
	c.deferred.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.events.Collect(ch)
	c.actions.Collect(ch)
	c.deferred.Collect(ch)
}

// WriteTextfile writes the collected metrics to path in the text
// exposition format read by the node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	registry := prometheus.NewPedanticRegistry()
	if err := registry.Register(c); err != nil {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(prometheus.WriteToTextfile(path, registry), "writing metrics %q", path)
}
