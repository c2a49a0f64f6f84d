// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/dimensiongate/internal/dimension"
)

// promMirror exports aggregator recordings as Prometheus counters. Actor
// identity is deliberately not a label; per-actor totals live only in the
// aggregator snapshot. A nil *promMirror is a no-op.
type promMirror struct {
	opens    *prometheus.CounterVec
	closes   *prometheus.CounterVec
	uptime   *prometheus.CounterVec
	attempts *prometheus.CounterVec
	denials  *prometheus.CounterVec
}

func newPromMirror(reg prometheus.Registerer) *promMirror {
	m := &promMirror{
		opens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dimensiongate_dimension_opens_total",
			Help: "Total number of dimension open transitions",
		}, []string{"dimension"}),
		closes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dimensiongate_dimension_closes_total",
			Help: "Total number of dimension close transitions",
		}, []string{"dimension"}),
		uptime: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dimensiongate_dimension_uptime_seconds_total",
			Help: "Cumulative open time accrued at close, in seconds",
		}, []string{"dimension"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dimensiongate_access_attempts_total",
			Help: "Total number of access attempts by destination dimension",
		}, []string{"dimension"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dimensiongate_access_denied_total",
			Help: "Total number of denied access attempts by destination dimension",
		}, []string{"dimension"}),
	}

	reg.MustRegister(m.opens, m.closes, m.uptime, m.attempts, m.denials)
	return m
}

func (m *promMirror) open(d dimension.Dimension) {
	if m != nil {
		m.opens.WithLabelValues(d.String()).Inc()
	}
}

func (m *promMirror) close(d dimension.Dimension) {
	if m != nil {
		m.closes.WithLabelValues(d.String()).Inc()
	}
}

func (m *promMirror) addUptime(d dimension.Dimension, elapsed time.Duration) {
	if m != nil {
		m.uptime.WithLabelValues(d.String()).Add(elapsed.Seconds())
	}
}

func (m *promMirror) attempt(d dimension.Dimension) {
	if m != nil {
		m.attempts.WithLabelValues(d.String()).Inc()
	}
}

func (m *promMirror) denied(d dimension.Dimension) {
	if m != nil {
		m.denials.WithLabelValues(d.String()).Inc()
	}
}
