// Copyright (c) LocalNS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package metrics exposes Prometheus counters and gauges for the store,
// supervisor, and DNS responder (spec §6.5, ambient observability not
// gated by any Non-goal).
package metrics

import (
	"github.com/Mossop/localns/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every counter/gauge LocalNS exposes. Every Record* method
// is safe to call on a nil *Metrics and then records nothing, so callers
// that don't want metrics may pass nil.
type Metrics struct {
	SnapshotsAccepted *prometheus.CounterVec
	SnapshotsRejected *prometheus.CounterVec
	DriverRestarts    *prometheus.CounterVec
	QueriesLocal      prometheus.Counter
	QueriesForwarded  prometheus.Counter
	QueriesNXDomain   prometheus.Counter
	QueriesServFail   prometheus.Counter
}

// New registers and returns a Metrics bound to reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SnapshotsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "localns",
			Name:      "snapshots_accepted_total",
			Help:      "Snapshots accepted into the record store, by source kind and name.",
		}, []string{"kind", "name"}),
		SnapshotsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "localns",
			Name:      "snapshots_rejected_total",
			Help:      "Snapshots rejected by the record store, by source kind and name.",
		}, []string{"kind", "name"}),
		DriverRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "localns",
			Name:      "driver_restarts_total",
			Help:      "Driver restarts following a connection error, by source kind and name.",
		}, []string{"kind", "name"}),
		QueriesLocal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "localns",
			Name:      "queries_local_total",
			Help:      "Queries answered from the local record store.",
		}),
		QueriesForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "localns",
			Name:      "queries_forwarded_total",
			Help:      "Queries forwarded to an upstream resolver.",
		}),
		QueriesNXDomain: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "localns",
			Name:      "queries_nxdomain_total",
			Help:      "Queries answered NXDOMAIN by an authoritative zone.",
		}),
		QueriesServFail: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "localns",
			Name:      "queries_servfail_total",
			Help:      "Queries answered SERVFAIL (non-authoritative zone, no upstream, or upstream failure).",
		}),
	}
	reg.MustRegister(
		m.SnapshotsAccepted, m.SnapshotsRejected, m.DriverRestarts,
		m.QueriesLocal, m.QueriesForwarded, m.QueriesNXDomain, m.QueriesServFail,
	)
	return m
}

// RecordSnapshot increments the accepted or rejected counter for id.
func (m *Metrics) RecordSnapshot(id store.SourceId, accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.SnapshotsAccepted.WithLabelValues(string(id.Kind), id.Name).Inc()
	} else {
		m.SnapshotsRejected.WithLabelValues(string(id.Kind), id.Name).Inc()
	}
}

// RecordDriverRestart increments the restart counter for id.
func (m *Metrics) RecordDriverRestart(id store.SourceId) {
	if m == nil {
		return
	}
	m.DriverRestarts.WithLabelValues(string(id.Kind), id.Name).Inc()
}

// RecordLocal increments the locally-answered query counter.
func (m *Metrics) RecordLocal() {
	if m == nil {
		return
	}
	m.QueriesLocal.Inc()
}

// RecordForwarded increments the forwarded query counter.
func (m *Metrics) RecordForwarded() {
	if m == nil {
		return
	}
	m.QueriesForwarded.Inc()
}

// RecordNXDomain increments the NXDOMAIN query counter.
func (m *Metrics) RecordNXDomain() {
	if m == nil {
		return
	}
	m.QueriesNXDomain.Inc()
}

// RecordServFail increments the SERVFAIL query counter.
func (m *Metrics) RecordServFail() {
	if m == nil {
		return
	}
	m.QueriesServFail.Inc()
}
