// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package metrics exposes the pool's operational counters/gauges/
// histograms through Prometheus, grounded on the teacher pack's
// mempool/metrics/prometheus.go shape (a Metrics struct holding typed
// collectors, constructed once and threaded through by reference).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the pool reports.
type Metrics struct {
	poolSize     prometheus.Gauge
	unsealedSize prometheus.Gauge
	sealedCount  prometheus.Gauge

	submitsTotal  *prometheus.CounterVec // label "status"
	sealedTotal   prometheus.Counter
	committedTotal prometheus.Counter

	precommitDuration prometheus.Histogram
	syncRequestsTotal *prometheus.CounterVec // label "kind"
	missedTxsTotal    prometheus.Counter
}

// New creates and registers a Metrics instance under namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_size",
			Help:      "Number of transactions currently resident in the pool.",
		}),
		unsealedSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unsealed_size",
			Help:      "Number of pooled transactions not currently included in an in-flight proposal.",
		}),
		sealedCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sealed_count",
			Help:      "Number of pooled transactions currently included in an in-flight proposal.",
		}),
		submitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submits_total",
			Help:      "Total submit outcomes, by status.",
		}, []string{"status"}),
		sealedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sealed_total",
			Help:      "Total transactions returned by seal_txs.",
		}),
		committedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "committed_total",
			Help:      "Total transactions removed by notify_block_result.",
		}),
		precommitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "precommit_duration_seconds",
			Help:      "Time to persist a transaction to the ledger after admission.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		syncRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_requests_total",
			Help:      "Total sync-protocol messages sent, by kind.",
		}, []string{"kind"}),
		missedTxsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missed_txs_total",
			Help:      "Total transaction hashes observed in request_missed_txs.",
		}),
	}
	prometheus.MustRegister(
		m.poolSize, m.unsealedSize, m.sealedCount,
		m.submitsTotal, m.sealedTotal, m.committedTotal,
		m.precommitDuration, m.syncRequestsTotal, m.missedTxsTotal,
	)
	return m
}

func (m *Metrics) SetPoolSize(size int)         { m.poolSize.Set(float64(size)) }
func (m *Metrics) SetUnsealedSize(size int)      { m.unsealedSize.Set(float64(size)) }
func (m *Metrics) SetSealedCount(count int)      { m.sealedCount.Set(float64(count)) }
func (m *Metrics) IncSubmit(status string)       { m.submitsTotal.WithLabelValues(status).Inc() }
func (m *Metrics) AddSealed(n int)               { m.sealedTotal.Add(float64(n)) }
func (m *Metrics) AddCommitted(n int)            { m.committedTotal.Add(float64(n)) }
func (m *Metrics) ObservePrecommit(d time.Duration) { m.precommitDuration.Observe(d.Seconds()) }
func (m *Metrics) IncSyncRequest(kind string)    { m.syncRequestsTotal.WithLabelValues(kind).Inc() }
func (m *Metrics) AddMissedTxs(n int)            { m.missedTxsTotal.Add(float64(n)) }

// Null is a no-op Metrics substitute for tests and embedders that don't
// want a Prometheus registration.
type Null struct{}

func (Null) SetPoolSize(int)                  {}
func (Null) SetUnsealedSize(int)              {}
func (Null) SetSealedCount(int)               {}
func (Null) IncSubmit(string)                 {}
func (Null) AddSealed(int)                    {}
func (Null) AddCommitted(int)                 {}
func (Null) ObservePrecommit(time.Duration)   {}
func (Null) IncSyncRequest(string)            {}
func (Null) AddMissedTxs(int)                 {}
