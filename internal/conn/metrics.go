// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conn

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
)

// Parts of Prometheus metric names.
const (
	namespace = "sqlasync"
	subsystem = "conn"
)

// Metrics represents connection metrics.
//
// One instance may be shared by many connections.
type Metrics struct {
	ops            [opKindCount]*xsync.Counter
	commits        *xsync.Counter
	rollbacks      *xsync.Counter
	commitFailures *xsync.Counter
	busyRetries    *xsync.Counter

	conns *xsync.MapOf[string, *Conn]
}

// NewMetrics creates a new Metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		commits:        xsync.NewCounter(),
		rollbacks:      xsync.NewCounter(),
		commitFailures: xsync.NewCounter(),
		busyRetries:    xsync.NewCounter(),
		conns:          xsync.NewMapOf[string, *Conn](),
	}

	for i := range m.ops {
		m.ops[i] = xsync.NewCounter()
	}

	return m
}

// add registers a running connection.
func (m *Metrics) add(c *Conn) {
	m.conns.Store(c.id, c)
}

// remove unregisters a stopped connection.
func (m *Metrics) remove(c *Conn) {
	m.conns.Delete(c.id)
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(m, ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	opsDesc := prometheus.NewDesc(
		prometheus.BuildFQName(namespace, subsystem, "operations_total"),
		"The total number of operations taken by workers.",
		[]string{"kind"}, nil,
	)

	for kind := opExec; kind < opKindCount; kind++ {
		ch <- prometheus.MustNewConstMetric(opsDesc, prometheus.CounterValue, float64(m.ops[kind].Value()), kind.String())
	}

	for name, c := range map[string]struct {
		help string
		c    *xsync.Counter
	}{
		"commits_total":         {"The total number of committed transactions.", m.commits},
		"rollbacks_total":       {"The total number of rolled back transactions.", m.rollbacks},
		"commit_failures_total": {"The total number of failed commits.", m.commitFailures},
		"busy_retries_total":    {"The total number of statement retries due to busy database.", m.busyRetries},
	} {
		ch <- prometheus.MustNewConstMetric(
			prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), c.help, nil, nil),
			prometheus.CounterValue,
			float64(c.c.Value()),
		)
	}

	pendingDesc := prometheus.NewDesc(
		prometheus.BuildFQName(namespace, subsystem, "pending_operations"),
		"The current number of submitted operations not yet taken by the worker.",
		[]string{"conn"}, nil,
	)

	txDesc := prometheus.NewDesc(
		prometheus.BuildFQName(namespace, subsystem, "transaction_open"),
		"Whether the connection's worker has an open transaction.",
		[]string{"conn"}, nil,
	)

	m.conns.Range(func(id string, c *Conn) bool {
		ch <- prometheus.MustNewConstMetric(pendingDesc, prometheus.GaugeValue, float64(c.Pending()), id)

		var open float64
		if txState(c.txState.Load()) == txOpen {
			open = 1
		}

		ch <- prometheus.MustNewConstMetric(txDesc, prometheus.GaugeValue, open, id)

		return true
	})
}

// check interfaces
var (
	_ prometheus.Collector = (*Metrics)(nil)
)
