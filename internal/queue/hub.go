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

package queue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/FerretDB/sqlasync/internal/util/fifo"
	"github.com/FerretDB/sqlasync/internal/util/resource"
)

// Parts of Prometheus metric names.
const (
	namespace = "sqlasync"
	subsystem = "hub"
)

// HubFunc is a Hub callback.
type HubFunc func(h *Hub)

// Hub coalesces result notifications of async queues for a host event loop.
//
// Wakeup is invoked (from any goroutine) at most once until the next Dispatch:
// when the Hub gets results to dispatch, or when its last scheduled operation completes.
// The host should then call Dispatch on its own goroutine.
// Schedule, if set, is invoked when the Hub gets scheduled operations after having none,
// and at the end of Dispatch while operations are still scheduled.
//
//nolint:vet // for readability
type Hub struct {
	wakeup   HubFunc
	schedule HubFunc

	mu          sync.Mutex
	results     fifo.List[*Result]
	scheduled   int
	woken       bool
	dispatching bool

	pushed     *xsync.Counter
	wakeups    *xsync.Counter
	dispatches *xsync.Counter
	dispatched *xsync.Counter
	discarded  *xsync.Counter

	token *resource.Token
}

// NewHub creates a new Hub.
//
// Wakeup must not be nil; schedule may be nil.
func NewHub(wakeup, schedule HubFunc) *Hub {
	if wakeup == nil {
		panic("queue.NewHub: nil wakeup callback")
	}

	h := &Hub{
		wakeup:     wakeup,
		schedule:   schedule,
		pushed:     xsync.NewCounter(),
		wakeups:    xsync.NewCounter(),
		dispatches: xsync.NewCounter(),
		dispatched: xsync.NewCounter(),
		discarded:  xsync.NewCounter(),
		token:      resource.NewToken(),
	}

	resource.Track(h, h.token)

	return h
}

// wake invokes the wakeup callback. Caller must not hold the lock.
func (h *Hub) wake() {
	h.wakeups.Inc()
	h.wakeup(h)
}

// Dispatch delivers all results inside the Hub, in arrival order,
// by invoking the callback of each result's queue.
//
// Results of destroyed queues are discarded.
// Callbacks may call any function except Hub.Destroy and Dispatch itself.
// A callback must consume at least one result per invocation: it is invoked again
// while the front result belongs to its queue, and not consuming one is a protocol error.
func (h *Hub) Dispatch() {
	h.mu.Lock()

	if h.dispatching {
		h.mu.Unlock()
		panic("queue.Hub.Dispatch: called recursively")
	}

	h.dispatching = true
	h.dispatches.Inc()

	var free []*Queue

	for {
		r, ok := h.results.Peek()
		if !ok {
			break
		}

		q := r.queue

		if q.destroyed {
			h.results.Pop()
			h.discarded.Inc()

			q.outstanding--

			if r.Last {
				q.scheduled--
				h.scheduled--
			}

			r.Release()

			if q.freeable() {
				free = append(free, q)
			}

			continue
		}

		h.mu.Unlock()
		q.cb(q)
		h.mu.Lock()

		if head, ok := h.results.Peek(); ok && head == r && !q.destroyed {
			h.dispatching = false
			h.mu.Unlock()

			panic("queue.Hub.Dispatch: callback did not consume a result")
		}

		h.dispatched.Inc()
	}

	h.woken = false
	h.dispatching = false
	schedule := h.scheduled > 0

	h.mu.Unlock()

	for _, q := range free {
		q.free()
	}

	if schedule && h.schedule != nil {
		h.schedule(h)
	}
}

// Pending returns the numbers of results inside the Hub and scheduled operations of its queues.
func (h *Hub) Pending() (results, scheduled int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.results.Len(), h.scheduled
}

// Destroy frees the Hub.
//
// Destroying a Hub with scheduled operations is a protocol error.
func (h *Hub) Destroy() {
	h.mu.Lock()
	scheduled := h.scheduled
	h.mu.Unlock()

	if scheduled != 0 {
		panic("queue.Hub.Destroy: operations are still scheduled")
	}

	resource.Untrack(h, h.token)
}

// Describe implements prometheus.Collector.
func (h *Hub) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(h, ch)
}

// Collect implements prometheus.Collector.
func (h *Hub) Collect(ch chan<- prometheus.Metric) {
	results, scheduled := h.Pending()

	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "results"),
			"The current number of results waiting for dispatch.",
			nil, nil,
		),
		prometheus.GaugeValue,
		float64(results),
	)

	ch <- prometheus.MustNewConstMetric(
		prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "scheduled"),
			"The current number of scheduled operations.",
			nil, nil,
		),
		prometheus.GaugeValue,
		float64(scheduled),
	)

	for name, c := range map[string]*xsync.Counter{
		"pushed":     h.pushed,
		"wakeups":    h.wakeups,
		"dispatches": h.dispatches,
		"dispatched": h.dispatched,
		"discarded":  h.discarded,
	} {
		ch <- prometheus.MustNewConstMetric(
			prometheus.NewDesc(
				prometheus.BuildFQName(namespace, subsystem, name+"_total"),
				"The total number of "+name+" events.",
				nil, nil,
			),
			prometheus.CounterValue,
			float64(c.Value()),
		)
	}
}

// check interfaces
var (
	_ prometheus.Collector = (*Hub)(nil)
)
