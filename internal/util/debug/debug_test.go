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

package debug

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FerretDB/sqlasync/internal/util/testutil"
)

// testCollector is a collector with two series of a counter and a gauge.
type testCollector struct{}

func (c testCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c testCollector) Collect(ch chan<- prometheus.Metric) {
	ops := prometheus.NewDesc("sqlasync_conn_operations_total", "Operations.", []string{"kind"}, nil)
	ch <- prometheus.MustNewConstMetric(ops, prometheus.CounterValue, 3, "exec")
	ch <- prometheus.MustNewConstMetric(ops, prometheus.CounterValue, 1, "open")

	hub := prometheus.NewDesc("sqlasync_hub_results", "Results.", nil, nil)
	ch <- prometheus.MustNewConstMetric(hub, prometheus.GaugeValue, 2)
}

func TestGatherer(t *testing.T) {
	t.Parallel()

	r := prometheus.NewRegistry()
	require.NoError(t, r.Register(testCollector{}))

	g := newGatherer(r, testutil.Logger(t))

	assert.Equal(t, float64(4), g.sum("sqlasync_conn_operations_total", "", ""))
	assert.Equal(t, float64(3), g.sum("sqlasync_conn_operations_total", "kind", "exec"))
	assert.Equal(t, float64(0), g.sum("sqlasync_conn_operations_total", "kind", "custom"))
	assert.Equal(t, float64(2), g.sum("sqlasync_hub_results", "", ""))
	assert.Equal(t, float64(0), g.sum("no_such_metric", "", ""))

	assert.Len(t, newPlotter(g).plots(), 4)
}

func TestRunHandler(t *testing.T) {
	t.Parallel()

	r := prometheus.NewRegistry()
	require.NoError(t, r.Register(testCollector{}))

	ctx, cancel := context.WithCancel(testutil.Ctx(t))
	ready := make(chan net.Addr, 1)
	done := make(chan error, 1)

	go func() {
		done <- RunHandler(ctx, &RunHandlerOpts{
			Addr:  "127.0.0.1:0",
			R:     r,
			G:     r,
			L:     testutil.Logger(t),
			Ready: ready,
		})
	}()

	addr := <-ready

	for path, contains := range map[string]string{
		"/debug/metrics": `sqlasync_conn_operations_total{kind="exec"} 3`,
		"/debug":         "/debug/graphs",
	} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr.String()+path, nil)
		require.NoError(t, err)

		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)

		b, err := io.ReadAll(res.Body)
		require.NoError(t, res.Body.Close())
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, res.StatusCode, path)
		assert.Contains(t, string(b), contains, path)
	}

	cancel()
	require.NoError(t, <-done)
}
