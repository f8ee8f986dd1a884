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
	"github.com/arl/statsviz"

	"github.com/FerretDB/sqlasync/internal/util/must"
)

// plotter builds statsviz plots of sqlasync metrics.
type plotter struct {
	g *gatherer
}

// newPlotter returns a new plotter reading metrics from g.
func newPlotter(g *gatherer) *plotter {
	return &plotter{
		g: g,
	}
}

// series describes a single time series of a plot.
type series struct {
	name   string // series name
	metric string // metric family name
	label  string // optional label name
	value  string // label value
}

// plot describes a single plot.
type plot struct {
	name   string
	title  string
	info   string
	yAxis  string
	typ    statsviz.TimeSeriesType
	series []series
}

// plots returns all plots.
func (p *plotter) plots() []statsviz.TimeSeriesPlot {
	var ops []series
	for _, kind := range []string{"exec", "open", "close", "quit", "custom"} {
		ops = append(ops, series{kind, "sqlasync_conn_operations_total", "kind", kind})
	}

	plots := []plot{{
		name:   "sqlasync-operations",
		title:  "Operations",
		info:   "Total number of operations taken by connection workers, by kind.",
		yAxis:  "operations",
		typ:    statsviz.Scatter,
		series: ops,
	}, {
		name:  "sqlasync-transactions",
		title: "Transactions",
		info:  "Total number of commits, rollbacks, commit failures and busy retries.",
		yAxis: "transactions",
		typ:   statsviz.Scatter,
		series: []series{
			{name: "commits", metric: "sqlasync_conn_commits_total"},
			{name: "rollbacks", metric: "sqlasync_conn_rollbacks_total"},
			{name: "commit failures", metric: "sqlasync_conn_commit_failures_total"},
			{name: "busy retries", metric: "sqlasync_conn_busy_retries_total"},
		},
	}, {
		name:  "sqlasync-pending",
		title: "Pending",
		info:  "Operations not yet taken by workers, and results waiting for dispatch.",
		yAxis: "count",
		typ:   statsviz.Bar,
		series: []series{
			{name: "operations", metric: "sqlasync_conn_pending_operations"},
			{name: "open transactions", metric: "sqlasync_conn_transaction_open"},
			{name: "hub results", metric: "sqlasync_hub_results"},
			{name: "hub scheduled", metric: "sqlasync_hub_scheduled"},
		},
	}, {
		name:  "sqlasync-hub",
		title: "Wakeup hub",
		info:  "Total number of results pushed to the hub, wakeups, dispatches and dispatched results.",
		yAxis: "events",
		typ:   statsviz.Scatter,
		series: []series{
			{name: "pushed", metric: "sqlasync_hub_pushed_total"},
			{name: "wakeups", metric: "sqlasync_hub_wakeups_total"},
			{name: "dispatches", metric: "sqlasync_hub_dispatches_total"},
			{name: "dispatched", metric: "sqlasync_hub_dispatched_total"},
			{name: "discarded", metric: "sqlasync_hub_discarded_total"},
		},
	}}

	res := make([]statsviz.TimeSeriesPlot, len(plots))

	for i, pl := range plots {
		ts := make([]statsviz.TimeSeries, len(pl.series))

		for j, s := range pl.series {
			ts[j] = statsviz.TimeSeries{
				Name:    s.name,
				Unitfmt: "%{y:.4s}",
				GetValue: func() float64 {
					return p.g.sum(s.metric, s.label, s.value)
				},
			}
		}

		res[i] = must.NotFail(statsviz.TimeSeriesPlotConfig{
			Name:       pl.name,
			Title:      pl.title,
			Type:       pl.typ,
			InfoText:   pl.info,
			YAxisTitle: pl.yAxis,
			Series:     ts,
		}.Build())
	}

	return res
}
