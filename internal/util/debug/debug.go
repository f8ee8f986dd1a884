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

// Package debug provides debug facilities.
package debug

import (
	"bytes"
	"context"
	_ "expvar" // for metrics
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" // for profiling
	"slices"
	"text/template"
	"time"

	"github.com/arl/statsviz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/FerretDB/sqlasync/internal/util/lazyerrors"
	"github.com/FerretDB/sqlasync/internal/util/must"
)

// RunHandlerOpts represents debug handler configuration.
type RunHandlerOpts struct {
	Addr string
	R    prometheus.Registerer
	G    prometheus.Gatherer
	L    *zap.Logger

	// Ready, if not nil, receives the listening address.
	Ready chan<- net.Addr
}

// RunHandler runs debug handler until ctx is done.
func RunHandler(ctx context.Context, opts *RunHandlerOpts) error {
	l := opts.L
	stdL := must.NotFail(zap.NewStdLogAt(l, zap.WarnLevel))

	g := newGatherer(opts.G, l)

	mux := http.NewServeMux()

	mux.Handle("/debug/metrics", promhttp.InstrumentMetricHandler(
		opts.R, promhttp.HandlerFor(g, promhttp.HandlerOpts{
			ErrorLog:          stdL,
			ErrorHandling:     promhttp.ContinueOnError,
			Registry:          opts.R,
			EnableOpenMetrics: true,
		}),
	))

	vizOpts := []statsviz.Option{statsviz.Root("/debug/graphs")}
	for _, p := range newPlotter(g).plots() {
		vizOpts = append(vizOpts, statsviz.TimeseriesPlot(p))
	}

	if err := statsviz.Register(mux, vizOpts...); err != nil {
		return lazyerrors.Error(err)
	}

	// stdlib handlers registered by imports
	mux.Handle("/debug/vars", http.DefaultServeMux)
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	handlers := map[string]string{
		"/debug/graphs":  "Visualize metrics",
		"/debug/metrics": "Metrics in Prometheus format",
		"/debug/vars":    "Expvar package metrics",
		"/debug/pprof/":  "Runtime profiling data for pprof",
	}

	var page bytes.Buffer
	must.NoError(template.Must(template.New("debug").Parse(`
	<html>
	<body>
	<ul>
	{{range $path, $desc := .}}
		<li><a href="{{$path}}">{{$path}}</a>: {{$desc}}</li>
	{{end}}
	</ul>
	</body>
	</html>
	`)).Execute(&page, handlers))

	mux.HandleFunc("/debug", func(rw http.ResponseWriter, _ *http.Request) {
		_, _ = rw.Write(page.Bytes())
	})

	mux.HandleFunc("/", func(rw http.ResponseWriter, req *http.Request) {
		http.Redirect(rw, req, "/debug", http.StatusSeeOther)
	})

	lis, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return lazyerrors.Error(err)
	}

	s := http.Server{
		Handler:  mux,
		ErrorLog: stdL,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	root := fmt.Sprintf("http://%s", lis.Addr())

	l.Sugar().Infof("Starting debug server on %s ...", root)

	paths := maps.Keys(handlers)
	slices.Sort(paths)

	for _, path := range paths {
		l.Sugar().Infof("%s%s - %s", root, path, handlers[path])
	}

	if opts.Ready != nil {
		opts.Ready <- lis.Addr()
	}

	done := make(chan error, 1)

	go func() {
		done <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
	case err = <-done:
		return lazyerrors.Error(err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()

	_ = s.Shutdown(stopCtx) //nolint:contextcheck // use new context for cancellation

	<-done

	l.Sugar().Info("Debug server stopped.")

	return nil
}
