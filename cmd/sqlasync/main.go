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

// Command sqlasync executes SQL statements through the sqlasync library.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FerretDB/sqlasync/internal/util/ctxutil"
	"github.com/FerretDB/sqlasync/internal/util/debug"
	"github.com/FerretDB/sqlasync/internal/util/debugbuild"
	"github.com/FerretDB/sqlasync/internal/util/lazyerrors"
	"github.com/FerretDB/sqlasync/internal/util/logging"
	"github.com/FerretDB/sqlasync/internal/util/observability"
	"github.com/FerretDB/sqlasync/sqlasync"
)

// The cli struct represents all command-line commands, fields and flags.
//
//nolint:lll // some tags are long
type cli struct {
	Engine             string        `default:"sqlite"   help:"${help_engine}"                                          enum:"${enum_engine}"`
	DB                 string        `default:":memory:" help:"Database file path or URI."                              name:"db"`
	OpenFlags          string        `default:"default"  help:"Open flags, such as 'readwrite|create' or 'readonly'."`
	TransactionTimeout time.Duration `default:"0s"       help:"Group statements into transactions committed after that timeout; 0 disables grouping."`
	Capacity           int           `default:"0"        help:"Result queue capacity; 0 means unbounded."`

	Log struct {
		Level  string `default:"${default_log_level}" help:"${help_log_level}"`
		Format string `default:"console"              help:"${help_log_format}" enum:"${enum_log_format}"`
	} `embed:"" prefix:"log-"`

	DebugAddr    string `default:"-"     help:"Listen address for HTTP handlers for metrics, pprof, etc."`
	DumpMetrics  bool   `default:"false" help:"Dump all metrics to stderr before exiting."`
	OtelEndpoint string `default:""      help:"OTLP HTTP endpoint (host:port) for exporting traces; empty disables tracing."`
	EnvFile      string `default:""      help:"Load environment variables from that file before parsing flags." env:"-"`

	Exec    execCmd    `cmd:"" help:"Execute SQL statements."`
	Script  scriptCmd  `cmd:"" help:"Execute a YAML script of statements and chains."`
	Bench   benchCmd   `cmd:"" help:"Insert rows concurrently and report throughput."`
	Version versionCmd `cmd:"" help:"Print version and build information."`
}

// env represents the environment of a command.
type env struct {
	ctx    context.Context
	cli    *cli
	stdout io.Writer
	stderr io.Writer
	l      *zap.Logger
	reg    *prometheus.Registry
}

// Additional variables for the kong parsers.
var logLevels = []string{
	zap.DebugLevel.String(),
	zap.InfoLevel.String(),
	zap.WarnLevel.String(),
	zap.ErrorLevel.String(),
}

// kongOptions returns kong options shared by main and tests.
func kongOptions() []kong.Option {
	engines := sqlasync.Engines()
	formats := logging.Formats()

	return []kong.Option{
		kong.Name("sqlasync"),
		kong.Description("Asynchronous access to embedded SQL databases."),
		kong.Vars{
			"default_log_level": defaultLogLevel().String(),

			"enum_engine":     strings.Join(engines, ","),
			"enum_log_format": strings.Join(formats, ","),

			"help_engine":     fmt.Sprintf("Database engine: '%s'.", strings.Join(engines, "', '")),
			"help_log_format": fmt.Sprintf("Log format: '%s'.", strings.Join(formats, "', '")),
			"help_log_level":  fmt.Sprintf("Log level: '%s'.", strings.Join(logLevels, "', '")),
		},
		kong.DefaultEnvars("SQLASYNC"),
	}
}

// defaultLogLevel returns the default log level.
func defaultLogLevel() zapcore.Level {
	if debugbuild.Enabled {
		return zap.DebugLevel
	}

	return zap.WarnLevel
}

// envFile returns the value of --env-file flag, if any.
//
// It is extracted before kong parses flags, so that loaded variables could provide flag defaults.
func envFile(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}

		if v, ok := strings.CutPrefix(arg, "--env-file="); ok {
			return v
		}

		if arg == "--env-file" && i+1 < len(args) {
			return args[i+1]
		}
	}

	return ""
}

// dumpMetrics dumps all metrics of g to w.
func dumpMetrics(g prometheus.Gatherer, w io.Writer) error {
	mfs, err := g.Gather()
	if err != nil {
		return lazyerrors.Error(err)
	}

	for _, mf := range mfs {
		if _, err = expfmt.MetricFamilyToText(w, mf); err != nil {
			return lazyerrors.Error(err)
		}
	}

	return nil
}

// run parses args and runs the selected command.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, exit func(int)) error {
	// to increase a chance of resource finalizers to spot problems
	if debugbuild.Enabled {
		defer func() {
			runtime.GC()
			runtime.GC()
		}()
	}

	if f := envFile(args); f != "" {
		if err := godotenv.Load(f); err != nil {
			return lazyerrors.Error(err)
		}
	}

	var c cli

	parser, err := kong.New(&c, append(kongOptions(), kong.Writers(stdout, stderr), kong.Exit(exit))...)
	if err != nil {
		return lazyerrors.Error(err)
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return lazyerrors.Error(err)
	}

	l, err := logging.New(level, c.Log.Format, zapcore.Lock(zapcore.AddSync(stderr)))
	if err != nil {
		return lazyerrors.Error(err)
	}

	defer l.Sync() //nolint:errcheck // stderr could be a terminal

	if _, err = maxprocs.Set(maxprocs.Logger(l.Sugar().Debugf)); err != nil {
		l.Sugar().Warnf("Failed to set GOMAXPROCS: %s.", err)
	}

	shutdownOtel, err := observability.SetupOtel("sqlasync", c.OtelEndpoint)
	if err != nil {
		return lazyerrors.Error(err)
	}

	if shutdownOtel != nil {
		defer func() {
			sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer scancel()

			if serr := shutdownOtel(sctx); serr != nil {
				l.Warn("Failed to shut down tracing.", zap.Error(serr))
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup

	// https://github.com/alecthomas/kong/issues/389
	if c.DebugAddr != "" && c.DebugAddr != "-" {
		ready := make(chan net.Addr, 1)

		wg.Add(1)

		go func() {
			defer wg.Done()

			err := debug.RunHandler(ctx, &debug.RunHandlerOpts{
				Addr:  c.DebugAddr,
				R:     reg,
				G:     reg,
				L:     l.Named("debug"),
				Ready: ready,
			})
			if err != nil {
				l.Error("Debug handler failed.", zap.Error(err))
				close(ready)
			}
		}()

		<-ready
	}

	err = kctx.Run(&env{
		ctx:    ctx,
		cli:    &c,
		stdout: stdout,
		stderr: stderr,
		l:      l,
		reg:    reg,
	})

	cancel()
	wg.Wait()

	if c.DumpMetrics {
		if derr := dumpMetrics(reg, stderr); derr != nil && err == nil {
			err = derr
		}
	}

	return err
}

func main() {
	// for code running before flags are parsed and for packages using global loggers
	logging.Setup(zap.WarnLevel, "console")

	ctx, stop := ctxutil.SigTerm(context.Background())

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Exit)

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
