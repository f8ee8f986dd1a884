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

// Package logging provides logging helpers.
package logging

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FerretDB/sqlasync/internal/util/debugbuild"
	"github.com/FerretDB/sqlasync/internal/util/lazyerrors"
)

// Formats returns supported log formats.
func Formats() []string {
	return []string{"console", "json"}
}

// encoderConfig returns the encoder configuration shared by all formats.
func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		CallerKey:      "C",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// New returns a new logger with a given level and format writing to w.
func New(level zapcore.Level, format string, w zapcore.WriteSyncer) (*zap.Logger, error) {
	var enc zapcore.Encoder

	switch format {
	case "", "console":
		enc = zapcore.NewConsoleEncoder(encoderConfig())
	case "json":
		enc = zapcore.NewJSONEncoder(encoderConfig())
	default:
		return nil, lazyerrors.Errorf("unknown log format %q", format)
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)}
	if debugbuild.Enabled {
		opts = append(opts, zap.Development())
	}

	return zap.New(zapcore.NewCore(enc, w, zap.NewAtomicLevelAt(level)), opts...), nil
}

// Setup initializes global logging with a given level and format, writing to stderr.
func Setup(level zapcore.Level, format string) {
	logger, err := New(level, format, zapcore.Lock(zapcore.AddSync(os.Stderr)))
	if err != nil {
		log.Fatal(err)
	}

	setupWithLogger(logger)
}

// setupWithLogger initializes logging with a given logger and its level.
func setupWithLogger(logger *zap.Logger) {
	zap.ReplaceGlobals(logger)

	if _, err := zap.RedirectStdLogAt(logger, zap.InfoLevel); err != nil {
		log.Fatal(err)
	}
}
