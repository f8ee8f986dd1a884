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

// Package registry provides a registry of engine backends.
package registry

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/FerretDB/sqlasync/internal/engine"
)

// DefaultEngine is the name of the backend that is always available.
const DefaultEngine = "sqlite"

// newOpenerFunc represents a function that constructs a new opener.
type newOpenerFunc func(opts *NewOpenerOpts) (engine.Opener, error)

// NewOpenerOpts represents configuration for constructing openers.
type NewOpenerOpts struct {
	Logger *zap.Logger
}

// registry maps engine names to constructors.
//
// The values for `registry` must be set through the `init()` functions of the corresponding backends
// so that we can control which backends will be included in the build with build tags.
var registry = map[string]newOpenerFunc{}

// NewOpener constructs a new opener for the given engine name.
func NewOpener(name string, opts *NewOpenerOpts) (engine.Opener, error) {
	if opts == nil {
		opts = new(NewOpenerOpts)
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	newOpener := registry[name]
	if newOpener == nil {
		return nil, fmt.Errorf("unknown engine %q", name)
	}

	return newOpener(opts)
}

// Engines return a list of all available engine names.
func Engines() []string {
	res := maps.Keys(registry)
	slices.Sort(res)

	return res
}
