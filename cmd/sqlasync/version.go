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

package main

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/FerretDB/sqlasync/internal/util/version"
)

// versionCmd represents the version command.
type versionCmd struct {
	Verbose bool `help:"Also print the build environment." short:"v"`
}

// Run prints version information to stdout.
func (cmd *versionCmd) Run(e *env) error {
	info := version.Get()

	fmt.Fprintf(e.stdout, "version: %s\n", info.Version)
	fmt.Fprintf(e.stdout, "commit: %s\n", info.Commit)
	fmt.Fprintf(e.stdout, "dirty: %t\n", info.Dirty)
	fmt.Fprintf(e.stdout, "debug build: %t\n", info.DebugBuild)
	fmt.Fprintf(e.stdout, "go: %s\n", info.GoVersion)

	if !cmd.Verbose {
		return nil
	}

	keys := maps.Keys(info.BuildEnvironment)
	slices.Sort(keys)

	for _, k := range keys {
		fmt.Fprintf(e.stdout, "  %s: %s\n", k, info.BuildEnvironment[k])
	}

	return nil
}
