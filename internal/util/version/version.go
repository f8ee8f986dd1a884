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

// Package version provides information about the build.
package version

import (
	"runtime/debug"
	"strconv"

	"github.com/FerretDB/sqlasync/internal/util/debugbuild"
)

// unknown is used for values that are not available.
const unknown = "unknown"

// Info provides details about the current build.
type Info struct {
	Version          string
	Commit           string
	Dirty            bool
	DebugBuild       bool
	GoVersion        string
	BuildEnvironment map[string]string
}

// info is computed once from the embedded build information.
var info *Info

// Get returns current build's info.
func Get() *Info {
	return info
}

func init() {
	info = newInfo(debug.ReadBuildInfo())
}

// newInfo returns Info for the given build information.
func newInfo(buildInfo *debug.BuildInfo, ok bool) *Info {
	res := &Info{
		Version:          unknown,
		Commit:           unknown,
		DebugBuild:       debugbuild.Enabled,
		GoVersion:        unknown,
		BuildEnvironment: map[string]string{},
	}

	if !ok {
		return res
	}

	res.GoVersion = buildInfo.GoVersion

	if v := buildInfo.Main.Version; v != "" && v != "(devel)" {
		res.Version = v
	}

	for _, s := range buildInfo.Settings {
		res.BuildEnvironment[s.Key] = s.Value

		switch s.Key {
		case "vcs.revision":
			res.Commit = s.Value
		case "vcs.modified":
			res.Dirty, _ = strconv.ParseBool(s.Value)
		case "-race":
			if race, _ := strconv.ParseBool(s.Value); race {
				res.DebugBuild = true
			}
		}
	}

	return res
}
