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

package engine

import "strings"

// OpenFlags are passed to Opener.Open. Values match SQLite's SQLITE_OPEN_* flags.
type OpenFlags int

// Open flags.
const (
	OpenReadOnly     OpenFlags = 0x00000001
	OpenReadWrite    OpenFlags = 0x00000002
	OpenCreate       OpenFlags = 0x00000004
	OpenURI          OpenFlags = 0x00000040
	OpenMemory       OpenFlags = 0x00000080
	OpenNoMutex      OpenFlags = 0x00008000
	OpenFullMutex    OpenFlags = 0x00010000
	OpenSharedCache  OpenFlags = 0x00020000
	OpenPrivateCache OpenFlags = 0x00040000
)

var flagNames = []struct {
	f    OpenFlags
	name string
}{
	{OpenReadOnly, "readonly"},
	{OpenReadWrite, "readwrite"},
	{OpenCreate, "create"},
	{OpenURI, "uri"},
	{OpenMemory, "memory"},
	{OpenNoMutex, "nomutex"},
	{OpenFullMutex, "fullmutex"},
	{OpenSharedCache, "sharedcache"},
	{OpenPrivateCache, "privatecache"},
}

// Mode returns the URI "mode" parameter matching flags, or an empty string for the default.
func (f OpenFlags) Mode() string {
	switch {
	case f&OpenMemory != 0:
		return "memory"
	case f&OpenReadOnly != 0:
		return "ro"
	case f&OpenReadWrite != 0 && f&OpenCreate != 0:
		return "rwc"
	case f&OpenReadWrite != 0:
		return "rw"
	default:
		return ""
	}
}

// Cache returns the URI "cache" parameter matching flags, or an empty string for the default.
func (f OpenFlags) Cache() string {
	switch {
	case f&OpenSharedCache != 0:
		return "shared"
	case f&OpenPrivateCache != 0:
		return "private"
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (f OpenFlags) String() string {
	if f == 0 {
		return "default"
	}

	var names []string

	for _, n := range flagNames {
		if f&n.f != 0 {
			names = append(names, n.name)
		}
	}

	return strings.Join(names, "|")
}

// ParseOpenFlags parses a "|"-separated list of flag names as returned by OpenFlags.String.
func ParseOpenFlags(s string) (OpenFlags, bool) {
	var res OpenFlags

	if s == "" || s == "default" {
		return 0, true
	}

	for _, part := range strings.Split(s, "|") {
		var found bool

		for _, n := range flagNames {
			if strings.TrimSpace(part) == n.name {
				res |= n.f
				found = true

				break
			}
		}

		if !found {
			return 0, false
		}
	}

	return res, true
}
