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

package conn

import (
	"strings"

	"github.com/FerretDB/sqlasync/internal/types"
)

// Flags are Exec flags: ownership of the SQL text combined with a chain mode.
type Flags int

// Ownership of the SQL text.
const (
	Copy     Flags = Flags(types.Copy)     // the text is copied on submission
	Transfer Flags = Flags(types.Transfer) // the connection takes the text
	Static   Flags = Flags(types.Static)   // the text is never released

	ownershipMask Flags = 3
)

// Chain modes.
const (
	// Next chains the statement with the following one: both run in one transaction,
	// and a failure of any member aborts the rest of the chain.
	// It may be used only with ExecUnlocked inside Lock/Unlock.
	Next Flags = 1 << 2

	// Last commits the current transaction after the statement;
	// the statement's result reflects the outcome of the commit.
	Last Flags = 2 << 2

	// Single runs the statement outside of any transaction,
	// committing the current one first.
	Single Flags = 3 << 2

	chainMask Flags = 3 << 2
)

// Ownership returns the ownership part of flags.
func (f Flags) Ownership() types.Ownership {
	return types.Ownership(f & ownershipMask)
}

// Chain returns the chain mode part of flags (0, Next, Last or Single).
func (f Flags) Chain() Flags {
	return f & chainMask
}

// String implements fmt.Stringer.
func (f Flags) String() string {
	parts := []string{f.Ownership().String()}

	switch f.Chain() {
	case Next:
		parts = append(parts, "next")
	case Last:
		parts = append(parts, "last")
	case Single:
		parts = append(parts, "single")
	}

	return strings.Join(parts, "|")
}
