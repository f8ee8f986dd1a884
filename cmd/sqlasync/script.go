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
	"os"

	"gopkg.in/yaml.v3"

	"github.com/FerretDB/sqlasync/internal/util/lazyerrors"
)

// script represents a YAML script file.
type script struct {
	Statements []statement `yaml:"statements"`
}

// scriptCmd represents the script command.
type scriptCmd struct {
	File string `arg:"" help:"YAML script file." type:"existingfile"`
}

// loadScript reads and validates a script file.
func loadScript(file string) (*script, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, lazyerrors.Error(err)
	}

	var s script
	if err = yaml.Unmarshal(b, &s); err != nil {
		return nil, lazyerrors.Errorf("failed to parse %s: %w", file, err)
	}

	if len(s.Statements) == 0 {
		return nil, lazyerrors.Errorf("%s: no statements", file)
	}

	for i := range s.Statements {
		st := &s.Statements[i]

		if _, err = st.chainFlags(); err != nil {
			return nil, lazyerrors.Errorf("%s: statement %d: %w", file, i+1, err)
		}

		if st.values, err = convertBinds(st.Binds); err != nil {
			return nil, lazyerrors.Errorf("%s: statement %d: %w", file, i+1, err)
		}
	}

	return &s, nil
}

// Run executes the script, printing a header, rows and the status of each statement to stdout.
func (cmd *scriptCmd) Run(e *env) error {
	s, err := loadScript(cmd.File)
	if err != nil {
		return err
	}

	a, err := newApp(e)
	if err != nil {
		return err
	}

	if err = a.exec(s.Statements, true); err != nil {
		a.abort()
		return lazyerrors.Error(err)
	}

	return a.close()
}
