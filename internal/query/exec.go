// Copyright 2017-25 the original author or authors.
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

package query

import (
	"context"
	"fmt"
	"log/slog"

	"m4o.io/pgsnap/store"
)

// StageError reports the stage a plan failed at. The enclosing transaction
// is rolled back by the caller; no partial result is ever returned.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Run executes the plan's stages in order inside tx. A loop stage repeats
// until it affects zero rows; the zero-row condition is the only thing
// that terminates it, so it is checked strictly.
func Run(ctx context.Context, tx store.Tx, plan Plan, log *slog.Logger) error {
	for _, s := range plan.Stages {
		if err := runStage(ctx, tx, s, log); err != nil {
			return &StageError{Stage: s.Name, Err: err}
		}
	}

	return nil
}

func runStage(ctx context.Context, tx store.Tx, s Stage, log *slog.Logger) error {
	if s.Discard {
		return drain(ctx, tx, s)
	}

	for {
		rows, err := tx.Exec(ctx, s.SQL, s.Args...)
		if err != nil {
			return err
		}

		log.Debug("stage complete", "stage", s.Name, "rows", rows)

		if !s.Loop || rows == 0 {
			return nil
		}
	}
}

// drain runs a row-returning statement for its side effects.
func drain(ctx context.Context, tx store.Tx, s Stage) error {
	rows, err := tx.Query(ctx, s.SQL, s.Args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
	}

	return rows.Err()
}
