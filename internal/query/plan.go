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

// Package query plans and executes the staged set-building protocol that
// materializes a query's result sets into transaction-scoped scratch
// tables.
package query

import (
	"strconv"
	"strings"
)

// Capabilities records which optional schema features the store carries.
// Probed once per session; a missing feature downgrades the plan, it never
// fails the query.
type Capabilities struct {
	// WayLinestring is true when the ways table carries a cached
	// linestring geometry column.
	WayLinestring bool

	// WayBBox is true when the ways table carries a cached bounding
	// rectangle column.
	WayBBox bool

	// WayNodeUnnest is true when the store provides the stored procedure
	// that expands the scratch way set into its referenced node ids.
	WayNodeUnnest bool
}

// Stage is one step of a plan: a single statement submitted to the store.
type Stage struct {
	// Name identifies the stage in diagnostics and query failures.
	Name string

	// SQL is the statement text with $n placeholders.
	SQL string

	// Args are the values bound to the statement's placeholders.
	Args []any

	// Loop repeats the stage until it affects zero rows.
	Loop bool

	// Discard marks a row-returning statement executed only for its side
	// effects; the rows are drained and dropped.
	Discard bool
}

// Plan is an ordered list of stages plus the cursors the finished scratch
// sets feed.
type Plan struct {
	Stages []Stage

	// Prefix is the scratch-set prefix the entity cursors read from;
	// empty for full-table streams.
	Prefix string

	// Nodes, Ways, and Relations select which entity kinds the assembled
	// stream emits.
	Nodes     bool
	Ways      bool
	Relations bool
}

// stage appends a plain statement to the plan, rebinding '?' placeholders.
func (p *Plan) stage(name, sql string, args ...any) {
	p.Stages = append(p.Stages, Stage{Name: name, SQL: rebind(sql), Args: args})
}

// loop appends a statement repeated until it affects zero rows.
func (p *Plan) loop(name, sql string, args ...any) {
	p.Stages = append(p.Stages, Stage{Name: name, SQL: rebind(sql), Args: args, Loop: true})
}

// discard appends a row-returning statement executed for its side effects.
func (p *Plan) discard(name, sql string, args ...any) {
	p.Stages = append(p.Stages, Stage{Name: name, SQL: rebind(sql), Args: args, Discard: true})
}

// rebind rewrites '?' placeholders to the store's positional $n form.
// Fragments compose with '?' so that selectors need not know where in the
// final statement their parameters land.
func rebind(sql string) string {
	if !strings.ContainsRune(sql, '?') {
		return sql
	}

	var b strings.Builder

	b.Grow(len(sql) + 8)

	n := 0

	for _, r := range sql {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}
