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

// Package selector models the declarative predicates a query is filtered
// by. A selector contributes a WHERE fragment with '?' placeholders plus
// the values bound to them; selectors know nothing about the table they are
// applied to.
package selector

import (
	"errors"
	"fmt"
	"strings"

	"m4o.io/pgsnap/model"
)

// ErrInvalidSelector is returned when a selector is malformed or
// self-contradictory.
var ErrInvalidSelector = errors.New("invalid selector")

// Selector contributes one predicate fragment to a query.
type Selector interface {
	// Clause returns a parenthesized SQL fragment with '?' placeholders.
	Clause() string

	// Args returns the values bound to the fragment's placeholders, in
	// placeholder order.
	Args() []any
}

// Validator is implemented by selectors that can be malformed; the
// planner vets them before any store interaction.
type Validator interface {
	Validate() error
}

// Validate vets every selector in a list that supports validation.
func Validate[S Selector](selectors []S) error {
	for _, s := range selectors {
		if v, ok := any(s).(Validator); ok {
			if err := v.Validate(); err != nil {
				return err
			}
		}
	}

	return nil
}

// BoundingBox selects entities whose geometry intersects a rectangle. The
// geometry column defaults to the node geometry name; the planner rewrites
// it per target table with OnColumn.
type BoundingBox struct {
	box    model.BoundingBox
	column string
}

var _ Selector = BoundingBox{}

// DefaultGeometryColumn is the geometry column bounding box selectors
// address unless rewritten by the planner.
const DefaultGeometryColumn = "geom"

// NewBoundingBox creates a bounding box selector over the node geometry
// column. It fails when the box has no extent.
func NewBoundingBox(left, right, top, bottom model.Degrees) (BoundingBox, error) {
	box := model.BoundingBox{Top: top, Left: left, Bottom: bottom, Right: right}
	if err := box.Validate(); err != nil {
		return BoundingBox{}, fmt.Errorf("%w: %w", ErrInvalidSelector, err)
	}

	return BoundingBox{box: box, column: DefaultGeometryColumn}, nil
}

// Box returns the rectangle this selector addresses.
func (b BoundingBox) Box() model.BoundingBox {
	return b.box
}

// Validate rejects a selector that was not built through NewBoundingBox,
// or whose box has no extent.
func (b BoundingBox) Validate() error {
	if b.column == "" {
		return fmt.Errorf("%w: bounding box selector not initialized", ErrInvalidSelector)
	}

	if err := b.box.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSelector, err)
	}

	return nil
}

// OnColumn returns a copy of the selector addressing a different geometry
// column. The rewrite is structural; the rendered clause is rebuilt from
// the new column name.
func (b BoundingBox) OnColumn(column string) BoundingBox {
	b.column = column

	return b
}

func (b BoundingBox) Clause() string {
	return "(" + b.column + " && ST_GeomFromText(?, 4326))"
}

func (b BoundingBox) Args() []any {
	return []any{b.box.Polygon()}
}

// TagEqual selects entities carrying an exact key/value attribute pair.
type TagEqual struct {
	Key   string
	Value string
}

var _ Selector = TagEqual{}

func (t TagEqual) Clause() string {
	return "(tags @> hstore(?, ?))"
}

func (t TagEqual) Args() []any {
	return []any{t.Key, t.Value}
}

// TagExists selects entities carrying an attribute key, whatever its value.
type TagExists struct {
	Key string
}

var _ Selector = TagExists{}

func (t TagExists) Clause() string {
	return "exist(tags, ?)"
}

func (t TagExists) Args() []any {
	return []any{t.Key}
}

// comparison operators accepted by NewTagCompare.
var comparisonOps = map[string]struct{}{
	"=": {}, "!=": {}, "<": {}, "<=": {}, ">": {}, ">=": {},
}

// TagCompare selects entities whose attribute value, read as a number,
// compares against a literal. Construct with NewTagCompare so the operator
// is vetted before it is spliced into a clause.
type TagCompare struct {
	key   string
	op    string
	value float64
}

var _ Selector = TagCompare{}

// NewTagCompare creates a numeric comparison selector. It fails when op is
// not one of =, !=, <, <=, >, >=.
func NewTagCompare(key, op string, value float64) (TagCompare, error) {
	if _, ok := comparisonOps[op]; !ok {
		return TagCompare{}, fmt.Errorf("%w: comparison operator %q", ErrInvalidSelector, op)
	}

	return TagCompare{key: key, op: op, value: value}, nil
}

// Validate rejects a selector that was not built through NewTagCompare.
func (t TagCompare) Validate() error {
	if _, ok := comparisonOps[t.op]; !ok {
		return fmt.Errorf("%w: comparison operator %q", ErrInvalidSelector, t.op)
	}

	return nil
}

func (t TagCompare) Clause() string {
	return "((tags -> ?)::numeric " + t.op + " ?)"
}

func (t TagCompare) Args() []any {
	return []any{t.key, t.value}
}

// Disjunction combines selectors with OR inside a single fragment.
type Disjunction struct {
	selectors []Selector
}

var _ Selector = Disjunction{}

// Any creates a free-form disjunction of selectors.
func Any(selectors ...Selector) Disjunction {
	return Disjunction{selectors: selectors}
}

// Validate vets the combined selectors.
func (d Disjunction) Validate() error {
	return Validate(d.selectors)
}

func (d Disjunction) Clause() string {
	return JoinClauses(d.selectors)
}

func (d Disjunction) Args() []any {
	var args []any
	for _, s := range d.selectors {
		args = append(args, s.Args()...)
	}

	return args
}

// Unsatisfiable is the selector a predicate degenerates to when it cannot
// be satisfied by the table it was retargeted at; the result set is
// defined to be empty rather than an error.
type Unsatisfiable struct{}

var _ Selector = Unsatisfiable{}

func (Unsatisfiable) Clause() string {
	return "(FALSE)"
}

func (Unsatisfiable) Args() []any {
	return nil
}

// Tautology is the fragment an empty selector list degenerates to. The
// store's planner optimizes it away.
const Tautology = "(1=1)"

// JoinClauses composes a selector list into one OR-joined fragment. An
// empty list degenerates to the tautology.
func JoinClauses[S Selector](selectors []S) string {
	if len(selectors) == 0 {
		return Tautology
	}

	clauses := make([]string, 0, len(selectors))
	for _, s := range selectors {
		clauses = append(clauses, s.Clause())
	}

	return "(" + strings.Join(clauses, " OR ") + ")"
}

// JoinArgs collects the bound values of a selector list in clause order.
func JoinArgs[S Selector](selectors []S) []any {
	var args []any
	for _, s := range selectors {
		args = append(args, s.Args()...)
	}

	return args
}
