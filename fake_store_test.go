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

package pgsnap_test

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"m4o.io/pgsnap/store"
)

// fakeStore scripts the store contract for session tests. Entity row sets
// are handed back whenever a cursor opens over the matching table; stage
// statements are recorded and answered from the script.
type fakeStore struct {
	tx       *fakeTx
	beginErr error
	begun    int
}

func (f *fakeStore) Begin(_ context.Context) (store.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}

	f.begun++

	return f.tx, nil
}

type fakeTx struct {
	schemaVersion int
	linestring    bool
	wayBBox       bool
	unnest        bool

	lastUpdate    time.Time
	hasLastUpdate bool

	nodes     [][]any
	ways      [][]any
	relations [][]any
	members   [][]any

	execs      []string
	execArgs   [][]any
	execErr    map[string]error // substring -> error
	queryErr   map[string]error
	rowsErrAt  map[string]int // substring -> fail after N rows
	loopCounts []int64        // queue for the relation closure inserts

	committed   bool
	rolledBack  bool
	openCursors int
}

func newFakeTx() *fakeTx {
	return &fakeTx{schemaVersion: 6, hasLastUpdate: true, lastUpdate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
}

func newFakeStore() *fakeStore {
	return &fakeStore{tx: newFakeTx()}
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	t.execs = append(t.execs, sql)
	t.execArgs = append(t.execArgs, args)

	for sub, err := range t.execErr {
		if strings.Contains(sql, sub) {
			return 0, err
		}
	}

	if strings.Contains(sql, "INSERT INTO bbox_relations") {
		if len(t.loopCounts) == 0 {
			return 0, nil
		}

		n := t.loopCounts[0]
		t.loopCounts = t.loopCounts[1:]

		return n, nil
	}

	return 1, nil
}

func (t *fakeTx) Query(_ context.Context, sql string, args ...any) (store.Rows, error) {
	for sub, err := range t.queryErr {
		if strings.Contains(sql, sub) {
			return nil, err
		}
	}

	var rows [][]any

	switch {
	case strings.Contains(sql, "unnest_bbox_way_nodes"):
		rows = nil
	case strings.Contains(sql, "nodes e"):
		rows = t.nodes
	case strings.Contains(sql, "ways e"):
		rows = t.ways
	case strings.Contains(sql, "relation_members"):
		rows = t.members
	case strings.Contains(sql, "relations e"):
		rows = t.relations
	default:
		return nil, fmt.Errorf("unexpected query %q", sql)
	}

	if strings.Contains(sql, "WHERE e.id =") {
		rows = filterByID(rows, args[0].(int64))
	}

	if strings.Contains(sql, "WHERE relation_id =") {
		rows = filterByID(rows, args[0].(int64))
	}

	failAt := -1

	for sub, at := range t.rowsErrAt {
		if strings.Contains(sql, sub) {
			failAt = at
		}
	}

	t.openCursors++

	return &fakeRows{tx: t, rows: rows, failAt: failAt}, nil
}

func filterByID(rows [][]any, id int64) [][]any {
	var out [][]any

	for _, r := range rows {
		if r[0].(int64) == id {
			out = append(out, r)
		}
	}

	return out
}

func (t *fakeTx) QueryRow(_ context.Context, sql string, args ...any) store.Row {
	switch {
	case strings.Contains(sql, "schema_info"):
		return &fakeRow{values: []any{t.schemaVersion}}
	case strings.Contains(sql, "information_schema.columns"):
		column := args[1].(string)

		exists := (column == "linestring" && t.linestring) || (column == "bbox" && t.wayBBox)

		return &fakeRow{values: []any{exists}}
	case strings.Contains(sql, "pg_proc"):
		return &fakeRow{values: []any{t.unnest}}
	case strings.Contains(sql, "replication_state"):
		if !t.hasLastUpdate {
			return &fakeRow{err: store.ErrNoRows}
		}

		return &fakeRow{values: []any{t.lastUpdate}}
	default:
		return &fakeRow{err: fmt.Errorf("unexpected single-row query %q", sql)}
	}
}

func (t *fakeTx) Commit(_ context.Context) error {
	t.committed = true

	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	t.rolledBack = true

	return nil
}

type fakeRows struct {
	tx     *fakeTx
	rows   [][]any
	idx    int
	failAt int
	err    error
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.err != nil {
		return false
	}

	if r.failAt >= 0 && r.idx >= r.failAt {
		r.err = fmt.Errorf("connection reset mid-iteration")

		return false
	}

	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx]
	r.idx++

	return assign(dest, row)
}

func (r *fakeRows) Err() error {
	return r.err
}

func (r *fakeRows) Close() {
	if !r.closed {
		r.closed = true
		r.tx.openCursors--
	}
}

type fakeRow struct {
	values []any
	err    error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}

	return assign(dest, r.values)
}

func assign(dest, src []any) error {
	if len(dest) != len(src) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(src))
	}

	for i, d := range dest {
		switch d := d.(type) {
		case *int64:
			*d = src[i].(int64)
		case *int32:
			*d = src[i].(int32)
		case *int:
			*d = src[i].(int)
		case *string:
			*d = src[i].(string)
		case *bool:
			*d = src[i].(bool)
		case *float64:
			*d = src[i].(float64)
		case *time.Time:
			*d = src[i].(time.Time)
		case *[]int64:
			*d = src[i].([]int64)
		case *pgtype.Hstore:
			*d = toHstore(src[i])
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}

	return nil
}

func toHstore(v any) pgtype.Hstore {
	if v == nil {
		return nil
	}

	tags := v.(map[string]string)

	h := make(pgtype.Hstore, len(tags))
	for k, val := range tags {
		s := val
		h[k] = &s
	}

	return h
}

// Row builders matching the adapter column lists.

func nodeRow(id int64, lat, lon float64, tags map[string]string) []any {
	return []any{id, int32(1), int32(10), "mapper", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), int64(100), tags, lon, lat}
}

func wayRow(id int64, tags map[string]string, nodeIDs ...int64) []any {
	return []any{id, int32(1), int32(10), "mapper", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), int64(100), tags, nodeIDs}
}

func relRow(id int64, tags map[string]string) []any {
	return []any{id, int32(1), int32(10), "mapper", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), int64(100), tags}
}

func memberRow(relID, memberID int64, kind, role string) []any {
	return []any{relID, memberID, kind, role}
}
