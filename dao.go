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

package pgsnap

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"m4o.io/pgsnap/model"
	"m4o.io/pgsnap/store"
)

// The entity cursor adapters read a named set — the full table for an
// empty prefix, the transaction's scratch set for the shared scratch
// prefix — and decode rows into domain records in ascending id order.

const (
	nodeColumns = "e.id, e.version, e.user_id, COALESCE(u.name, ''), e.tstamp, e.changeset_id, e.tags," +
		" ST_X(e.geom), ST_Y(e.geom)"
	wayColumns = "e.id, e.version, e.user_id, COALESCE(u.name, ''), e.tstamp, e.changeset_id, e.tags, e.nodes"
	relColumns = "e.id, e.version, e.user_id, COALESCE(u.name, ''), e.tstamp, e.changeset_id, e.tags"
)

func nodeOpener(tx store.Tx, prefix string) cursorOpener {
	return func(ctx context.Context) (cursor, error) {
		rows, err := tx.Query(ctx,
			"SELECT "+nodeColumns+" FROM "+prefix+"nodes e"+
				" LEFT OUTER JOIN users u ON e.user_id = u.id ORDER BY e.id")
		if err != nil {
			return nil, err
		}

		return &rowCursor{rows: rows, decode: decodeNode}, nil
	}
}

func wayOpener(tx store.Tx, prefix string) cursorOpener {
	return func(ctx context.Context) (cursor, error) {
		rows, err := tx.Query(ctx,
			"SELECT "+wayColumns+" FROM "+prefix+"ways e"+
				" LEFT OUTER JOIN users u ON e.user_id = u.id ORDER BY e.id")
		if err != nil {
			return nil, err
		}

		return &rowCursor{rows: rows, decode: decodeWay}, nil
	}
}

func relationOpener(tx store.Tx, prefix string) cursorOpener {
	return func(ctx context.Context) (cursor, error) {
		rels, err := tx.Query(ctx,
			"SELECT "+relColumns+" FROM "+prefix+"relations e"+
				" LEFT OUTER JOIN users u ON e.user_id = u.id ORDER BY e.id")
		if err != nil {
			return nil, err
		}

		members, err := tx.Query(ctx, memberSQL(prefix))
		if err != nil {
			rels.Close()

			return nil, err
		}

		return &relationCursor{rels: rels, members: members}, nil
	}
}

func memberSQL(prefix string) string {
	if prefix == "" {
		return "SELECT relation_id, member_id, member_type, member_role FROM relation_members" +
			" ORDER BY relation_id, sequence_id"
	}

	return "SELECT rm.relation_id, rm.member_id, rm.member_type, rm.member_role FROM relation_members rm" +
		" INNER JOIN " + prefix + "relations br ON rm.relation_id = br.id" +
		" ORDER BY rm.relation_id, rm.sequence_id"
}

// rowCursor adapts a store cursor with a per-row decoder.
type rowCursor struct {
	rows   store.Rows
	decode func(store.Rows) (model.Object, error)
}

func (c *rowCursor) next() (model.Object, error) {
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return nil, err
		}

		return nil, io.EOF
	}

	return c.decode(c.rows)
}

func (c *rowCursor) close() {
	c.rows.Close()
}

// relationCursor merge-joins the relation rows with their member rows;
// both cursors are ordered by relation id so a single forward pass
// suffices.
type relationCursor struct {
	rels    store.Rows
	members store.Rows

	pending     member
	hasMember   bool
	membersDone bool
}

type member struct {
	relationID int64
	memberID   int64
	kind       string
	role       string
}

func (c *relationCursor) next() (model.Object, error) {
	if !c.rels.Next() {
		if err := c.rels.Err(); err != nil {
			return nil, err
		}

		return nil, io.EOF
	}

	var (
		id, changeset int64
		version       int32
		userID        int32
		name          string
		tstamp        time.Time
		tags          pgtype.Hstore
	)

	err := c.rels.Scan(&id, &version, &userID, &name, &tstamp, &changeset, &tags)
	if err != nil {
		return nil, err
	}

	r := &model.Relation{
		ID:   model.ID(id),
		Tags: tagMap(tags),
		Info: entityInfo(version, userID, name, tstamp, changeset),
	}

	for {
		if !c.hasMember && !c.membersDone {
			if !c.members.Next() {
				if err := c.members.Err(); err != nil {
					return nil, err
				}

				c.membersDone = true
			} else {
				m := member{}
				if err := c.members.Scan(&m.relationID, &m.memberID, &m.kind, &m.role); err != nil {
					return nil, err
				}

				c.pending = m
				c.hasMember = true
			}
		}

		if !c.hasMember || c.pending.relationID != id {
			break
		}

		r.Members = append(r.Members, model.Member{
			ID:   model.ID(c.pending.memberID),
			Type: memberType(c.pending.kind),
			Role: c.pending.role,
		})
		c.hasMember = false
	}

	return r, nil
}

func (c *relationCursor) close() {
	c.rels.Close()
	c.members.Close()
}

func decodeNode(rows store.Rows) (model.Object, error) {
	var (
		id, changeset int64
		version       int32
		userID        int32
		name          string
		tstamp        time.Time
		tags          pgtype.Hstore
		lon, lat      float64
	)

	err := rows.Scan(&id, &version, &userID, &name, &tstamp, &changeset, &tags, &lon, &lat)
	if err != nil {
		return nil, err
	}

	return &model.Node{
		ID:   model.ID(id),
		Tags: tagMap(tags),
		Info: entityInfo(version, userID, name, tstamp, changeset),
		Lat:  model.Degrees(lat),
		Lon:  model.Degrees(lon),
	}, nil
}

func decodeWay(rows store.Rows) (model.Object, error) {
	var (
		id, changeset int64
		version       int32
		userID        int32
		name          string
		tstamp        time.Time
		tags          pgtype.Hstore
		nodeIDs       []int64
	)

	err := rows.Scan(&id, &version, &userID, &name, &tstamp, &changeset, &tags, &nodeIDs)
	if err != nil {
		return nil, err
	}

	w := &model.Way{
		ID:      model.ID(id),
		Tags:    tagMap(tags),
		Info:    entityInfo(version, userID, name, tstamp, changeset),
		NodeIDs: make([]model.ID, 0, len(nodeIDs)),
	}
	for _, n := range nodeIDs {
		w.NodeIDs = append(w.NodeIDs, model.ID(n))
	}

	return w, nil
}

func entityInfo(version int32, userID int32, name string, tstamp time.Time, changeset int64) *model.Info {
	return &model.Info{
		Version:   version,
		UID:       model.UID(userID),
		Timestamp: tstamp,
		Changeset: changeset,
		User:      name,
		Visible:   true,
	}
}

func tagMap(h pgtype.Hstore) map[string]string {
	if len(h) == 0 {
		return nil
	}

	tags := make(map[string]string, len(h))

	for k, v := range h {
		if v != nil {
			tags[k] = *v
		}
	}

	return tags
}

func memberType(kind string) model.EntityType {
	switch kind {
	case "N":
		return model.NODE
	case "W":
		return model.WAY
	default:
		return model.RELATION
	}
}

// Point lookups share the cursor column lists.

func (s *Session) lookupNode(ctx context.Context, id model.ID) (*model.Node, error) {
	rows, err := s.tx.Query(ctx,
		"SELECT "+nodeColumns+" FROM nodes e"+
			" LEFT OUTER JOIN users u ON e.user_id = u.id WHERE e.id = $1", int64(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}

		return nil, fmt.Errorf("%w: node %d", ErrNotFound, id)
	}

	o, err := decodeNode(rows)
	if err != nil {
		return nil, err
	}

	return o.(*model.Node), nil
}

func (s *Session) lookupWay(ctx context.Context, id model.ID) (*model.Way, error) {
	rows, err := s.tx.Query(ctx,
		"SELECT "+wayColumns+" FROM ways e"+
			" LEFT OUTER JOIN users u ON e.user_id = u.id WHERE e.id = $1", int64(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}

		return nil, fmt.Errorf("%w: way %d", ErrNotFound, id)
	}

	o, err := decodeWay(rows)
	if err != nil {
		return nil, err
	}

	return o.(*model.Way), nil
}

func (s *Session) lookupRelation(ctx context.Context, id model.ID) (*model.Relation, error) {
	rows, err := s.tx.Query(ctx,
		"SELECT "+relColumns+" FROM relations e"+
			" LEFT OUTER JOIN users u ON e.user_id = u.id WHERE e.id = $1", int64(id))
	if err != nil {
		return nil, err
	}

	var (
		rid, changeset int64
		version        int32
		userID         int32
		name           string
		tstamp         time.Time
		tags           pgtype.Hstore
	)

	if !rows.Next() {
		err := rows.Err()
		rows.Close()

		if err != nil {
			return nil, err
		}

		return nil, fmt.Errorf("%w: relation %d", ErrNotFound, id)
	}

	err = rows.Scan(&rid, &version, &userID, &name, &tstamp, &changeset, &tags)
	rows.Close()

	if err != nil {
		return nil, err
	}

	r := &model.Relation{
		ID:   model.ID(rid),
		Tags: tagMap(tags),
		Info: entityInfo(version, userID, name, tstamp, changeset),
	}

	members, err := s.tx.Query(ctx,
		"SELECT relation_id, member_id, member_type, member_role FROM relation_members"+
			" WHERE relation_id = $1 ORDER BY sequence_id", int64(id))
	if err != nil {
		return nil, err
	}
	defer members.Close()

	for members.Next() {
		m := member{}
		if err := members.Scan(&m.relationID, &m.memberID, &m.kind, &m.role); err != nil {
			return nil, err
		}

		r.Members = append(r.Members, model.Member{
			ID:   model.ID(m.memberID),
			Type: memberType(m.kind),
			Role: m.role,
		})
	}

	if err := members.Err(); err != nil {
		return nil, err
	}

	return r, nil
}
