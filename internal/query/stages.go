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
	"m4o.io/pgsnap/model"
	"m4o.io/pgsnap/selector"
)

// ScratchPrefix is the shared prefix of every scratch set; the entity
// cursor adapters rely on it to select the backing tables.
const ScratchPrefix = "bbox_"

// AllPlan streams the full dataset; no scratch sets are built.
func AllPlan() Plan {
	return Plan{Nodes: true, Ways: true, Relations: true}
}

// BBoxPlan materializes everything intersecting a single rectangle,
// optionally closed over way nodes.
func BBoxPlan(box selector.BoundingBox, completeWays bool, caps Capabilities, hints bool) Plan {
	p := Plan{Prefix: ScratchPrefix, Nodes: true, Ways: true, Relations: true}

	p.tuningHints(hints)

	p.stage("select nodes",
		"CREATE TEMPORARY TABLE bbox_nodes ON COMMIT DROP AS SELECT * FROM nodes WHERE "+box.Clause(),
		box.Args()...)
	p.keyAndAnalyze("nodes")

	p.selectWaysByBox(box, caps)
	p.keyAndAnalyze("ways")

	p.seedRelations(nil)
	p.closeRelations()

	if completeWays {
		p.completeWays(caps)
	}

	p.stage("analyze nodes", "ANALYZE bbox_nodes")

	return p
}

// SelectedNodesPlan materializes nodes matching the selector expression.
func SelectedNodesPlan(bboxes []selector.BoundingBox, tags []selector.Selector, hints bool) Plan {
	p := Plan{Prefix: ScratchPrefix, Nodes: true}

	p.tuningHints(hints)

	clause, args := composeWhere(bboxes, tags)
	p.stage("select nodes",
		"CREATE TEMPORARY TABLE bbox_nodes ON COMMIT DROP AS SELECT * FROM nodes WHERE "+clause,
		args...)
	p.keyAndAnalyze("nodes")

	return p
}

// SelectedWaysPlan materializes ways matching the selector expression plus
// the nodes they reference. A bounding box selector needs the cached way
// linestring to be satisfiable against the ways table; without that
// capability the way set is defined to be empty.
func SelectedWaysPlan(bboxes []selector.BoundingBox, tags []selector.Selector, caps Capabilities, hints bool) Plan {
	p := Plan{Prefix: ScratchPrefix, Nodes: true, Ways: true}

	p.tuningHints(hints)

	p.stage("create empty node set",
		"CREATE TEMPORARY TABLE bbox_nodes ON COMMIT DROP AS SELECT * FROM nodes WHERE FALSE")

	clause, args := composeWhere(rewriteForWays(bboxes, caps), tags)
	p.stage("select ways",
		"CREATE TEMPORARY TABLE bbox_ways ON COMMIT DROP AS SELECT * FROM ways WHERE "+clause,
		args...)
	p.keyAndAnalyze("ways")

	p.completeWays(caps)
	p.stage("analyze nodes", "ANALYZE bbox_nodes")

	return p
}

// SelectedRelationsPlan materializes relations matching the selector
// expression, closed over parent relations. When bounding boxes are given,
// the seed set is reached through spatial membership: nodes and ways in
// the boxes, then the relations referencing them.
func SelectedRelationsPlan(bboxes []selector.BoundingBox, tags []selector.Selector, caps Capabilities, hints bool) Plan {
	p := Plan{Prefix: ScratchPrefix, Relations: true}

	p.tuningHints(hints)

	if len(bboxes) == 0 {
		p.stage("select relations",
			"CREATE TEMPORARY TABLE bbox_relations ON COMMIT DROP AS SELECT * FROM relations WHERE "+
				selector.JoinClauses(tags),
			selector.JoinArgs(tags)...)
		p.stage("key relations", "ALTER TABLE ONLY bbox_relations ADD CONSTRAINT pk_bbox_relations PRIMARY KEY (id)")
		p.stage("analyze relations", "ANALYZE bbox_relations")
		p.closeRelations()

		return p
	}

	p.stage("select nodes",
		"CREATE TEMPORARY TABLE bbox_nodes ON COMMIT DROP AS SELECT * FROM nodes WHERE "+
			selector.JoinClauses(bboxes),
		selector.JoinArgs(bboxes)...)
	p.keyAndAnalyze("nodes")

	p.selectWaysByBoxes(bboxes, caps)
	p.keyAndAnalyze("ways")

	p.seedRelations(tags)
	p.closeRelations()

	return p
}

// SelectedAllPlan materializes all three entity kinds matching the
// selector expression, closes relations over parents, and completes ways.
func SelectedAllPlan(bboxes []selector.BoundingBox, tags []selector.Selector, caps Capabilities, hints bool) Plan {
	p := Plan{Prefix: ScratchPrefix, Nodes: true, Ways: true, Relations: true}

	p.tuningHints(hints)

	clause, args := composeWhere(bboxes, tags)
	p.stage("select nodes",
		"CREATE TEMPORARY TABLE bbox_nodes ON COMMIT DROP AS SELECT * FROM nodes WHERE "+clause,
		args...)
	p.keyAndAnalyze("nodes")

	wayClause, wayArgs := composeWhere(rewriteForWays(bboxes, caps), tags)
	p.stage("select ways",
		"CREATE TEMPORARY TABLE bbox_ways ON COMMIT DROP AS SELECT * FROM ways WHERE "+wayClause,
		wayArgs...)
	p.keyAndAnalyze("ways")

	p.seedRelations(nil)
	p.closeRelations()

	p.completeWays(caps)
	p.stage("analyze nodes", "ANALYZE bbox_nodes")

	return p
}

// NodesByIDPlan materializes the nodes with the given ids.
func NodesByIDPlan(ids []model.ID, hints bool) Plan {
	p := Plan{Prefix: ScratchPrefix, Nodes: true}

	p.tuningHints(hints)

	p.stage("select nodes",
		"CREATE TEMPORARY TABLE bbox_nodes ON COMMIT DROP AS SELECT * FROM nodes WHERE id = ANY(?)",
		idList(ids))
	p.stage("analyze nodes", "ANALYZE bbox_nodes")

	return p
}

// WaysByIDPlan materializes the ways with the given ids plus the nodes
// they reference.
func WaysByIDPlan(ids []model.ID, caps Capabilities, hints bool) Plan {
	p := Plan{Prefix: ScratchPrefix, Nodes: true, Ways: true}

	p.tuningHints(hints)

	p.stage("create empty node set",
		"CREATE TEMPORARY TABLE bbox_nodes ON COMMIT DROP AS SELECT * FROM nodes WHERE FALSE")
	p.stage("select ways",
		"CREATE TEMPORARY TABLE bbox_ways ON COMMIT DROP AS SELECT * FROM ways WHERE id = ANY(?)",
		idList(ids))
	p.stage("analyze ways", "ANALYZE bbox_ways")

	p.completeWays(caps)
	p.stage("analyze nodes", "ANALYZE bbox_nodes")

	return p
}

// RelationsByIDPlan materializes the relations with the given ids.
func RelationsByIDPlan(ids []model.ID, hints bool) Plan {
	p := Plan{Prefix: ScratchPrefix, Relations: true}

	p.tuningHints(hints)

	p.stage("select relations",
		"CREATE TEMPORARY TABLE bbox_relations ON COMMIT DROP AS SELECT * FROM relations WHERE id = ANY(?)",
		idList(ids))
	p.stage("analyze relations", "ANALYZE bbox_relations")

	return p
}

// tuningHints biases the store's planner toward index-driven plans for the
// small, highly selective scratch sets this protocol builds. SET LOCAL
// scopes the hints to the current transaction.
func (p *Plan) tuningHints(enabled bool) {
	if !enabled {
		return
	}

	p.stage("disable sequential scans", "SET LOCAL enable_seqscan = false")
	p.stage("disable merge joins", "SET LOCAL enable_mergejoin = false")
	p.stage("disable hash joins", "SET LOCAL enable_hashjoin = false")
}

// keyAndAnalyze adds a primary key to a freshly materialized scratch set
// and refreshes its statistics so subsequent joins see accurate row
// counts.
func (p *Plan) keyAndAnalyze(set string) {
	p.stage("key "+set,
		"ALTER TABLE ONLY bbox_"+set+" ADD CONSTRAINT pk_bbox_"+set+" PRIMARY KEY (id)")
	p.stage("analyze "+set, "ANALYZE bbox_"+set)
}

// selectWaysByBox picks the physical strategy for the way set of a
// single-box query. With a cached linestring the box applies directly;
// with only a cached way bbox the linestring is rebuilt on the fly from
// the node coordinates while the bbox index prunes candidates; with
// neither, ways are reached through the already selected nodes.
func (p *Plan) selectWaysByBox(box selector.BoundingBox, caps Capabilities) {
	switch {
	case caps.WayLinestring:
		rewritten := box.OnColumn("linestring")
		p.stage("select ways by linestring",
			"CREATE TEMPORARY TABLE bbox_ways ON COMMIT DROP AS SELECT * FROM ways WHERE "+rewritten.Clause(),
			rewritten.Args()...)

	case caps.WayBBox:
		inner := box.OnColumn("w.bbox")
		outer := box.OnColumn("w.way_line")
		args := append(inner.Args(), outer.Args()...)
		p.stage("select ways by rebuilt linestring",
			"CREATE TEMPORARY TABLE bbox_ways ON COMMIT DROP AS"+
				" SELECT w.id, w.version, w.user_id, w.tstamp, w.changeset_id, w.tags, w.nodes FROM ("+
				"SELECT c.id AS id, (array_agg(c.version))[1] AS version, (array_agg(c.user_id))[1] AS user_id,"+
				" (array_agg(c.tstamp))[1] AS tstamp, (array_agg(c.changeset_id))[1] AS changeset_id,"+
				" (array_agg(c.tags))[1] AS tags, (array_agg(c.nodes))[1] AS nodes,"+
				" ST_MakeLine(c.geom) AS way_line FROM ("+
				"SELECT w.*, n.geom AS geom FROM nodes n"+
				" INNER JOIN way_nodes wn ON n.id = wn.node_id"+
				" INNER JOIN ways w ON wn.way_id = w.id"+
				" WHERE "+inner.Clause()+" ORDER BY wn.way_id, wn.sequence_id"+
				") c GROUP BY c.id) w WHERE "+outer.Clause(),
			args...)

	default:
		p.stage("select ways by selected nodes",
			"CREATE TEMPORARY TABLE bbox_ways ON COMMIT DROP AS"+
				" SELECT w.* FROM ways w INNER JOIN ("+
				" SELECT wn.way_id FROM way_nodes wn"+
				" INNER JOIN bbox_nodes n ON wn.node_id = n.id GROUP BY wn.way_id"+
				") wids ON w.id = wids.way_id")
	}
}

// selectWaysByBoxes is selectWaysByBox generalized to a selector list; the
// node-reachable fallback keeps the capability matrix closed for queries
// that seed relation membership.
func (p *Plan) selectWaysByBoxes(bboxes []selector.BoundingBox, caps Capabilities) {
	if caps.WayLinestring {
		rewritten := make([]selector.BoundingBox, 0, len(bboxes))
		for _, b := range bboxes {
			rewritten = append(rewritten, b.OnColumn("linestring"))
		}

		p.stage("select ways",
			"CREATE TEMPORARY TABLE bbox_ways ON COMMIT DROP AS SELECT * FROM ways WHERE "+
				selector.JoinClauses(rewritten),
			selector.JoinArgs(rewritten)...)

		return
	}

	p.stage("select ways by selected nodes",
		"CREATE TEMPORARY TABLE bbox_ways ON COMMIT DROP AS"+
			" SELECT w.* FROM ways w INNER JOIN ("+
			" SELECT wn.way_id FROM way_nodes wn"+
			" INNER JOIN bbox_nodes n ON wn.node_id = n.id GROUP BY wn.way_id"+
			") wids ON w.id = wids.way_id")
}

// seedRelations builds the relation set from relations directly
// referencing a selected node or way, deduplicated by union. An optional
// tag expression narrows the seed.
func (p *Plan) seedRelations(tags []selector.Selector) {
	sql := "CREATE TEMPORARY TABLE bbox_relations ON COMMIT DROP AS" +
		" SELECT r.* FROM relations r INNER JOIN (" +
		"    SELECT relation_id FROM (" +
		"        SELECT rm.relation_id AS relation_id FROM relation_members rm" +
		"        INNER JOIN bbox_nodes n ON rm.member_id = n.id WHERE rm.member_type = 'N'" +
		"        UNION" +
		"        SELECT rm.relation_id AS relation_id FROM relation_members rm" +
		"        INNER JOIN bbox_ways w ON rm.member_id = w.id WHERE rm.member_type = 'W'" +
		"     ) rids GROUP BY relation_id" +
		") rids ON r.id = rids.relation_id"

	var args []any

	if len(tags) > 0 {
		sql += " WHERE " + selector.JoinClauses(tags)
		args = selector.JoinArgs(tags)
	}

	p.stage("seed relations", sql, args...)
	p.stage("key relations", "ALTER TABLE ONLY bbox_relations ADD CONSTRAINT pk_bbox_relations PRIMARY KEY (id)")
	p.stage("analyze relations", "ANALYZE bbox_relations")
}

// closeRelations pulls parent relations into the set until a pass inserts
// zero rows. The set grows monotonically inside a finite universe, so the
// loop terminates.
func (p *Plan) closeRelations() {
	p.loop("close relations over parents",
		"INSERT INTO bbox_relations SELECT r.* FROM relations r INNER JOIN ("+
			"    SELECT rm.relation_id FROM relation_members rm"+
			"    INNER JOIN bbox_relations br ON rm.member_id = br.id"+
			"    WHERE rm.member_type = 'R' AND NOT EXISTS ("+
			"        SELECT * FROM bbox_relations br2 WHERE rm.relation_id = br2.id"+
			"    ) GROUP BY rm.relation_id"+
			") rids ON r.id = rids.relation_id")
	p.stage("analyze relations", "ANALYZE bbox_relations")
}

// completeWays pulls the nodes referenced by the selected ways into the
// node set. The stored procedure expands bbox_ways into bbox_way_nodes
// when present; otherwise the expansion joins way_nodes directly.
func (p *Plan) completeWays(caps Capabilities) {
	p.stage("create way node set", "CREATE TEMPORARY TABLE bbox_way_nodes (id bigint) ON COMMIT DROP")

	if caps.WayNodeUnnest {
		p.discard("expand way nodes", "SELECT unnest_bbox_way_nodes()")
	} else {
		p.stage("expand way nodes",
			"INSERT INTO bbox_way_nodes"+
				" SELECT wn.node_id FROM way_nodes wn INNER JOIN bbox_ways w ON wn.way_id = w.id")
	}

	p.stage("diff missing way nodes",
		"CREATE TEMPORARY TABLE bbox_missing_way_nodes ON COMMIT DROP AS"+
			" SELECT buwn.id FROM (SELECT DISTINCT bwn.id FROM bbox_way_nodes bwn) buwn"+
			" WHERE NOT EXISTS (SELECT * FROM bbox_nodes WHERE id = buwn.id)")
	p.stage("key missing way nodes",
		"ALTER TABLE ONLY bbox_missing_way_nodes ADD CONSTRAINT pk_bbox_missing_way_nodes PRIMARY KEY (id)")
	p.stage("analyze missing way nodes", "ANALYZE bbox_missing_way_nodes")
	p.stage("backfill way nodes",
		"INSERT INTO bbox_nodes SELECT n.* FROM nodes n INNER JOIN bbox_missing_way_nodes bwn ON n.id = bwn.id")
}

// composeWhere joins the spatial list and the tag list with AND; each
// list is OR-composed and an empty list degenerates to the tautology.
func composeWhere[S selector.Selector](geoms []S, tags []selector.Selector) (string, []any) {
	clause := selector.JoinClauses(geoms) + " AND " + selector.JoinClauses(tags)
	args := append(selector.JoinArgs(geoms), selector.JoinArgs(tags)...)

	return clause, args
}

// rewriteForWays retargets bounding box selectors from the node geometry
// to the cached way linestring. Without the linestring capability a
// node-shaped spatial selector cannot be satisfied by the ways table, and
// the rewrite yields an unsatisfiable selector instead of an error.
func rewriteForWays(bboxes []selector.BoundingBox, caps Capabilities) []selector.Selector {
	if len(bboxes) == 0 {
		return nil
	}

	if !caps.WayLinestring {
		return []selector.Selector{selector.Unsatisfiable{}}
	}

	rewritten := make([]selector.Selector, 0, len(bboxes))
	for _, b := range bboxes {
		rewritten = append(rewritten, b.OnColumn("linestring"))
	}

	return rewritten
}

// idList converts entity ids to the int64 array form the store binds.
func idList(ids []model.ID) []int64 {
	list := make([]int64, 0, len(ids))
	for _, id := range ids {
		list = append(list, int64(id))
	}

	return list
}
