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
	"log/slog"

	"m4o.io/pgsnap/internal/query"
	"m4o.io/pgsnap/store"
)

// probeCapabilities inspects the schema metadata once per session for the
// optional features that change the physical plan. Probing never fails a
// query; a feature that cannot be confirmed is treated as absent.
func probeCapabilities(ctx context.Context, tx store.Tx, log *slog.Logger) query.Capabilities {
	caps := query.Capabilities{
		WayLinestring: columnExists(ctx, tx, "ways", "linestring", log),
		WayBBox:       columnExists(ctx, tx, "ways", "bbox", log),
		WayNodeUnnest: functionExists(ctx, tx, "unnest_bbox_way_nodes", log),
	}

	log.Debug("capabilities probed",
		"way_linestring", caps.WayLinestring,
		"way_bbox", caps.WayBBox,
		"way_node_unnest", caps.WayNodeUnnest)

	return caps
}

func columnExists(ctx context.Context, tx store.Tx, table, column string, log *slog.Logger) bool {
	var exists bool

	err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.columns"+
			" WHERE table_name = $1 AND column_name = $2)", table, column).Scan(&exists)
	if err != nil {
		log.Debug("capability probe failed", "table", table, "column", column, "error", err)

		return false
	}

	return exists
}

func functionExists(ctx context.Context, tx store.Tx, name string, log *slog.Logger) bool {
	var exists bool

	err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_proc WHERE proname = $1)", name).Scan(&exists)
	if err != nil {
		log.Debug("capability probe failed", "function", name, "error", err)

		return false
	}

	return exists
}
