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

	"m4o.io/pgsnap/internal/query"
	"m4o.io/pgsnap/model"
	"m4o.io/pgsnap/selector"
)

// Iterate streams the entire dataset: the envelopes, then every node,
// way, and relation in ascending id order per kind.
func (s *Session) Iterate(ctx context.Context) (*Stream, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	return s.assemble(ctx, query.AllPlan(), model.GlobalBound(s.cfg.origin)), nil
}

// IterateBBox streams everything intersecting the rectangle. With
// completeWays set, nodes referenced by a selected way are pulled into
// the stream ahead of it.
func (s *Session) IterateBBox(ctx context.Context, left, right, top, bottom model.Degrees,
	completeWays bool,
) (*Stream, error) {
	box, err := selector.NewBoundingBox(left, right, top, bottom)
	if err != nil {
		return nil, err
	}

	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	plan := query.BBoxPlan(box, completeWays, s.caps, s.cfg.hints)
	if err := s.run(ctx, plan); err != nil {
		return nil, err
	}

	bound := &model.Bound{BoundingBox: box.Box(), Origin: s.cfg.origin}

	return s.assemble(ctx, plan, bound), nil
}

// IterateSelectedNodes streams the nodes matching the selector
// expression: any of the boxes, and any of the tag selectors.
func (s *Session) IterateSelectedNodes(ctx context.Context, bboxes []selector.BoundingBox,
	tags []selector.Selector,
) (*Stream, error) {
	if err := s.prepare(ctx, bboxes, tags); err != nil {
		return nil, err
	}

	plan := query.SelectedNodesPlan(bboxes, tags, s.cfg.hints)
	if err := s.run(ctx, plan); err != nil {
		return nil, err
	}

	return s.assemble(ctx, plan, s.boundFrom(bboxes)), nil
}

// IterateSelectedWays streams the ways matching the selector expression,
// preceded by the nodes they reference.
func (s *Session) IterateSelectedWays(ctx context.Context, bboxes []selector.BoundingBox,
	tags []selector.Selector,
) (*Stream, error) {
	if err := s.prepare(ctx, bboxes, tags); err != nil {
		return nil, err
	}

	plan := query.SelectedWaysPlan(bboxes, tags, s.caps, s.cfg.hints)
	if err := s.run(ctx, plan); err != nil {
		return nil, err
	}

	return s.assemble(ctx, plan, s.boundFrom(bboxes)), nil
}

// IterateSelectedRelations streams the relations matching the selector
// expression, closed over the relations that transitively contain them.
func (s *Session) IterateSelectedRelations(ctx context.Context, bboxes []selector.BoundingBox,
	tags []selector.Selector,
) (*Stream, error) {
	if err := s.prepare(ctx, bboxes, tags); err != nil {
		return nil, err
	}

	plan := query.SelectedRelationsPlan(bboxes, tags, s.caps, s.cfg.hints)
	if err := s.run(ctx, plan); err != nil {
		return nil, err
	}

	return s.assemble(ctx, plan, s.boundFrom(bboxes)), nil
}

// IterateSelectedAll streams all three entity kinds matching the
// selector expression, with relations closed over parents and ways
// completed.
func (s *Session) IterateSelectedAll(ctx context.Context, bboxes []selector.BoundingBox,
	tags []selector.Selector,
) (*Stream, error) {
	if err := s.prepare(ctx, bboxes, tags); err != nil {
		return nil, err
	}

	plan := query.SelectedAllPlan(bboxes, tags, s.caps, s.cfg.hints)
	if err := s.run(ctx, plan); err != nil {
		return nil, err
	}

	return s.assemble(ctx, plan, s.boundFrom(bboxes)), nil
}

// IterateNodes streams the nodes with the given ids, in ascending id
// order regardless of the order given.
func (s *Session) IterateNodes(ctx context.Context, ids []model.ID) (*Stream, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	plan := query.NodesByIDPlan(ids, s.cfg.hints)
	if err := s.run(ctx, plan); err != nil {
		return nil, err
	}

	return s.assemble(ctx, plan, model.GlobalBound(s.cfg.origin)), nil
}

// IterateWays streams the ways with the given ids, preceded by the nodes
// they reference.
func (s *Session) IterateWays(ctx context.Context, ids []model.ID) (*Stream, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	plan := query.WaysByIDPlan(ids, s.caps, s.cfg.hints)
	if err := s.run(ctx, plan); err != nil {
		return nil, err
	}

	return s.assemble(ctx, plan, model.GlobalBound(s.cfg.origin)), nil
}

// IterateRelations streams the relations with the given ids.
func (s *Session) IterateRelations(ctx context.Context, ids []model.ID) (*Stream, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	plan := query.RelationsByIDPlan(ids, s.cfg.hints)
	if err := s.run(ctx, plan); err != nil {
		return nil, err
	}

	return s.assemble(ctx, plan, model.GlobalBound(s.cfg.origin)), nil
}

// prepare vets the session lifecycle and the selector expression; a
// malformed selector is rejected before any store interaction and leaves
// the session usable.
func (s *Session) prepare(ctx context.Context, bboxes []selector.BoundingBox,
	tags []selector.Selector,
) error {
	if err := selector.Validate(bboxes); err != nil {
		return err
	}

	if err := selector.Validate(tags); err != nil {
		return err
	}

	return s.guard(ctx)
}

// boundFrom derives the stream's bound envelope from the first bounding
// box selector, or the whole dataset when the expression carries none.
func (s *Session) boundFrom(bboxes []selector.BoundingBox) *model.Bound {
	if len(bboxes) > 0 {
		return &model.Bound{BoundingBox: bboxes[0].Box(), Origin: s.cfg.origin}
	}

	return model.GlobalBound(s.cfg.origin)
}
