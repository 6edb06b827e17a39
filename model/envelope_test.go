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

package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"m4o.io/pgsnap/model"
)

func TestGlobalBound(t *testing.T) {
	b := model.GlobalBound("Osmosis 0.48.3")

	assert.Equal(t, *model.GlobalBoundingBox(), b.BoundingBox)
	assert.Equal(t, "Osmosis 0.48.3", b.Origin)
}

func TestObjects(t *testing.T) {
	objs := []model.Object{
		&model.Bound{},
		&model.LastUpdate{},
		&model.Node{},
		&model.Way{},
		&model.Relation{},
	}

	entities := 0

	for _, o := range objs {
		if _, ok := o.(model.Entity); ok {
			entities++
		}
	}

	assert.Equal(t, 3, entities, "only nodes, ways, and relations are entities")
}

func TestEntityAccessors(t *testing.T) {
	info := &model.Info{Version: 3, UID: 7, User: "mapper"}
	tags := map[string]string{"highway": "path"}

	var e model.Entity = &model.Way{ID: 42, Tags: tags, Info: info, NodeIDs: []model.ID{1, 2}}

	assert.Equal(t, model.ID(42), e.GetID())
	assert.Equal(t, tags, e.GetTags())
	assert.Equal(t, info, e.GetInfo())
}
