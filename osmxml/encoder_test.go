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

package osmxml_test

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"m4o.io/pgsnap/model"
	"m4o.io/pgsnap/osmxml"
)

type sliceSource struct {
	objs []model.Object
	err  error
}

func (s *sliceSource) Next() (model.Object, error) {
	if len(s.objs) == 0 {
		if s.err != nil {
			return nil, s.err
		}

		return nil, io.EOF
	}

	o := s.objs[0]
	s.objs = s.objs[1:]

	return o, nil
}

func testInfo() *model.Info {
	return &model.Info{
		Version:   2,
		UID:       7,
		Timestamp: time.Date(2025, 5, 1, 12, 30, 0, 0, time.UTC),
		Changeset: 99,
		User:      "mapper",
		Visible:   true,
	}
}

func TestEncode(t *testing.T) {
	src := &sliceSource{objs: []model.Object{
		&model.Bound{
			BoundingBox: model.BoundingBox{Top: 1, Left: -1, Bottom: -1, Right: 1},
			Origin:      "Osmosis 0.48.3",
		},
		&model.LastUpdate{Timestamp: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		&model.Node{ID: 1, Info: testInfo(), Lat: -37.81, Lon: 144.95,
			Tags: map[string]string{"amenity": "cafe", "name": "Degraves & Co"}},
		&model.Way{ID: 10, Info: testInfo(), NodeIDs: []model.ID{1, 2},
			Tags: map[string]string{"highway": "path"}},
		&model.Relation{ID: 100, Info: testInfo(), Members: []model.Member{
			{ID: 10, Type: model.WAY, Role: "outer"},
			{ID: 100, Type: model.RELATION, Role: ""},
		}},
	}}

	var buf bytes.Buffer

	enc := osmxml.NewEncoder(&buf, osmxml.WithGenerator("pgsnap 0.48.3"), osmxml.WithNCpus(1))
	require.NoError(t, enc.Encode(src))

	expected := `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="pgsnap 0.48.3">
  <bounds minlon="-1" minlat="-1" maxlon="1" maxlat="1" origin="Osmosis 0.48.3"/>
  <meta osm_base="2025-06-01T00:00:00Z"/>
  <node id="1" version="2" timestamp="2025-05-01T12:30:00Z" changeset="99" uid="7" user="mapper" lat="-37.81" lon="144.95">
    <tag k="amenity" v="cafe"/>
    <tag k="name" v="Degraves &amp; Co"/>
  </node>
  <way id="10" version="2" timestamp="2025-05-01T12:30:00Z" changeset="99" uid="7" user="mapper">
    <nd ref="1"/>
    <nd ref="2"/>
    <tag k="highway" v="path"/>
  </way>
  <relation id="100" version="2" timestamp="2025-05-01T12:30:00Z" changeset="99" uid="7" user="mapper">
    <member type="way" ref="10" role="outer"/>
    <member type="relation" ref="100" role=""/>
  </relation>
</osm>
`

	assert.Equal(t, expected, buf.String())
}

func TestEncode_TagsSorted(t *testing.T) {
	src := &sliceSource{objs: []model.Object{
		&model.Node{ID: 1, Tags: map[string]string{"c": "3", "a": "1", "b": "2"}},
	}}

	var buf bytes.Buffer

	require.NoError(t, osmxml.NewEncoder(&buf).Encode(src))

	out := buf.String()
	a := bytes.Index([]byte(out), []byte(`k="a"`))
	b := bytes.Index([]byte(out), []byte(`k="b"`))
	c := bytes.Index([]byte(out), []byte(`k="c"`))
	assert.True(t, a < b && b < c, "tags must be serialized in sorted key order")
}

func TestEncode_SourceErrorPropagates(t *testing.T) {
	src := &sliceSource{
		objs: []model.Object{&model.Node{ID: 1}},
		err:  errors.New("cursor broken"),
	}

	var buf bytes.Buffer

	err := osmxml.NewEncoder(&buf).Encode(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cursor broken")
}

func TestEncode_Observer(t *testing.T) {
	src := &sliceSource{objs: []model.Object{
		&model.Node{ID: 1},
		&model.Node{ID: 2},
	}}

	var seen int

	var buf bytes.Buffer

	enc := osmxml.NewEncoder(&buf, osmxml.WithObserver(func(model.Object) { seen++ }))
	require.NoError(t, enc.Encode(src))

	assert.Equal(t, 2, seen)
}
