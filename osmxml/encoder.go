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

// Package osmxml serializes result streams as OSM XML 0.6.
package osmxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/destel/rill"
	"golang.org/x/exp/constraints"

	"m4o.io/pgsnap/model"
)

// Source yields the objects of one result stream; io.EOF ends it.
type Source interface {
	Next() (model.Object, error)
}

// Encoder writes a result stream as an OSM XML document. Batches are
// rendered concurrently and written in stream order.
type Encoder struct {
	wrtr io.Writer
	cfg  encoderOptions
}

// NewEncoder returns a new encoder, configured with options, that writes
// to wrtr.
func NewEncoder(wrtr io.Writer, opts ...EncoderOption) *Encoder {
	cfg := defaultEncoderConfig

	for _, opt := range opts {
		opt(&cfg)
	}

	return &Encoder{wrtr: wrtr, cfg: cfg}
}

// Encode drains the source and writes the complete document. The source
// is not closed; cleanup stays with the caller on every exit path.
func (e *Encoder) Encode(src Source) error {
	in := make(chan rill.Try[model.Object], e.cfg.batchSize)

	go func() {
		defer close(in)

		for {
			o, err := src.Next()
			if err == io.EOF {
				return
			}

			if err != nil {
				in <- rill.Try[model.Object]{Error: err}

				return
			}

			if e.cfg.observer != nil {
				e.cfg.observer(o)
			}

			in <- rill.Try[model.Object]{Value: o}
		}
	}()

	batches := rill.Batch(in, e.cfg.batchSize, -1)
	rendered := rill.OrderedMap(batches, int(e.cfg.nCPU), renderBatch)

	_, err := fmt.Fprintf(e.wrtr, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<osm version=\"0.6\" generator=%q>\n",
		e.cfg.generator)
	if err != nil {
		return err
	}

	err = rill.ForEach(rendered, 1, func(buf []byte) error {
		_, err := e.wrtr.Write(buf)

		return err
	})
	if err != nil {
		return err
	}

	_, err = io.WriteString(e.wrtr, "</osm>\n")

	return err
}

func renderBatch(batch []model.Object) ([]byte, error) {
	var buf bytes.Buffer

	for _, o := range batch {
		switch o := o.(type) {
		case *model.Bound:
			renderBound(&buf, o)
		case *model.LastUpdate:
			renderLastUpdate(&buf, o)
		case *model.Node:
			renderNode(&buf, o)
		case *model.Way:
			renderWay(&buf, o)
		case *model.Relation:
			renderRelation(&buf, o)
		default:
			return nil, fmt.Errorf("unknown object type %T", o)
		}
	}

	return buf.Bytes(), nil
}

func renderBound(buf *bytes.Buffer, b *model.Bound) {
	buf.WriteString("  <bounds minlon=\"" + dtoa(b.Left) + "\" minlat=\"" + dtoa(b.Bottom) +
		"\" maxlon=\"" + dtoa(b.Right) + "\" maxlat=\"" + dtoa(b.Top) +
		"\" origin=\"" + escape(b.Origin) + "\"/>\n")
}

func renderLastUpdate(buf *bytes.Buffer, l *model.LastUpdate) {
	buf.WriteString("  <meta osm_base=\"" + stamp(l.Timestamp) + "\"/>\n")
}

func renderNode(buf *bytes.Buffer, n *model.Node) {
	buf.WriteString("  <node id=\"" + itoa(n.ID) + "\"" + info(n.Info) +
		" lat=\"" + dtoa(n.Lat) + "\" lon=\"" + dtoa(n.Lon) + "\"")

	if len(n.Tags) == 0 {
		buf.WriteString("/>\n")

		return
	}

	buf.WriteString(">\n")
	renderTags(buf, n.Tags)
	buf.WriteString("  </node>\n")
}

func renderWay(buf *bytes.Buffer, w *model.Way) {
	buf.WriteString("  <way id=\"" + itoa(w.ID) + "\"" + info(w.Info) + ">\n")

	for _, ref := range w.NodeIDs {
		buf.WriteString("    <nd ref=\"" + itoa(ref) + "\"/>\n")
	}

	renderTags(buf, w.Tags)
	buf.WriteString("  </way>\n")
}

func renderRelation(buf *bytes.Buffer, r *model.Relation) {
	buf.WriteString("  <relation id=\"" + itoa(r.ID) + "\"" + info(r.Info) + ">\n")

	for _, m := range r.Members {
		buf.WriteString("    <member type=\"" + memberType(m.Type) + "\" ref=\"" + itoa(m.ID) +
			"\" role=\"" + escape(m.Role) + "\"/>\n")
	}

	renderTags(buf, r.Tags)
	buf.WriteString("  </relation>\n")
}

func renderTags(buf *bytes.Buffer, tags map[string]string) {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		buf.WriteString("    <tag k=\"" + escape(k) + "\" v=\"" + escape(tags[k]) + "\"/>\n")
	}
}

func info(i *model.Info) string {
	if i == nil {
		return ""
	}

	s := " version=\"" + itoa(i.Version) + "\" timestamp=\"" + stamp(i.Timestamp) +
		"\" changeset=\"" + itoa(i.Changeset) + "\" uid=\"" + itoa(i.UID) + "\""

	if i.User != "" {
		s += " user=\"" + escape(i.User) + "\""
	}

	return s
}

func memberType(t model.EntityType) string {
	switch t {
	case model.NODE:
		return "node"
	case model.WAY:
		return "way"
	default:
		return "relation"
	}
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func itoa[T constraints.Integer](v T) string {
	return strconv.FormatInt(int64(v), 10)
}

func dtoa(d model.Degrees) string {
	return strconv.FormatFloat(float64(d), 'f', -1, 64)
}

func escape(s string) string {
	var buf bytes.Buffer

	_ = xml.EscapeText(&buf, []byte(s))

	return buf.String()
}
