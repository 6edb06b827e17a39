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

	"m4o.io/pgsnap/model"
)

// cursor yields objects until io.EOF.
type cursor interface {
	next() (model.Object, error)
	close()
}

// cursorOpener defers opening a store cursor until the stream reaches it.
type cursorOpener func(ctx context.Context) (cursor, error)

// Stream is a lazy concatenation of cursors: the envelope records first,
// then one cursor per entity kind in the fixed order nodes, ways,
// relations. The next underlying cursor is not opened until the previous
// one is exhausted. A stream must be closed before its session is
// released; Close is idempotent.
type Stream struct {
	ctx     context.Context
	session *Session

	head    []model.Object
	openers []cursorOpener
	cur     cursor
	closed  bool
}

// Next returns the next object in the stream, or io.EOF when the stream
// is exhausted. A store failure mid-iteration closes the stream and
// surfaces ErrCursorBroken; the caller must stop draining and release the
// session.
func (st *Stream) Next() (model.Object, error) {
	if st.closed {
		return nil, io.EOF
	}

	if len(st.head) > 0 {
		o := st.head[0]
		st.head = st.head[1:]

		return o, nil
	}

	for {
		if st.cur == nil {
			if len(st.openers) == 0 {
				st.finish()

				return nil, io.EOF
			}

			c, err := st.openers[0](st.ctx)
			st.openers = st.openers[1:]

			if err != nil {
				return nil, st.broken(err)
			}

			st.cur = c
		}

		o, err := st.cur.next()
		if err == io.EOF {
			st.cur.close()
			st.cur = nil

			continue
		}

		if err != nil {
			return nil, st.broken(err)
		}

		return o, nil
	}
}

// Close releases every store cursor the stream has opened. Closing an
// exhausted or already closed stream is a no-op.
func (st *Stream) Close() {
	if st.closed {
		return
	}

	if st.cur != nil {
		st.cur.close()
		st.cur = nil
	}

	st.finish()
}

// finish detaches the stream from its session so another query can be
// opened.
func (st *Stream) finish() {
	st.closed = true

	if st.session != nil && st.session.active == st {
		st.session.active = nil
	}
}

// broken closes the stream and poisons the session.
func (st *Stream) broken(err error) error {
	if st.cur != nil {
		st.cur.close()
		st.cur = nil
	}

	st.finish()
	st.session.poison(st.ctx)

	return fmt.Errorf("%w: %w", ErrCursorBroken, err)
}

// sliceCursor yields a fixed set of objects; it backs nothing in the
// store.
type sliceCursor struct {
	objs []model.Object
}

func (c *sliceCursor) next() (model.Object, error) {
	if len(c.objs) == 0 {
		return nil, io.EOF
	}

	o := c.objs[0]
	c.objs = c.objs[1:]

	return o, nil
}

func (c *sliceCursor) close() {}
