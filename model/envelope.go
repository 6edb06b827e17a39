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

package model

import (
	"time"
)

// Object is a single element of a result stream: one of the envelope
// records emitted at the stream head, or an Entity.
type Object interface {
	isObject() // prevents extensions
}

// Bound is the envelope record describing the rectangle a stream was
// extracted from, plus a free-text origin tag identifying the producer.
// Exactly one Bound heads every stream.
type Bound struct {
	BoundingBox

	Origin string
}

var _ Object = &Bound{}

func (b *Bound) isObject() {}

// GlobalBound creates a Bound covering the whole dataset.
func GlobalBound(origin string) *Bound {
	return &Bound{BoundingBox: *GlobalBoundingBox(), Origin: origin}
}

// LastUpdate is the envelope record carrying the dataset's last
// modification instant. Exactly one LastUpdate follows the Bound in every
// stream; a dataset with no recorded modification carries the zero instant.
type LastUpdate struct {
	Timestamp time.Time
}

var _ Object = &LastUpdate{}

func (l *LastUpdate) isObject() {}
