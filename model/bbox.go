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
	"errors"
	"fmt"
	"strconv"
)

const (
	MaxLat Degrees = 90.0
	MaxLon Degrees = 180.0
	MinLat Degrees = -90.0
	MinLon Degrees = -180.0
)

// ErrDegenerateBox is returned when a bounding box has no extent.
var ErrDegenerateBox = errors.New("bounding box is degenerate")

// BoundingBox is simply a bounding box.
type BoundingBox struct {
	Top    Degrees
	Left   Degrees
	Bottom Degrees
	Right  Degrees
}

// InitialBoundingBox creates a BoundingBox that is meant to be expanded.
func InitialBoundingBox() *BoundingBox {
	return &BoundingBox{
		Top:    MinLat,
		Left:   MaxLon,
		Bottom: MaxLat,
		Right:  MinLon,
	}
}

// GlobalBoundingBox creates a BoundingBox covering the whole dataset.
func GlobalBoundingBox() *BoundingBox {
	return &BoundingBox{
		Top:    MaxLat,
		Left:   MinLon,
		Bottom: MinLat,
		Right:  MaxLon,
	}
}

// Validate reports whether the box encloses a non-empty area.
func (b *BoundingBox) Validate() error {
	if b.Left >= b.Right || b.Bottom >= b.Top {
		return fmt.Errorf("%w: %s", ErrDegenerateBox, b)
	}

	return nil
}

// Polygon renders the box as a closed WKT polygon ring starting at the
// bottom-left corner, in lon/lat axis order. Coordinates keep full
// precision; this literal parameterizes spatial predicates.
func (b *BoundingBox) Polygon() string {
	return fmt.Sprintf("POLYGON((%[1]s %[2]s, %[1]s %[3]s, %[4]s %[3]s, %[4]s %[2]s, %[1]s %[2]s))",
		wkt(b.Left), wkt(b.Bottom), wkt(b.Top), wkt(b.Right))
}

func wkt(d Degrees) string {
	return strconv.FormatFloat(float64(d), 'f', -1, 64)
}

// EqualWithin checks if two bounding boxes are within a specific epsilon.
func (b *BoundingBox) EqualWithin(o *BoundingBox, eps Epsilon) bool {
	return b.Left.EqualWithin(o.Left, eps) &&
		b.Right.EqualWithin(o.Right, eps) &&
		b.Top.EqualWithin(o.Top, eps) &&
		b.Bottom.EqualWithin(o.Bottom, eps)
}

// Contains checks if the bounding box contains the lat lng point.
func (b *BoundingBox) Contains(lat Degrees, lng Degrees) bool {
	return b.Left <= lng && lng <= b.Right && b.Bottom <= lat && lat <= b.Top
}

func (b *BoundingBox) ExpandWithLatLng(lat, lng Degrees) {
	if b.Top < lat {
		b.Top = lat
	}

	if b.Bottom > lat {
		b.Bottom = lat
	}

	if b.Left > lng {
		b.Left = lng
	}

	if b.Right < lng {
		b.Right = lng
	}
}

func (b *BoundingBox) ExpandWithBoundingBox(bbox *BoundingBox) {
	if b.Top < bbox.Top {
		b.Top = bbox.Top
	}

	if b.Bottom > bbox.Bottom {
		b.Bottom = bbox.Bottom
	}

	if b.Left > bbox.Left {
		b.Left = bbox.Left
	}

	if b.Right < bbox.Right {
		b.Right = bbox.Right
	}
}

func (b *BoundingBox) String() string {
	return fmt.Sprintf("[(%s, %s) (%s, %s)]",
		ftoa(float64(b.Top)), ftoa(float64(b.Left)),
		ftoa(float64(b.Bottom)), ftoa(float64(b.Right)))
}
