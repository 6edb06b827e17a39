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

package osmxml

import (
	"runtime"

	"m4o.io/pgsnap/model"
)

const (
	// DefaultBatchSize is the default number of objects rendered per
	// batch.
	DefaultBatchSize = 1024

	// DefaultGenerator identifies the writer in the document header.
	DefaultGenerator = "pgsnap"
)

// DefaultNCpu provides the default number of CPUs used for rendering.
func DefaultNCpu() uint16 {
	cpus := uint16(runtime.GOMAXPROCS(-1))

	return max(cpus-1, 1)
}

// encoderOptions provides optional configuration parameters for Encoder
// construction.
type encoderOptions struct {
	generator string              // generator attribute of the osm element
	batchSize int                 // objects rendered per batch
	nCPU      uint16              // CPUs used for background rendering
	observer  func(model.Object) // called once per object drained
}

// EncoderOption configures how we set up the encoder.
type EncoderOption func(*encoderOptions)

// WithGenerator lets you set the generator attribute of the document.
func WithGenerator(generator string) EncoderOption {
	return func(o *encoderOptions) {
		o.generator = generator
	}
}

// WithBatchSize lets you set the number of objects rendered per batch.
func WithBatchSize(s int) EncoderOption {
	return func(o *encoderOptions) {
		o.batchSize = s
	}
}

// WithNCpus lets you set the number of CPUs to use for background
// rendering.
func WithNCpus(n uint16) EncoderOption {
	return func(o *encoderOptions) {
		o.nCPU = n
	}
}

// WithObserver lets you watch each object as it is drained from the
// source, ahead of rendering.
func WithObserver(fn func(model.Object)) EncoderOption {
	return func(o *encoderOptions) {
		o.observer = fn
	}
}

// defaultEncoderConfig provides a default configuration for encoders.
var defaultEncoderConfig = encoderOptions{
	generator: DefaultGenerator,
	batchSize: DefaultBatchSize,
	nCPU:      DefaultNCpu(),
}
