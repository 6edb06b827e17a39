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

package cli

import (
	"os"

	pb "gopkg.in/cheggaaa/pb.v1"
)

// Counter is a terminal progress counter for streams whose length is not
// known up front.
type Counter struct {
	bar *pb.ProgressBar
}

// NewCounter starts a counter writing to stderr.
func NewCounter() *Counter {
	bar := pb.New(0)
	bar.ShowBar = false
	bar.ShowPercent = false
	bar.ShowTimeLeft = false
	bar.Output = os.Stderr
	bar.Start()

	return &Counter{bar: bar}
}

// Increment advances the counter by one.
func (c *Counter) Increment() {
	c.bar.Increment()
}

// Finish clears the terminal line of progress output.
func (c *Counter) Finish() {
	c.bar.Finish()
}
