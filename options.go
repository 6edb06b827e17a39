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
	"log/slog"
)

// sessionOptions provides optional configuration parameters for Session
// construction.
type sessionOptions struct {
	logger *slog.Logger // stage diagnostics
	hints  bool         // emit planner-tuning hints per query
	origin string       // origin tag for bound envelopes
}

// SessionOption configures how we set up the session.
type SessionOption func(*sessionOptions)

// WithLogger lets you set the logger stage diagnostics are written to.
func WithLogger(l *slog.Logger) SessionOption {
	return func(o *sessionOptions) {
		o.logger = l
	}
}

// WithPlannerHints lets you control whether each query starts by disabling
// sequential scans, merge joins, and hash joins for the remainder of the
// transaction. On by default; stores with accurate scratch-set statistics
// produce correct results either way.
func WithPlannerHints(enabled bool) SessionOption {
	return func(o *sessionOptions) {
		o.hints = enabled
	}
}

// WithOrigin lets you set the origin tag carried by bound envelopes.
func WithOrigin(origin string) SessionOption {
	return func(o *sessionOptions) {
		o.origin = origin
	}
}

// defaultSessionConfig provides a default configuration for sessions.
var defaultSessionConfig = sessionOptions{
	hints:  true,
	origin: DefaultOrigin,
}

func newSessionOptions(opts []SessionOption) sessionOptions {
	cfg := defaultSessionConfig

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	return cfg
}
