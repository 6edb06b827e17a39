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
	"errors"

	"m4o.io/pgsnap/selector"
)

var (
	// ErrInvalidSelector is returned when a selector expression is
	// malformed; nothing has been submitted to the store and the session
	// remains usable.
	ErrInvalidSelector = selector.ErrInvalidSelector

	// ErrSchemaIncompatible is returned when the store's schema version
	// does not match SchemaVersion.
	ErrSchemaIncompatible = errors.New("schema version incompatible")

	// ErrStoreUnavailable is returned when the store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned by point lookups that match nothing.
	ErrNotFound = errors.New("entity not found")

	// ErrCursorBroken is returned by a stream whose underlying cursor
	// failed mid-iteration. The stream is closed; the caller must stop
	// draining and release the session.
	ErrCursorBroken = errors.New("cursor broken")

	// ErrLifecycleViolation is returned when a session is used after
	// release, while poisoned, or while an earlier stream is unfinished.
	ErrLifecycleViolation = errors.New("session lifecycle violation")
)
