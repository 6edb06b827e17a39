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

// Package pgsnap provides read-only, filtered access to an OpenStreetMap
// snapshot held in a PostgreSQL/PostGIS store. Each goroutine accessing
// the store must create its own session; every stream obtained from a
// session must be closed before the session itself is released.
package pgsnap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"m4o.io/pgsnap/internal/query"
	"m4o.io/pgsnap/model"
	"m4o.io/pgsnap/store"
)

// Session owns one transaction on one store connection, the scratch
// namespace built inside it, the session's capability record, and the
// stream currently draining. A session is single-threaded; run multiple
// sessions for parallelism.
//
// Construction cannot fail: the transaction is opened, the schema version
// validated, and the capabilities probed lazily on the first query.
type Session struct {
	store store.Store
	cfg   sessionOptions

	tx   store.Tx
	caps query.Capabilities

	initialized bool
	poisoned    bool
	completed   bool
	released    bool

	active *Stream
}

// QueryError reports the stage a query failed at. The transaction has
// been rolled back and the session poisoned; no partial result is
// returned.
type QueryError struct {
	Stage string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed at stage %q: %v", e.Stage, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewSession creates a session over the store. Construction performs no
// store interaction.
func NewSession(st store.Store, opts ...SessionOption) *Session {
	return &Session{store: st, cfg: newSessionOptions(opts)}
}

// guard vets the session lifecycle and runs the one-time lazy
// initialization.
func (s *Session) guard(ctx context.Context) error {
	switch {
	case s.released:
		return fmt.Errorf("%w: session released", ErrLifecycleViolation)
	case s.poisoned:
		return fmt.Errorf("%w: session poisoned", ErrLifecycleViolation)
	case s.completed:
		return fmt.Errorf("%w: session completed", ErrLifecycleViolation)
	case s.active != nil:
		return fmt.Errorf("%w: previous stream not closed", ErrLifecycleViolation)
	}

	return s.init(ctx)
}

func (s *Session) init(ctx context.Context) error {
	if s.initialized {
		return nil
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		s.poisoned = true

		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	s.tx = tx

	if err := s.validateSchema(ctx); err != nil {
		_ = tx.Rollback(ctx)
		s.tx = nil
		s.poisoned = true

		return err
	}

	s.caps = probeCapabilities(ctx, tx, s.cfg.logger)
	s.initialized = true

	return nil
}

func (s *Session) validateSchema(ctx context.Context) error {
	var version int

	err := s.tx.QueryRow(ctx, "SELECT version FROM schema_info").Scan(&version)
	if err != nil {
		return fmt.Errorf("%w: reading schema_info: %w", ErrSchemaIncompatible, err)
	}

	if version != SchemaVersion {
		return fmt.Errorf("%w: store has version %d, expected %d",
			ErrSchemaIncompatible, version, SchemaVersion)
	}

	return nil
}

// run executes a plan; any stage failure rolls the transaction back and
// poisons the session.
func (s *Session) run(ctx context.Context, plan query.Plan) error {
	err := query.Run(ctx, s.tx, plan, s.cfg.logger)
	if err == nil {
		return nil
	}

	s.poison(ctx)

	var stageErr *query.StageError
	if errors.As(err, &stageErr) {
		return &QueryError{Stage: stageErr.Stage, Err: stageErr.Err}
	}

	return err
}

// poison rolls back and marks the session unusable; Release still
// succeeds afterwards.
func (s *Session) poison(ctx context.Context) {
	if s.poisoned {
		return
	}

	s.poisoned = true

	if s.tx != nil && !s.completed {
		if err := s.tx.Rollback(ctx); err != nil {
			s.cfg.logger.Debug("rollback on poison failed", "error", err)
		}
	}
}

// assemble builds the result stream for a finished plan: the bound and
// last-update envelopes, then one cursor per requested entity kind.
func (s *Session) assemble(ctx context.Context, plan query.Plan, bound *model.Bound) *Stream {
	st := &Stream{
		ctx:     ctx,
		session: s,
		head:    []model.Object{bound, s.fetchLastUpdate(ctx)},
	}

	if plan.Nodes {
		st.openers = append(st.openers, nodeOpener(s.tx, plan.Prefix))
	}

	if plan.Ways {
		st.openers = append(st.openers, wayOpener(s.tx, plan.Prefix))
	}

	if plan.Relations {
		st.openers = append(st.openers, relationOpener(s.tx, plan.Prefix))
	}

	s.active = st

	return st
}

// fetchLastUpdate reads the dataset's last-modification record. The
// marker is never elided; a store without the record yields the zero
// instant.
func (s *Session) fetchLastUpdate(ctx context.Context) *model.LastUpdate {
	var tstamp time.Time

	err := s.tx.QueryRow(ctx, "SELECT tstamp FROM replication_state").Scan(&tstamp)
	if err != nil {
		s.cfg.logger.Debug("last update unavailable", "error", err)

		return &model.LastUpdate{}
	}

	return &model.LastUpdate{Timestamp: tstamp}
}

// Node returns the node with the given id, or ErrNotFound.
func (s *Session) Node(ctx context.Context, id model.ID) (*model.Node, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	return s.lookupNode(ctx, id)
}

// Way returns the way with the given id, or ErrNotFound.
func (s *Session) Way(ctx context.Context, id model.ID) (*model.Way, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	return s.lookupWay(ctx, id)
}

// Relation returns the relation with the given id, or ErrNotFound.
func (s *Session) Relation(ctx context.Context, id model.ID) (*model.Relation, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	return s.lookupRelation(ctx, id)
}

// Complete commits the transaction, making the scratch sets vanish. The
// session cannot be queried afterwards.
func (s *Session) Complete(ctx context.Context) error {
	switch {
	case s.released, s.poisoned, s.completed:
		return ErrLifecycleViolation
	case s.active != nil:
		return fmt.Errorf("%w: stream not closed before complete", ErrLifecycleViolation)
	}

	s.completed = true

	if s.tx == nil {
		return nil
	}

	if err := s.tx.Commit(ctx); err != nil {
		s.poisoned = true

		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// Release closes any outstanding stream, rolls back if the session was
// not completed, and returns the connection to the pool. Release is
// idempotent and succeeds on a poisoned session.
func (s *Session) Release(ctx context.Context) {
	if s.released {
		return
	}

	if s.active != nil {
		s.active.Close()
	}

	if s.tx != nil && !s.completed && !s.poisoned {
		if err := s.tx.Rollback(ctx); err != nil {
			s.cfg.logger.Debug("rollback on release failed", "error", err)
		}
	}

	s.tx = nil
	s.released = true
}
