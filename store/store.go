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

// Package store defines the contract a session consumes from the
// relational store. The store must support transactions, temporary tables
// scoped to commit, primary key constraints, statistics refresh, and the
// spatial predicates the planner emits.
package store

import (
	"context"
	"errors"
)

// ErrNoRows is returned by Row.Scan when a point query matches nothing.
var ErrNoRows = errors.New("store: no rows")

// Store hands out transactions. The connection behind each transaction is
// exclusively owned by its session; pooling is the store's concern.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a single transaction. All scratch sets built inside it are
// invisible to other transactions and dropped at commit.
type Tx interface {
	// Exec submits a statement and reports the number of rows affected.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// Query opens a cursor over a row-returning statement.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow runs a statement expected to return a single row.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	Commit(ctx context.Context) error

	Rollback(ctx context.Context) error
}

// Rows is a server-side cursor. It must be closed; closing releases the
// store resources backing it.
type Rows interface {
	Next() bool

	Scan(dest ...any) error

	Err() error

	Close()
}

// Row is the result of a single-row query.
type Row interface {
	// Scan copies the row into dest, or returns ErrNoRows.
	Scan(dest ...any) error
}
