// Copyright 2023 The Cockroach Authors
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
//
// SPDX-License-Identifier: Apache-2.0

// Package pgdao is the concrete Postgres/CockroachDB implementation of
// the byslice.DAO contract, following the teacher's
// internal/util/stdpool connection-pool idiom but built on pgxpool
// instead of database/sql, matching the StagingQuerier shape the
// teacher's internal/types/types.go defines for pgx-backed pools.
package pgdao

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Querier is implemented by pgxpool.Pool, pgxpool.Conn and pgxpool.Tx,
// mirroring the teacher's types.StagingQuerier so pgdao can be pointed
// at a pool, a single connection, or a transaction interchangeably.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...interface{}) pgx.Row
}

var (
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = (*pgxpool.Conn)(nil)
	_ Querier = (pgx.Tx)(nil)
)

// Open dials a pgxpool.Pool for connString and pings it once so that
// configuration errors surface immediately rather than on the first
// query, matching stdpool.OpenMySQLAsTarget's eager-ping idiom.
func Open(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "could not ping the database")
	}

	log.WithField("host", cfg.ConnConfig.Host).Info("connected to database")
	return pool, nil
}
