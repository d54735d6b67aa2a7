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

package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/cockroachdb/byslice/internal/byslice"
	"github.com/cockroachdb/byslice/internal/clock"
	"github.com/cockroachdb/byslice/internal/config"
	"github.com/cockroachdb/byslice/internal/metrics"
	"github.com/cockroachdb/byslice/internal/pgdao"
)

// App bundles everything main needs to drive a stream, assembled by
// wire.Build in wire.go (and replayed by hand in wire_gen.go, since the
// wire binary cannot be invoked in this environment).
type App struct {
	Config      *config.Config
	Coordinator *byslice.Coordinator[Envelope]
}

// ProvideDAOPool opens the pgxpool.Pool byslice-query reads from. The
// returned cleanup closes the pool.
func ProvideDAOPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	pool, err := pgdao.Open(ctx, cfg.ConnString)
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}

// ProvideDAO adapts a pool into the byslice.DAO contract.
func ProvideDAO(pool *pgxpool.Pool) byslice.DAO {
	return pgdao.New(pool)
}

// ProvideClock supplies the real wall clock.
func ProvideClock() byslice.Clock {
	return clock.System{}
}

// ProvideMetrics registers the Prometheus collectors.
func ProvideMetrics() *metrics.Collectors {
	return metrics.New()
}

// ProvideLogger builds the logrus entry every component logs through,
// tagged with the stream identity up front.
func ProvideLogger(cfg *config.Config) *log.Entry {
	return log.WithFields(log.Fields{
		"entityType": cfg.EntityType,
		"minSlice":   cfg.MinSlice,
		"maxSlice":   cfg.MaxSlice,
	})
}

// ProvideCoordinator assembles the generic Coordinator instantiated at
// Envelope, the concrete outward-facing type this command emits.
func ProvideCoordinator(
	dao byslice.DAO,
	sysClock byslice.Clock,
	logger *log.Entry,
	collectors *metrics.Collectors,
	cfg *config.Config,
) *byslice.Coordinator[Envelope] {
	return byslice.New(dao, newEnvelope, envelopeOffset, cfg.Settings(), sysClock, logger, collectors)
}
