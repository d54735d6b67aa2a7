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

//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/cockroachdb/byslice/internal/config"
)

// NewApp wires together a pool, a DAO, a clock, metrics, a logger and a
// Coordinator into one App, the way the teacher's mylogical.Start
// wires a logical replication loop from its Config.
func NewApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	panic(wire.Build(
		ProvideDAOPool,
		ProvideDAO,
		ProvideClock,
		ProvideMetrics,
		ProvideLogger,
		ProvideCoordinator,
		wire.Struct(new(App), "Config", "Coordinator"),
	))
}
