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

// Package config holds the user-visible configuration for running a
// by-slice query stream, bound via pflag the way the teacher's
// internal/source/server/config.go binds its Config.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/cockroachdb/byslice/internal/byslice"
)

// Config is the full set of flags accepted by cmd/byslice-query: the
// connection string, the stream identity (entityType plus slice
// range), and the six engine options of spec.md §6.3.
type Config struct {
	ConnString string
	EntityType string
	MinSlice   int
	MaxSlice   int
	Mode       string // "current" or "live"
	MetricsAddr string

	BufferSize                    int
	RefreshInterval               time.Duration
	BehindCurrentTime             time.Duration
	BacktrackingEnabled           bool
	BacktrackingWindow            time.Duration
	BacktrackingBehindCurrentTime time.Duration
	BacktrackingIdleThreshold     int
}

// Bind registers every flag against flags, seeded with the same
// defaults byslice.DefaultSettings returns.
func (c *Config) Bind(flags *pflag.FlagSet) {
	defaults := byslice.DefaultSettings()

	flags.StringVar(&c.ConnString, "connString", "",
		"the database connection string to read from")
	flags.StringVar(&c.EntityType, "entityType", "",
		"the entity type (table) to stream events for")
	flags.IntVar(&c.MinSlice, "minSlice", 0,
		"the lowest slice number (inclusive) to stream")
	flags.IntVar(&c.MaxSlice, "maxSlice", 0,
		"the highest slice number (inclusive) to stream")
	flags.StringVar(&c.Mode, "mode", "live",
		"one of \"current\" (finite, up to now) or \"live\" (continuous)")
	flags.StringVar(&c.MetricsAddr, "metricsAddr", "",
		"if set, the network address to serve Prometheus metrics on")

	flags.IntVar(&c.BufferSize, "bufferSize", defaults.BufferSize,
		"the target upper bound on rows per query")
	flags.DurationVar(&c.RefreshInterval, "refreshInterval", defaults.RefreshInterval,
		"the maximum idle sleep between live queries")
	flags.DurationVar(&c.BehindCurrentTime, "behindCurrentTime", defaults.BehindCurrentTime,
		"the forward-query visibility lag")
	flags.BoolVar(&c.BacktrackingEnabled, "backtrackingEnabled", defaults.BacktrackingEnabled,
		"whether live streams may enter backtracking to recover late-visible writes")
	flags.DurationVar(&c.BacktrackingWindow, "backtrackingWindow", defaults.BacktrackingWindow,
		"the nominal span covered by a backtracking query")
	flags.DurationVar(&c.BacktrackingBehindCurrentTime, "backtrackingBehindCurrentTime", defaults.BacktrackingBehindCurrentTime,
		"the backtracking-query visibility lag")
	flags.IntVar(&c.BacktrackingIdleThreshold, "backtrackingIdleThreshold", defaults.BacktrackingIdleThreshold,
		"the number of consecutive idle forward queries that trigger backtracking entry")
}

// Preflight validates the bound flags, matching the style of the
// teacher's Config.Preflight: a flat sequence of specific checks, no
// generic reflection-based validation.
func (c *Config) Preflight() error {
	if c.ConnString == "" {
		return errors.New("connString unset")
	}
	if c.EntityType == "" {
		return errors.New("entityType unset")
	}
	if c.MinSlice > c.MaxSlice {
		return errors.New("minSlice must be <= maxSlice")
	}
	if c.Mode != "current" && c.Mode != "live" {
		return errors.New("mode must be one of \"current\" or \"live\"")
	}
	if c.BufferSize <= 0 {
		return errors.New("bufferSize must be positive")
	}
	if c.BacktrackingEnabled && c.BacktrackingWindow <= 0 {
		return errors.New("backtrackingWindow must be positive when backtracking is enabled")
	}
	return nil
}

// Settings projects the engine-relevant fields of Config into a
// byslice.Settings value, leaving the connection and stream-identity
// fields to the caller.
func (c *Config) Settings() byslice.Settings {
	return byslice.Settings{
		BufferSize:                    c.BufferSize,
		RefreshInterval:               c.RefreshInterval,
		BehindCurrentTime:             c.BehindCurrentTime,
		BacktrackingEnabled:           c.BacktrackingEnabled,
		BacktrackingWindow:            c.BacktrackingWindow,
		BacktrackingBehindCurrentTime: c.BacktrackingBehindCurrentTime,
		BacktrackingIdleThreshold:     c.BacktrackingIdleThreshold,
	}
}
