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

package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindTestFlags(args ...string) (*Config, error) {
	c := &Config{}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.Bind(flags)
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	return c, nil
}

func TestPreflightRejectsMissingConnString(t *testing.T) {
	c, err := bindTestFlags("--entityType=Account")
	require.NoError(t, err)
	assert.EqualError(t, c.Preflight(), "connString unset")
}

func TestPreflightRejectsMissingEntityType(t *testing.T) {
	c, err := bindTestFlags("--connString=postgres://localhost/db")
	require.NoError(t, err)
	assert.EqualError(t, c.Preflight(), "entityType unset")
}

func TestPreflightRejectsInvertedSliceRange(t *testing.T) {
	c, err := bindTestFlags(
		"--connString=postgres://localhost/db",
		"--entityType=Account",
		"--minSlice=10",
		"--maxSlice=5",
	)
	require.NoError(t, err)
	assert.EqualError(t, c.Preflight(), "minSlice must be <= maxSlice")
}

func TestPreflightRejectsUnknownMode(t *testing.T) {
	c, err := bindTestFlags(
		"--connString=postgres://localhost/db",
		"--entityType=Account",
		"--mode=sideways",
	)
	require.NoError(t, err)
	assert.EqualError(t, c.Preflight(), `mode must be one of "current" or "live"`)
}

func TestPreflightAcceptsMinimalValidConfig(t *testing.T) {
	c, err := bindTestFlags(
		"--connString=postgres://localhost/db",
		"--entityType=Account",
	)
	require.NoError(t, err)
	assert.NoError(t, c.Preflight())
}

func TestSettingsProjectsEngineFields(t *testing.T) {
	c, err := bindTestFlags(
		"--connString=postgres://localhost/db",
		"--entityType=Account",
		"--bufferSize=250",
		"--backtrackingIdleThreshold=7",
	)
	require.NoError(t, err)

	settings := c.Settings()
	assert.Equal(t, 250, settings.BufferSize)
	assert.Equal(t, 7, settings.BacktrackingIdleThreshold)
	assert.True(t, settings.BacktrackingEnabled)
}
