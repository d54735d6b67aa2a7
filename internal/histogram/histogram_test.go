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

package histogram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// TestFindTimeForLimit matches the concrete scenario in spec.md §8.5:
// buckets {T0:3, T0+10:5, T0+20:7} with atLeastN=10 should resolve to
// T0+30s, since the cumulative sum only reaches 15 at the T0+20 bucket.
func TestFindTimeForLimit(t *testing.T) {
	h := Empty().Add(t0, []Bucket{
		{StartEpochSecond: t0.Unix(), Count: 3},
		{StartEpochSecond: t0.Unix() + 10, Count: 5},
		{StartEpochSecond: t0.Unix() + 20, Count: 7},
	})

	got, ok := h.FindTimeForLimit(t0.Add(-time.Second), 10)
	require.True(t, ok)
	assert.Equal(t, t0.Add(30*time.Second), got)
}

func TestFindTimeForLimitExhausted(t *testing.T) {
	h := Empty().Add(t0, []Bucket{
		{StartEpochSecond: t0.Unix(), Count: 1},
	})
	_, ok := h.FindTimeForLimit(t0.Add(-time.Second), 100)
	assert.False(t, ok)
}

func TestAddDoesNotRefreshCreatedAt(t *testing.T) {
	h := Empty().Add(t0, []Bucket{{StartEpochSecond: t0.Unix(), Count: 1}})
	require.Equal(t, t0, h.CreatedAt())

	later := t0.Add(time.Hour)
	h2 := h.Add(later, []Bucket{{StartEpochSecond: t0.Unix() + 10, Count: 2}})
	assert.Equal(t, t0, h2.CreatedAt(), "createdAt records first construction, not later Add calls")
}

func TestClearUntilRetainsLastEntry(t *testing.T) {
	h := Empty().Add(t0, []Bucket{
		{StartEpochSecond: t0.Unix(), Count: 1},
		{StartEpochSecond: t0.Unix() + 10, Count: 2},
	})
	cleared := h.ClearUntil(t0.Add(time.Hour))
	assert.False(t, cleared.IsEmpty(), "clearUntil must never empty a previously non-empty histogram")
	assert.Len(t, cleared.buckets, 1)
	assert.Equal(t, t0.Unix()+10, cleared.buckets[0].StartEpochSecond)
}

func TestClearUntilIdempotentWhenNothingDropped(t *testing.T) {
	h := Empty().Add(t0, []Bucket{{StartEpochSecond: t0.Unix() + 100, Count: 1}})
	same := h.ClearUntil(t0)
	assert.Equal(t, h, same)
}

func TestClearUntilEmptyIsNoop(t *testing.T) {
	h := Empty()
	assert.Equal(t, h, h.ClearUntil(t0))
}

func TestAddReplacesExistingBucket(t *testing.T) {
	h := Empty().Add(t0, []Bucket{{StartEpochSecond: t0.Unix(), Count: 1}})
	h = h.Add(t0, []Bucket{{StartEpochSecond: t0.Unix(), Count: 9}})
	require.Len(t, h.buckets, 1)
	assert.Equal(t, int64(9), h.buckets[0].Count)
}
