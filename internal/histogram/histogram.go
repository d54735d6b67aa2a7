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

// Package histogram implements the cached, per-10-second-bucket row
// count used to bound the upper end of a by-slice query before the
// database applies its own LIMIT.
package histogram

import (
	"sort"
	"time"
)

// BucketSeconds is the width of one bucket.
const BucketSeconds = 10

// Limit is the maximum number of buckets requested from the DAO by one
// histogram refresh. Add and ClearUntil do not themselves cap how many
// buckets a Histogram holds.
const Limit = 10_000

// A Bucket is a single (startEpochSecond, count) pair. StartEpochSecond
// is always a multiple of BucketSeconds.
type Bucket struct {
	StartEpochSecond int64
	Count            int64
}

// A Histogram is an immutable, sorted mapping from bucket start to row
// count, plus the instant it was first populated. All mutating
// operations (Add, ClearUntil) return a new Histogram; the receiver is
// never modified, so the cache can be shared by reference across
// QueryState snapshots.
type Histogram struct {
	buckets   []Bucket // sorted ascending by StartEpochSecond
	createdAt time.Time
}

// Empty returns a Histogram with no buckets and a zero createdAt. The
// first Add call that adds at least one bucket stamps createdAt.
func Empty() Histogram {
	return Histogram{}
}

// IsEmpty reports whether the histogram holds no buckets.
func (h Histogram) IsEmpty() bool {
	return len(h.buckets) == 0
}

// CreatedAt returns the instant of first population, used by the
// coordinator's refresh policy (spec.md §4.D.5). It is the zero time
// until the first Add that adds at least one bucket.
func (h Histogram) CreatedAt() time.Time {
	return h.createdAt
}

func (h Histogram) search(start int64) int {
	return sort.Search(len(h.buckets), func(i int) bool {
		return h.buckets[i].StartEpochSecond >= start
	})
}

// Add replaces or inserts each of the given buckets, returning a new
// Histogram. CreatedAt is stamped to now only if this is the first
// population; subsequent Add calls never refresh it.
func (h Histogram) Add(now time.Time, add []Bucket) Histogram {
	if len(add) == 0 {
		return h
	}
	merged := make([]Bucket, len(h.buckets))
	copy(merged, h.buckets)
	for _, b := range add {
		idx := sort.Search(len(merged), func(i int) bool {
			return merged[i].StartEpochSecond >= b.StartEpochSecond
		})
		switch {
		case idx < len(merged) && merged[idx].StartEpochSecond == b.StartEpochSecond:
			merged[idx] = b
		case idx == len(merged):
			merged = append(merged, b)
		default:
			merged = append(merged, Bucket{})
			copy(merged[idx+1:], merged[idx:])
			merged[idx] = b
		}
	}
	createdAt := h.createdAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return Histogram{buckets: merged, createdAt: createdAt}
}

// ClearUntil drops all buckets with key <= t - BucketSeconds. Per
// spec.md invariant 5, this never empties a non-empty histogram: if the
// drop would remove everything, the last entry is retained. It is
// idempotent when nothing would be dropped.
func (h Histogram) ClearUntil(t time.Time) Histogram {
	if len(h.buckets) == 0 {
		return h
	}
	cutoff := t.Unix() - BucketSeconds
	idx := sort.Search(len(h.buckets), func(i int) bool {
		return h.buckets[i].StartEpochSecond > cutoff
	})
	if idx == 0 {
		return h
	}
	if idx == len(h.buckets) {
		idx = len(h.buckets) - 1
	}
	kept := make([]Bucket, len(h.buckets)-idx)
	copy(kept, h.buckets[idx:])
	return Histogram{buckets: kept, createdAt: h.createdAt}
}

// FindTimeForLimit scans forward from the first bucket strictly after
// from, summing counts, and returns the end (StartEpochSecond +
// BucketSeconds, as a time.Time) of the first bucket whose cumulative
// sum meets or exceeds atLeastN. ok is false if the scan exhausts
// without meeting the threshold.
func (h Histogram) FindTimeForLimit(from time.Time, atLeastN int64) (t time.Time, ok bool) {
	fromSec := from.Unix()
	idx := sort.Search(len(h.buckets), func(i int) bool {
		return h.buckets[i].StartEpochSecond > fromSec
	})
	var sum int64
	for ; idx < len(h.buckets); idx++ {
		sum += h.buckets[idx].Count
		if sum >= atLeastN {
			end := h.buckets[idx].StartEpochSecond + BucketSeconds
			return time.Unix(end, 0).UTC(), true
		}
	}
	return time.Time{}, false
}
