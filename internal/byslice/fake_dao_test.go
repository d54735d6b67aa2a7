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

package byslice

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/byslice/internal/histogram"
	"github.com/cockroachdb/byslice/internal/offsets"
)

// fakeDAO is an in-memory stand-in for the DAO contract, built directly
// against offsets.Row rather than any SQL dialect, so that coordinator
// tests can exercise ordering, backtracking and histogram behavior
// without a database.
type fakeDAO struct {
	mu sync.Mutex

	rows       []offsets.Row // always kept sorted by (DBTimestamp, EntityID, SeqNr)
	now        time.Time
	mayChange  bool
	queryCalls int
}

func newFakeDAO(now time.Time) *fakeDAO {
	return &fakeDAO{now: now}
}

// insert adds a row, late-visible writes included: the slice is
// re-sorted after every insert so that a row with an older DBTimestamp
// can be injected after rows with newer timestamps already exist,
// modeling a write that becomes visible late (spec.md §4.D.2).
func (f *fakeDAO) insert(row offsets.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	sort.Slice(f.rows, func(i, j int) bool {
		a, b := f.rows[i], f.rows[j]
		if !a.DBTimestamp.Equal(b.DBTimestamp) {
			return a.DBTimestamp.Before(b.DBTimestamp)
		}
		if a.EntityID != b.EntityID {
			return a.EntityID.String() < b.EntityID.String()
		}
		return a.SeqNr < b.SeqNr
	})
}

func (f *fakeDAO) setNow(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func (f *fakeDAO) CurrentDBTimestamp(ctx context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now, nil
}

func (f *fakeDAO) CountBucketsMayChange() bool {
	return f.mayChange
}

func (f *fakeDAO) RowsBySlices(
	ctx context.Context,
	entityType string,
	minSlice, maxSlice int,
	from time.Time,
	to *time.Time,
	behindCurrentTime time.Duration,
	backtracking bool,
) (RowStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++

	effectiveTo := f.now.Add(-behindCurrentTime)
	if to != nil && to.Before(effectiveTo) {
		effectiveTo = *to
	}

	var matched []offsets.Row
	for _, row := range f.rows {
		if row.DBTimestamp.Before(from) {
			continue
		}
		if row.DBTimestamp.After(effectiveTo) {
			continue
		}
		matched = append(matched, row)
	}
	return &fakeRowStream{rows: matched}, nil
}

func (f *fakeDAO) CountBuckets(
	ctx context.Context,
	entityType string,
	minSlice, maxSlice int,
	from time.Time,
	limit int,
) ([]histogram.Bucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := map[int64]int64{}
	for _, row := range f.rows {
		if row.DBTimestamp.Before(from) {
			continue
		}
		bucketStart := row.DBTimestamp.Unix() / histogram.BucketSeconds * histogram.BucketSeconds
		counts[bucketStart]++
	}

	var starts []int64
	for start := range counts {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	var buckets []histogram.Bucket
	for _, start := range starts {
		buckets = append(buckets, histogram.Bucket{StartEpochSecond: start, Count: counts[start]})
		if int64(len(buckets)) >= int64(limit) {
			break
		}
	}
	return buckets, nil
}

// fakeRowStream serves a pre-materialized, already-filtered slice of
// rows, one per Next call.
type fakeRowStream struct {
	rows   []offsets.Row
	cursor int
	closed bool
}

func (s *fakeRowStream) Next(ctx context.Context) (offsets.Row, bool, error) {
	if s.cursor >= len(s.rows) {
		return offsets.Row{}, false, nil
	}
	row := s.rows[s.cursor]
	s.cursor++
	return row, true, nil
}

func (s *fakeRowStream) Close() {
	s.closed = true
}
