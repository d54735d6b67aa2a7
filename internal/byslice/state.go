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
	"time"

	"github.com/cockroachdb/byslice/internal/histogram"
	"github.com/cockroachdb/byslice/internal/offsets"
)

// QueryState is component B, spec.md §3/§4. It is an immutable value:
// every transition below returns a new QueryState rather than mutating
// the receiver, so that it can be threaded safely through the driver's
// pull loop (spec.md §9 "Immutable state transitions").
type QueryState struct {
	// Latest is the forward cursor. Its Timestamp is monotonically
	// non-decreasing across the driver's lifetime (invariant 1).
	Latest offsets.TimestampOffset

	// RowCount is the number of rows returned by the last completed
	// query.
	RowCount int

	// QueryCount is monotone, incremented once per issued query.
	QueryCount int64

	// IdleCount is the number of consecutive queries (in forward mode)
	// that returned zero rows.
	IdleCount int

	// Backtracking is the current mode flag.
	Backtracking bool

	// LatestBacktracking is the cursor used while in backtracking mode.
	// Invariant 2: LatestBacktracking.Timestamp <= Latest.Timestamp
	// always.
	LatestBacktracking offsets.TimestampOffset

	// Buckets is the cached histogram, shared by reference across
	// QueryState snapshots and replaced wholesale on refresh.
	Buckets histogram.Histogram
}

// initialQueryState builds the QueryState a stream starts from, given
// the caller-supplied starting offset (spec.md §6.2).
func initialQueryState(offset offsets.TimestampOffset) QueryState {
	return QueryState{
		Latest:             offset,
		LatestBacktracking: offsets.Zero,
		Buckets:            histogram.Empty(),
	}
}

// cursor returns the offset that the currently active mode (forward or
// backtracking) should be compared against and advanced from.
func (s QueryState) cursor() offsets.TimestampOffset {
	if s.Backtracking {
		return s.LatestBacktracking
	}
	return s.Latest
}

// applyEmission advances the active cursor to the new offset. It
// returns ErrOutOfOrderEmission if the new timestamp precedes the
// active cursor's timestamp (spec.md §4.D.6), which the caller
// propagates as a fatal, unrecoverable error.
func (s QueryState) applyEmission(newOffset offsets.TimestampOffset) (QueryState, error) {
	active := s.cursor()
	if newOffset.Timestamp.Before(active.Timestamp) {
		return s, ErrOutOfOrderEmission
	}
	if s.Backtracking {
		s.LatestBacktracking = newOffset
	} else {
		s.Latest = newOffset
	}
	return s, nil
}

// withQueryResult records the outcome of a just-completed query: the
// row count, and (in forward mode) idle-count bookkeeping. QueryCount
// is incremented separately, at the point a new query is issued.
func (s QueryState) withQueryResult(rowCount int) QueryState {
	s.RowCount = rowCount
	if !s.Backtracking {
		if rowCount == 0 {
			s.IdleCount++
		} else {
			s.IdleCount = 0
		}
	}
	return s
}

// shouldEnterBacktracking implements the entry condition of spec.md
// §4.D.2. It must only be consulted in live mode, after a
// forward-mode query has completed.
func (s QueryState) shouldEnterBacktracking(settings Settings) bool {
	if !settings.BacktrackingEnabled || s.Backtracking {
		return false
	}
	if s.Latest.IsZero() {
		return false
	}
	if s.IdleCount >= settings.idleThreshold() {
		return true
	}
	gap := s.Latest.Timestamp.Sub(s.LatestBacktracking.Timestamp)
	return gap > settings.halfBacktrackingWindow()
}

// enterBacktracking performs the state transition of spec.md §4.D.2
// "Entering backtracking".
func (s QueryState) enterBacktracking(settings Settings) QueryState {
	s.Backtracking = true
	if s.LatestBacktracking.IsZero() {
		seedTime := s.Latest.Timestamp.Add(-settings.firstBacktrackingWindow())
		s.LatestBacktracking = offsets.TimestampOffset{Timestamp: seedTime, Seen: offsets.Seen{}}
	}
	s.RowCount = 0
	return s
}

// shouldExitBacktracking implements spec.md §4.D.2 "Exiting
// backtracking": the just-completed backtracking query did not
// saturate the buffer.
func (s QueryState) shouldExitBacktracking(settings Settings) bool {
	return s.Backtracking && s.RowCount < settings.BufferSize-1
}

// exitBacktracking performs the backtracking-to-forward transition.
func (s QueryState) exitBacktracking() QueryState {
	s.Backtracking = false
	return s
}

// queryWindow computes the (fromTimestamp, upperBound, behindCurrentTime)
// triple for the next query, per spec.md §4.D.2 "While backtracking" /
// "While forward".
func (s QueryState) queryWindow(settings Settings) (from time.Time, upperBound *time.Time, behindCurrentTime time.Duration) {
	if s.Backtracking {
		from = s.LatestBacktracking.Timestamp
		bound, ok := s.Buckets.FindTimeForLimit(from, int64(settings.BufferSize))
		if !ok || bound.After(s.Latest.Timestamp) {
			bound = s.Latest.Timestamp
		}
		return from, &bound, settings.BacktrackingBehindCurrentTime
	}

	from = s.Latest.Timestamp
	if bound, ok := s.Buckets.FindTimeForLimit(from, int64(settings.BufferSize)); ok {
		return from, &bound, settings.BehindCurrentTime
	}
	return from, nil, settings.BehindCurrentTime
}

// needsHistogramRefresh implements spec.md §4.D.5's two-part gate.
func (s QueryState) needsHistogramRefresh(now time.Time, settings Settings, countBucketsMayChange bool) bool {
	stale := s.Buckets.IsEmpty() || now.Sub(s.Buckets.CreatedAt()) > histogramMaxAge
	if !stale {
		return false
	}
	if countBucketsMayChange {
		return true
	}
	// Event-sourced (append-only) domain: only re-fetch when the known
	// horizon cannot satisfy a lookup for the configured buffer size.
	_, coversBufferSize := s.Buckets.FindTimeForLimit(s.Latest.Timestamp, int64(settings.BufferSize))
	return !coversBufferSize
}

// refreshFromTimestamp implements spec.md §4.D.5's "pick fromTimestamp"
// rule for the countBuckets call.
func (s QueryState) refreshFromTimestamp(settings Settings) time.Time {
	switch {
	case s.LatestBacktracking.IsZero() && s.Latest.IsZero():
		return time.Time{}
	case s.LatestBacktracking.IsZero():
		return s.Latest.Timestamp.Add(-settings.firstBacktrackingWindow())
	default:
		return s.LatestBacktracking.Timestamp
	}
}
