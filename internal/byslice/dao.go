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
	"time"

	"github.com/cockroachdb/byslice/internal/histogram"
	"github.com/cockroachdb/byslice/internal/offsets"
)

// RowStream is the lazy, cancelable row stream returned by
// DAO.RowsBySlices. The DAO owns it and must tolerate exactly one
// consumer per returned stream (spec.md §5).
type RowStream interface {
	// Next blocks until the next row is available. ok is false once the
	// stream is exhausted cleanly.
	Next(ctx context.Context) (row offsets.Row, ok bool, err error)
	Close()
}

// DAO is the abstract contract over the storage layer (component F,
// spec.md §6.1). internal/pgdao is the concrete Postgres/CockroachDB
// implementation; the coordinator in this package never imports it
// directly.
type DAO interface {
	// CurrentDBTimestamp returns a read-your-writes clock from the
	// database. Used only by currentBySlices.
	CurrentDBTimestamp(ctx context.Context) (time.Time, error)

	// RowsBySlices returns rows ascending by (dbTimestamp, entityId,
	// seqNr). Rows with dbTimestamp < from must not appear. If to is
	// non-nil, no row with dbTimestamp after *to may appear. If
	// behindCurrentTime > 0, no row with dbTimestamp after
	// now-behindCurrentTime may appear. backtracking tells the DAO it
	// may choose a different index or snapshot isolation.
	RowsBySlices(
		ctx context.Context,
		entityType string,
		minSlice, maxSlice int,
		from time.Time,
		to *time.Time,
		behindCurrentTime time.Duration,
		backtracking bool,
	) (RowStream, error)

	// CountBucketsMayChange reports whether previously fetched bucket
	// counts can go stale. True for mutable/durable-state domains;
	// false for append-only event-sourced domains, where bucket counts
	// fetched once remain valid forever.
	CountBucketsMayChange() bool

	// CountBuckets returns bucket counts sorted ascending by start
	// time, counting only rows with dbTimestamp >= from (so the first
	// bucket may start before from), capped at limit buckets.
	CountBuckets(
		ctx context.Context,
		entityType string,
		minSlice, maxSlice int,
		from time.Time,
		limit int,
	) ([]histogram.Bucket, error)
}
