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

// Package offsets contains the data types shared by every stage of the
// by-slice query pipeline: the row shape read from the DAO, the
// timestamp offset used to resume a stream, and the envelope emitted
// downstream.
package offsets

import (
	"time"

	"github.com/google/uuid"
)

// An EntityID identifies the aggregate that a Row belongs to.
type EntityID = uuid.UUID

// A SeqNr is a per-entity, monotonically increasing sequence number.
type SeqNr int64

// A Row is one record returned by a DAO query. Within a single query
// response, the DAO contract requires rows to be sorted ascending by
// (DBTimestamp, EntityID, SeqNr).
type Row struct {
	EntityID EntityID
	SeqNr    SeqNr

	// DBTimestamp is the database's commit instant for this row. It is
	// the only timestamp used for ordering.
	DBTimestamp time.Time

	// ReadDBTimestamp is the reader's clock at the moment the row was
	// fetched. It is diagnostic only and must never be consulted for
	// ordering decisions.
	ReadDBTimestamp time.Time

	// Payload is the opaque row body; the post-processor never inspects
	// it.
	Payload any
}

// Seen maps an EntityID to the highest SeqNr already emitted at exactly
// one timestamp. It is copy-on-write: Extend never mutates the receiver.
type Seen map[EntityID]SeqNr

// Get returns the highest sequence number seen for id, and whether any
// entry exists.
func (s Seen) Get(id EntityID) (SeqNr, bool) {
	n, ok := s[id]
	return n, ok
}

// Extend returns a new Seen map containing every entry of s plus
// (id, seq). The receiver is not modified.
func (s Seen) Extend(id EntityID, seq SeqNr) Seen {
	next := make(Seen, len(s)+1)
	for k, v := range s {
		next[k] = v
	}
	next[id] = seq
	return next
}

// Singleton returns a new Seen map containing exactly one entry.
func Singleton(id EntityID, seq SeqNr) Seen {
	return Seen{id: seq}
}

// A TimestampOffset is the resumable cursor position of a by-slice
// stream. It pairs the timestamp of the last emitted event with the set
// of (entityId, seqNr) pairs already emitted at that exact timestamp, so
// that a resumed stream can tell a replayed row from a genuinely new one.
type TimestampOffset struct {
	// Timestamp is the database commit instant of the last emitted
	// event. It is monotonically non-decreasing for any one stream.
	Timestamp time.Time

	// ReadTimestamp is the reader's clock when the offset was produced.
	// It is opaque diagnostic metadata and is never consulted for
	// ordering.
	ReadTimestamp time.Time

	// Seen is reset to a singleton whenever Timestamp advances to a
	// strictly greater value.
	Seen Seen
}

// Zero is the offset a stream starts from when the caller supplies no
// prior position.
var Zero = TimestampOffset{Seen: Seen{}}

// IsZero reports whether o is the zero offset.
func (o TimestampOffset) IsZero() bool {
	return o.Timestamp.IsZero() && len(o.Seen) == 0
}

// WithRow derives the offset that should be emitted alongside row,
// given the Seen map accumulated so far for row's timestamp. The caller
// (the post-processor) is responsible for resetting seen when the
// timestamp advances.
func (o TimestampOffset) WithRow(row Row, seen Seen) TimestampOffset {
	return TimestampOffset{
		Timestamp:     row.DBTimestamp,
		ReadTimestamp: row.ReadDBTimestamp,
		Seen:          seen,
	}
}

// An Offset is either "none" (interpreted as Zero) or a concrete
// TimestampOffset, matching spec.md §6.2's sum-type argument to
// currentBySlices/liveBySlices.
type Offset struct {
	valid bool
	value TimestampOffset
}

// None is the "no prior offset" value.
var None = Offset{}

// Some wraps a concrete TimestampOffset.
func Some(o TimestampOffset) Offset {
	return Offset{valid: true, value: o}
}

// Resolve returns the concrete TimestampOffset, substituting Zero for
// None.
func (o Offset) Resolve() TimestampOffset {
	if !o.valid {
		return Zero
	}
	return o.value
}

// EnvelopeFactory constructs the caller's outward-facing envelope type
// from an offset and a row's payload. The core is agnostic to the
// concrete envelope type.
type EnvelopeFactory[Env any] func(offset TimestampOffset, row Row) Env

// OffsetExtractor recovers the TimestampOffset from a previously
// constructed envelope, used by the coordinator to update QueryState
// after each emission.
type OffsetExtractor[Env any] func(env Env) TimestampOffset
