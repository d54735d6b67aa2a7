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

// Package postprocess converts a raw row stream into offset-bearing
// envelopes, suppressing duplicate emissions within one timestamp. This
// is component C of the by-slice query engine: see spec.md §4.B.
//
// The dedup state here is analogous to internal/util/msort.UniqueByKey
// in the teacher repo, but reworked from a batch "last one wins" pass
// into a streaming state machine that must reject, not silently
// overwrite, a duplicate or stale sequence number.
package postprocess

import (
	"github.com/pkg/errors"

	"github.com/cockroachdb/byslice/internal/offsets"
)

// TooManyEventsSameTimestamp is returned when the number of distinct
// entities observed at one timestamp exceeds bufferSize. This points to
// a histogram or DAO bug, not a normal operating condition: the query
// bound the histogram computed for this window undercounted the actual
// row count.
var TooManyEventsSameTimestamp = errors.New("too many events with the same timestamp")

// A Processor is a stateful row-to-envelope transformer. Its two
// mutable locals, currentTimestamp and currentSeen, belong to the
// consumer side of one DAO query stream: a new Processor (or a Reset)
// must be used whenever the outer runtime retries a query, so that
// suppression state never leaks across independent stream attempts.
type Processor[Env any] struct {
	factory    offsets.EnvelopeFactory[Env]
	bufferSize int

	seeded offsets.TimestampOffset

	currentTimestamp offsets.TimestampOffset
	currentSeen      offsets.Seen
}

// New constructs a Processor seeded with the offset the stream is
// resuming from, and the safety-rail buffer size (spec.md §4.B, §6.3).
func New[Env any](seed offsets.TimestampOffset, bufferSize int, factory offsets.EnvelopeFactory[Env]) *Processor[Env] {
	return &Processor[Env]{
		factory:          factory,
		bufferSize:       bufferSize,
		seeded:           seed,
		currentTimestamp: seed,
		currentSeen:      seed.Seen,
	}
}

// Reset clears the processor's suppression state back to its seed
// offset, for reuse across a retried query on the same logical stream.
func (p *Processor[Env]) Reset() {
	p.currentTimestamp = p.seeded
	p.currentSeen = p.seeded.Seen
}

// Current returns the offset of the last row processed (or the seed, if
// none yet).
func (p *Processor[Env]) Current() offsets.TimestampOffset {
	return p.currentTimestamp
}

// Process consumes one row. It returns the envelope to emit and true,
// or false if the row is a duplicate that must be dropped. An error is
// returned only for the TooManyEventsSameTimestamp safety rail.
func (p *Processor[Env]) Process(row offsets.Row) (env Env, emit bool, err error) {
	sameTimestamp := row.DBTimestamp.Equal(p.currentTimestamp.Timestamp)

	if sameTimestamp {
		if prevSeq, ok := p.currentSeen.Get(row.EntityID); ok && prevSeq >= row.SeqNr {
			// Duplicate or already-seen: drop.
			var zero Env
			return zero, false, nil
		}
		if len(p.currentSeen) >= p.bufferSize {
			var zero Env
			return zero, false, errors.WithStack(TooManyEventsSameTimestamp)
		}
		p.currentSeen = p.currentSeen.Extend(row.EntityID, row.SeqNr)
	} else {
		p.currentSeen = offsets.Singleton(row.EntityID, row.SeqNr)
	}

	p.currentTimestamp = p.currentTimestamp.WithRow(row, p.currentSeen)
	return p.factory(p.currentTimestamp, row), true, nil
}
