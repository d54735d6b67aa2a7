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

package main

import (
	"time"

	"github.com/cockroachdb/byslice/internal/offsets"
)

// Envelope is the concrete, NDJSON-serializable Env type byslice-query
// instantiates the generic engine with. Every field that belongs on the
// wire is exported so the standard encoding/json marshaler can
// serialize it without a custom MarshalJSON method.
type Envelope struct {
	EntityID  offsets.EntityID `json:"entityId"`
	SeqNr     offsets.SeqNr    `json:"seqNr"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   any              `json:"payload"`

	// seen is unexported, so encoding/json skips it: it carries the
	// offset's dedup Seen set through to envelopeOffset, without
	// exposing it on the wire.
	seen offsets.Seen
}

// newEnvelope is the offsets.EnvelopeFactory[Envelope] passed to
// byslice.New.
func newEnvelope(offset offsets.TimestampOffset, row offsets.Row) Envelope {
	return Envelope{
		EntityID:  row.EntityID,
		SeqNr:     row.SeqNr,
		Timestamp: offset.Timestamp,
		Payload:   row.Payload,
		seen:      offset.Seen,
	}
}

// envelopeOffset is the offsets.OffsetExtractor[Envelope] passed to
// byslice.New, reconstructing the offset's Timestamp and Seen set that
// QueryState needs to resume correctly. ReadTimestamp is not carried
// by Envelope and comes back as the zero time.
func envelopeOffset(env Envelope) offsets.TimestampOffset {
	return offsets.TimestampOffset{Timestamp: env.Timestamp, Seen: env.seen}
}
