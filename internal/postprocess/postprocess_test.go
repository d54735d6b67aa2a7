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

package postprocess

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/byslice/internal/offsets"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type envelope struct {
	Offset  offsets.TimestampOffset
	Payload any
}

func factory(o offsets.TimestampOffset, r offsets.Row) envelope {
	return envelope{Offset: o, Payload: r.Payload}
}

func row(id uuid.UUID, seq offsets.SeqNr, ts time.Time) offsets.Row {
	return offsets.Row{EntityID: id, SeqNr: seq, DBTimestamp: ts, Payload: "x"}
}

func process(t *testing.T, rows []offsets.Row) []envelope {
	t.Helper()
	p := New(offsets.Zero, 1000, factory)
	var out []envelope
	for _, r := range rows {
		env, emit, err := p.Process(r)
		require.NoError(t, err)
		if emit {
			out = append(out, env)
		}
	}
	return out
}

// TestSimpleForward matches spec.md §8.1.
func TestSimpleForward(t *testing.T) {
	p1 := uuid.New()
	rows := []offsets.Row{
		row(p1, 1, t0),
		row(p1, 2, t0.Add(time.Millisecond)),
		row(p1, 3, t0.Add(2*time.Millisecond)),
	}
	out := process(t, rows)
	require.Len(t, out, 3)
	assert.Equal(t, offsets.Seen{p1: 1}, out[0].Offset.Seen)
	assert.Equal(t, offsets.Seen{p1: 2}, out[1].Offset.Seen)
	assert.Equal(t, offsets.Seen{p1: 3}, out[2].Offset.Seen)
}

// TestSameTimestampTie matches spec.md §8.2.
func TestSameTimestampTie(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	rows := []offsets.Row{
		row(p1, 1, t0),
		row(p2, 1, t0),
		row(p1, 2, t0.Add(time.Millisecond)),
	}
	out := process(t, rows)
	require.Len(t, out, 3)
	assert.Equal(t, offsets.Seen{p1: 1}, out[0].Offset.Seen)
	assert.Equal(t, offsets.Seen{p1: 1, p2: 1}, out[1].Offset.Seen)
	assert.Equal(t, offsets.Seen{p1: 2}, out[2].Offset.Seen)
}

// TestDuplicateSuppression matches spec.md §8.3.
func TestDuplicateSuppression(t *testing.T) {
	p1 := uuid.New()
	rows := []offsets.Row{
		row(p1, 1, t0),
		row(p1, 1, t0),
		row(p1, 2, t0.Add(time.Millisecond)),
	}
	out := process(t, rows)
	require.Len(t, out, 2)
	assert.Equal(t, offsets.Seen{p1: 1}, out[0].Offset.Seen)
	assert.Equal(t, offsets.Seen{p1: 2}, out[1].Offset.Seen)
}

// TestFreshProcessorSuppressesSeedTimestampBoundary matches spec.md §8.2:
// the DAO's lower bound is inclusive (db_timestamp >= from), so a query
// that stops mid-timestamp and the next query that resumes from that same
// cursor will both see the boundary row(s) again. A brand-new Processor
// seeded from that cursor must still suppress entities already recorded
// in the seed's Seen map, exactly as a Processor that never stopped would.
func TestFreshProcessorSuppressesSeedTimestampBoundary(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	seed := offsets.TimestampOffset{Timestamp: t0, Seen: offsets.Seen{p1: 1}}

	// A new query re-issued with from=t0 re-returns p1's already-emitted
	// row alongside p2's genuinely new one at the same timestamp.
	p := New(seed, 1000, factory)
	env1, emit1, err := p.Process(row(p1, 1, t0))
	require.NoError(t, err)
	assert.False(t, emit1, "row already recorded in the seed's Seen map must be suppressed")
	assert.Zero(t, env1)

	env2, emit2, err := p.Process(row(p2, 1, t0))
	require.NoError(t, err)
	require.True(t, emit2)
	assert.Equal(t, offsets.Seen{p1: 1, p2: 1}, env2.Offset.Seen)
}

func TestTooManyEventsSameTimestampSafetyRail(t *testing.T) {
	p1, p2, p3 := uuid.New(), uuid.New(), uuid.New()
	proc := New(offsets.Zero, 2, factory)
	_, _, err := proc.Process(row(p1, 1, t0))
	require.NoError(t, err)
	_, _, err = proc.Process(row(p2, 1, t0))
	require.NoError(t, err)
	_, _, err = proc.Process(row(p3, 1, t0))
	assert.ErrorIs(t, err, TooManyEventsSameTimestamp)
}

// TestRoundTripWithDuplicatePrefix checks postProcess ∘ duplicate =
// postProcess, per spec.md §8 "Round trip".
func TestRoundTripWithDuplicatePrefix(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	clean := []offsets.Row{
		row(p1, 1, t0),
		row(p2, 1, t0),
		row(p1, 2, t0.Add(time.Millisecond)),
		row(p2, 2, t0.Add(2*time.Millisecond)),
	}
	withDuplicates := append(append([]offsets.Row{}, clean[:2]...), clean...)

	wantEnvs := process(t, clean)
	gotEnvs := process(t, withDuplicates)

	assert.Equal(t, wantEnvs, gotEnvs)
}
